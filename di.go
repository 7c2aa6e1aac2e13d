/*
 * Copyright (c) 2020 Go IoC
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 */

package di

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/bloomboot/di/aop"
	"github.com/bloomboot/di/marker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var errRequestBeanRetrieval = errors.New("request-scoped beans can't be retrieved directly from the container: they can only be retrieved from the web-context")

var extensionProviderType = reflect.TypeOf((*ExtensionProvider)(nil)).Elem()

// Container owns bean definitions, the singleton cache and the extension chain.
type Container struct {
	log            *logrus.Entry
	ownLogger      bool
	config         Config
	reader         marker.Reader
	evaluator      aop.Evaluator
	advisorFactory *aop.AdvisorFactory
	contracts      *aop.Contracts
	definitions    *definitionRegistry
	instances      *instanceRegistry
	extensions     *extensionChain
	autoProxy      *autoProxy
	metrics        *containerMetrics
	registerer     prometheus.Registerer
	plans          sync.Map // reflect.Type -> *injectionPlan
	locators       []Locator
	refreshMu      sync.Mutex
	postprocessors int64
}

// Option configures a Container.
type Option func(c *Container)

// WithLogger sets the entry the container logs with. A configured log level is applied to its logger.
func WithLogger(entry *logrus.Entry) Option {
	return func(c *Container) {
		c.log = entry
		c.ownLogger = true
	}
}

// WithMarkerReader replaces the struct tag based marker reader.
func WithMarkerReader(reader marker.Reader) Option {
	return func(c *Container) {
		c.reader = reader
	}
}

// WithEvaluator replaces the execution expression evaluator used for pointcuts.
func WithEvaluator(evaluator aop.Evaluator) Option {
	return func(c *Container) {
		c.evaluator = evaluator
	}
}

// WithMetrics registers the container collectors with registerer.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(c *Container) {
		c.registerer = registerer
	}
}

// WithConfig sets the container settings.
func WithConfig(config Config) Option {
	return func(c *Container) {
		c.config = config
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		log:        logrus.WithField("component", "di"),
		config:     DefaultConfig(),
		reader:     marker.NewTagReader(),
		evaluator:  aop.NewExecutionEvaluator(),
		contracts:  aop.NewContracts(),
		extensions: &extensionChain{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.config.LogLevel != "" {
		if level, err := logrus.ParseLevel(c.config.LogLevel); err == nil {
			if !c.ownLogger {
				logger := logrus.New()
				logger.SetFormatter(c.log.Logger.Formatter)
				logger.SetOutput(c.log.Logger.Out)
				logger.SetReportCaller(c.log.Logger.ReportCaller)
				c.log = logger.WithFields(c.log.Data)
			}
			c.log.Logger.SetLevel(level)
		} else {
			c.log.WithError(err).Warn("Ignoring invalid log level")
		}
	}
	if c.registerer != nil {
		metrics, err := newContainerMetrics(c.registerer)
		if err != nil {
			c.log.WithError(err).Error("Can't register container metrics, continuing without them")
		}
		c.metrics = metrics
	}
	c.advisorFactory = aop.NewAdvisorFactory(c.reader, c.evaluator)
	c.definitions = newDefinitionRegistry(c.log)
	c.instances = newInstanceRegistry(c.log)
	c.autoProxy = newAutoProxy(c)
	if c.config.AutoProxy {
		for _, ext := range c.autoProxy.extensions() {
			_ = c.extensions.add(ext)
		}
	}
	return c
}

// RegisterBean registers a bean type, which must be a pointer to a struct. An empty name is taken from the
// di.name marker, then from the type name.
func (c *Container) RegisterBean(name string, beanType reflect.Type) (overwritten bool, err error) {
	if beanType == nil || beanType.Kind() != reflect.Ptr {
		return false, errors.New("bean type must be a pointer")
	}
	def, err := definitionFor(name, beanType, c.reader)
	if err != nil {
		return false, err
	}
	if _, err := c.plan(beanType); err != nil {
		return false, err
	}
	return c.definitions.register(def), nil
}

// RegisterBeanInstance registers a ready-made singleton. It still goes through the extensions, so it may be
// proxied, but is never injected.
func (c *Container) RegisterBeanInstance(name string, instance any) (overwritten bool, err error) {
	beanType := reflect.TypeOf(instance)
	if beanType == nil || beanType.Kind() != reflect.Ptr {
		return false, errors.New("bean instance must be a pointer")
	}
	aspect, err := parseFlag(c.reader.TypeMarkers(beanType), marker.Aspect)
	if err != nil {
		return false, err
	}
	return c.definitions.register(&Definition{
		Name:    name,
		Type:    beanType,
		Scope:   Singleton,
		Aspect:  aspect,
		Factory: func() (any, error) { return instance, nil },
	}), nil
}

// RegisterBeanFactory registers a function building the bean. The result must be a pointer.
func (c *Container) RegisterBeanFactory(name string, scope Scope, factory func() (any, error)) (overwritten bool, err error) {
	if factory == nil {
		return false, errors.New("bean factory must not be nil")
	}
	switch scope {
	case Singleton, Prototype, Request:
	default:
		return false, errors.New("unsupported scope: " + string(scope))
	}
	return c.definitions.register(&Definition{Name: name, Scope: scope, Factory: factory}), nil
}

// RegisterBeanPostprocessor calls postprocessor with every bean of exactly beanType once it is injected, before
// its init callbacks run.
func (c *Container) RegisterBeanPostprocessor(beanType reflect.Type, postprocessor func(bean any) error) error {
	if postprocessor == nil {
		return errors.New("bean postprocessor must not be nil")
	}
	n := atomic.AddInt64(&c.postprocessors, 1)
	return c.extensions.add(Extension{
		Stage: BeforeInitialization,
		Name:  fmt.Sprintf("postprocessor.%d", n),
		Process: func(bean any, _ string) (any, error) {
			if reflect.TypeOf(bean) != beanType {
				return nil, nil
			}
			return nil, postprocessor(bean)
		},
	})
}

// AddExtension appends an extension; one with the same name is replaced and moved to the end.
func (c *Container) AddExtension(ext Extension) error {
	return c.extensions.add(ext)
}

// AddAdvisor applies interceptor to the methods matched by the pointcut expression.
func (c *Container) AddAdvisor(expression string, interceptor aop.MethodInterceptor) error {
	if interceptor == nil {
		return errors.New("interceptor must not be nil")
	}
	pointcut, err := c.evaluator.Parse(expression)
	if err != nil {
		return &ConfigurationError{Source: programmaticSource, Err: err}
	}
	c.autoProxy.addAdvisor(aop.NewAdvisor(aop.AroundKind, programmaticSource, "", pointcut, interceptor))
	return nil
}

// Contracts returns the proxy contracts beans can be wrapped with.
func (c *Container) Contracts() *aop.Contracts {
	return c.contracts
}

// Scan adds locators whose types are registered on Refresh.
func (c *Container) Scan(locators ...Locator) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	c.locators = append(c.locators, locators...)
}

// Refresh registers located components, validates aspects, registers extension providers, creates aspects, then
// creates every non-lazy singleton in name order.
func (c *Container) Refresh() error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	for _, locator := range c.locators {
		types, err := locator.Locate()
		if err != nil {
			return fmt.Errorf("locate components: %w", err)
		}
		for _, t := range types {
			if _, err := c.RegisterBean("", t); err != nil {
				return fmt.Errorf("register component %v: %w", t, err)
			}
		}
	}

	definitions := c.definitions.all()
	for _, def := range definitions {
		if !def.Aspect || def.Type == nil {
			continue
		}
		if err := c.advisorFactory.Validate(def.Name, def.Type); err != nil {
			return err
		}
	}
	for _, def := range definitions {
		if def.Scope != Singleton || def.Type == nil || !def.Type.Implements(extensionProviderType) {
			continue
		}
		bean, err := c.getBean(def.Name, make(map[string]bool))
		if err != nil {
			return err
		}
		provider, ok := bean.(ExtensionProvider)
		if !ok {
			continue
		}
		for _, ext := range provider.Extensions() {
			if err := c.extensions.add(ext); err != nil {
				return &BeanCreationError{Name: def.Name, Err: err}
			}
		}
		c.log.WithField("bean", def.Name).Debug("Extensions registered")
	}

	for _, def := range definitions {
		if !def.Aspect || def.Scope != Singleton {
			continue
		}
		if _, err := c.getBean(def.Name, make(map[string]bool)); err != nil {
			return err
		}
	}
	if _, err := c.autoProxy.advisors(); err != nil {
		return err
	}

	for _, def := range definitions {
		if def.Scope != Singleton || def.Lazy {
			continue
		}
		if _, err := c.getBean(def.Name, make(map[string]bool)); err != nil {
			return err
		}
	}
	c.log.WithField("beans", len(definitions)).Info("Container refreshed")
	return nil
}

// Close tears the singletons down in reverse creation order.
func (c *Container) Close() error {
	policy := c.config.TeardownPolicy
	if policy == "" {
		policy = FailFast
	}
	err := c.instances.teardownAll(policy)
	if err != nil {
		c.log.WithError(err).Error("Teardown failed")
		return err
	}
	c.log.Debug("Container closed")
	return nil
}

// GetBean returns the bean registered under name, creating it if needed.
func (c *Container) GetBean(name string) (any, error) {
	def, err := c.definitions.get(name)
	if err != nil {
		return nil, err
	}
	if def.Scope == Request {
		return nil, errRequestBeanRetrieval
	}
	return c.getBean(name, make(map[string]bool))
}

// GetBeanByType returns the bean assignable to t.
func (c *Container) GetBeanByType(t reflect.Type) (any, error) {
	name, err := c.nameForType(t)
	if err != nil {
		return nil, err
	}
	return c.getBean(name, make(map[string]bool))
}

// Types returns a copy of the registered bean types by name. Factory beans are not included.
func (c *Container) Types() map[string]reflect.Type {
	return c.definitions.types()
}

// Scopes returns a copy of the registered bean scopes by name.
func (c *Container) Scopes() map[string]Scope {
	return c.definitions.scopes()
}

// Get returns the bean registered under name as T.
func Get[T any](c *Container, name string) (T, error) {
	var zero T
	bean, err := c.GetBean(name)
	if err != nil {
		return zero, err
	}
	typed, ok := bean.(T)
	if !ok {
		return zero, fmt.Errorf("bean %s of type %T is not a %v", name, bean, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

// GetByType returns the bean assignable to T.
func GetByType[T any](c *Container) (T, error) {
	var zero T
	bean, err := c.GetBeanByType(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	typed, ok := bean.(T)
	if !ok {
		return zero, fmt.Errorf("bean of type %T is not a %v", bean, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}
