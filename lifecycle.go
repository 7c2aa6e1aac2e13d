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
	"fmt"
	"reflect"
	"time"

	"github.com/bloomboot/di/marker"
	"github.com/sirupsen/logrus"
)

// InitializingBean is implemented by beans that need to finish their setup once dependencies are injected.
type InitializingBean interface {
	PostConstruct() error
}

// getBean returns the bean for name, creating it when needed. chain holds the names being created by the
// current request and breaks cycles the singleton cache can't.
func (c *Container) getBean(name string, chain map[string]bool) (any, error) {
	def, err := c.definitions.get(name)
	if err != nil {
		return nil, err
	}
	if def.Scope == Singleton {
		current := c.instances.tier(name)
		bean, found, err := c.instances.resolve(name)
		if err != nil {
			c.instances.discard(name)
			return nil, &BeanCreationError{Name: name, Err: err}
		}
		if found {
			c.instances.trackDependents(name, current, chain)
			return bean, nil
		}
	}
	if chain[name] {
		return nil, circularDependency(name)
	}
	chain[name] = true
	defer delete(chain, name)
	return c.createBean(def, chain)
}

// createBean runs the full lifecycle of one bean: substitution, instantiation, early exposure, injection,
// initialization and the extension stages around it.
func (c *Container) createBean(def *Definition, chain map[string]bool) (bean any, err error) {
	strategy := strategyFor(def, c.contracts)
	start := time.Now()
	defer func() {
		c.metrics.observeCreation(def.Scope, strategy.String(), err, time.Since(start))
	}()
	log := c.log.WithFields(logrus.Fields{
		"bean":     def.Name,
		"scope":    def.Scope,
		"strategy": strategy,
	})

	substitute, err := c.extensions.beforeInstantiation(def)
	if err != nil {
		return nil, c.creationFailed(def, err)
	}
	if substitute != nil {
		log.Trace("Bean supplied before instantiation")
		bean, err = c.extensions.apply(AfterInitialization, substitute, def.Name)
		if err != nil {
			return nil, c.creationFailed(def, err)
		}
		if def.Scope == Singleton {
			c.instances.promote(def.Name, bean)
			c.instances.settle(def.Name)
		}
		return bean, nil
	}

	log.Trace("Creating instance")
	raw, err := strategy.instantiate(def)
	if err != nil {
		return nil, c.creationFailed(def, err)
	}
	if def.Scope == Singleton {
		c.instances.registerFactory(def.Name, func() (any, error) {
			return c.extensions.apply(EarlyReference, raw, def.Name)
		})
	}
	if def.injectable() {
		if err := c.inject(def.Name, raw, chain); err != nil {
			return nil, c.creationFailed(def, err)
		}
	}

	target, err := c.extensions.apply(BeforeInitialization, raw, def.Name)
	if err != nil {
		return nil, c.creationFailed(def, err)
	}
	log.Trace("Initializing bean")
	if err := c.initialize(target); err != nil {
		return nil, c.creationFailed(def, err)
	}
	bean, err = c.extensions.apply(AfterInitialization, target, def.Name)
	if err != nil {
		return nil, c.creationFailed(def, err)
	}

	if def.Scope == Singleton {
		if early, ok := c.instances.earlyValue(def.Name); ok && bean == raw {
			bean = early
		}
		c.instances.promote(def.Name, bean)
		c.instances.settle(def.Name)
		if c.instances.registerDisposable(def.Name, target) {
			log.Trace("Disposable bean registered")
		}
		log.Trace("Singleton instance created")
	}
	return bean, nil
}

func (c *Container) creationFailed(def *Definition, err error) error {
	c.instances.discard(def.Name)
	c.autoProxy.early.Delete(def.Name)
	for _, name := range c.instances.evictDependents(def.Name) {
		c.autoProxy.early.Delete(name)
		c.log.WithFields(logrus.Fields{
			"bean":   name,
			"failed": def.Name,
		}).Debug("Evicted bean holding an early reference to a failed bean")
	}
	return &BeanCreationError{Name: def.Name, Err: err}
}

// initialize calls PostConstruct, then every method carrying the init marker in name order.
func (c *Container) initialize(bean any) error {
	if initializing, ok := bean.(InitializingBean); ok {
		if err := initializing.PostConstruct(); err != nil {
			return err
		}
	}
	t := reflect.TypeOf(bean)
	value := reflect.ValueOf(bean)
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		if method.Name == "PostConstruct" || !c.reader.MethodMarkers(t, method.Name).Has(marker.Init) {
			continue
		}
		if err := callInit(value.Method(i), method.Name); err != nil {
			return err
		}
	}
	return nil
}

func callInit(fn reflect.Value, name string) error {
	fnType := fn.Type()
	if fnType.NumIn() != 0 || fnType.NumOut() > 1 || (fnType.NumOut() == 1 && fnType.Out(0) != errorType) {
		return fmt.Errorf("init method %s must have signature func() or func() error", name)
	}
	out := fn.Call(nil)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// nameForType picks the bean assignable to t. With several candidates the first name in order wins, unless strict
// type resolution is on.
func (c *Container) nameForType(t reflect.Type) (string, error) {
	var candidates []string
	for _, def := range c.definitions.all() {
		if def.Scope == Request || def.Type == nil {
			continue
		}
		if def.Type.AssignableTo(t) {
			candidates = append(candidates, def.Name)
		}
	}
	switch {
	case len(candidates) == 0:
		return "", &TypeResolutionError{Type: t}
	case len(candidates) > 1 && c.config.StrictTypeResolution:
		return "", &TypeResolutionError{Type: t, Candidates: candidates}
	case len(candidates) > 1:
		c.log.WithFields(logrus.Fields{
			"type":       t,
			"candidates": candidates,
		}).Debug("Several beans match the type, using the first one")
	}
	return candidates[0], nil
}
