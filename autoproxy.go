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
	"reflect"
	"sync"

	"github.com/bloomboot/di/aop"
	"github.com/sirupsen/logrus"
)

const programmaticSource = "programmatic"

type recordedAspect struct {
	name string
	bean any
}

// autoProxy wraps beans matched by advisors into proxies. Aspect beans are recorded as they are initialized and
// their advisors are built on first use.
type autoProxy struct {
	c            *Container
	mu           sync.Mutex
	aspects      []recordedAspect
	cache        map[string][]*aop.Advisor
	programmatic []*aop.Advisor
	early        sync.Map // string -> struct{}
}

func newAutoProxy(c *Container) *autoProxy {
	return &autoProxy{c: c, cache: make(map[string][]*aop.Advisor)}
}

func (a *autoProxy) extensions() []Extension {
	return []Extension{
		{Stage: BeforeInitialization, Name: "autoProxy.record", Process: a.record},
		{Stage: EarlyReference, Name: "autoProxy.early", Process: a.earlyReference},
		{Stage: AfterInitialization, Name: "autoProxy", Process: a.afterInitialization},
	}
}

func (a *autoProxy) addAdvisor(advisor *aop.Advisor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.programmatic = append(a.programmatic, advisor)
}

func (a *autoProxy) record(bean any, name string) (any, error) {
	if !a.isAspect(name) {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.aspects {
		if a.aspects[i].name == name {
			a.aspects[i].bean = bean
			delete(a.cache, name)
			return nil, nil
		}
	}
	a.aspects = append(a.aspects, recordedAspect{name: name, bean: bean})
	a.c.log.WithField("aspect", name).Debug("Aspect source recorded")
	return nil, nil
}

func (a *autoProxy) earlyReference(bean any, name string) (any, error) {
	proxied, err := a.wrap(bean, name)
	if err != nil || proxied == nil {
		return nil, err
	}
	a.early.Store(name, struct{}{})
	return proxied, nil
}

func (a *autoProxy) afterInitialization(bean any, name string) (any, error) {
	if _, ok := a.early.LoadAndDelete(name); ok {
		return nil, nil
	}
	return a.wrap(bean, name)
}

func (a *autoProxy) isAspect(name string) bool {
	def, err := a.c.definitions.get(name)
	return err == nil && def.Aspect
}

// wrap returns the proxy for bean, or nil when no advisor applies to it.
func (a *autoProxy) wrap(bean any, name string) (any, error) {
	if a.isAspect(name) {
		return nil, nil
	}
	advisors, err := a.advisors()
	if err != nil {
		return nil, err
	}
	t := reflect.TypeOf(bean)
	matching := aop.Matching(advisors, t)
	if len(matching) == 0 {
		return nil, nil
	}
	log := a.c.log.WithFields(logrus.Fields{
		"bean":     name,
		"type":     t,
		"advisors": len(matching),
	})
	if !a.c.contracts.Supports(t) {
		log.Warn("Advisors match a bean that implements no proxy contract, leaving it unproxied")
		return nil, nil
	}
	proxied, err := a.c.contracts.Wrap(aop.NewAdvisedConfig(bean, matching))
	if err != nil {
		return nil, err
	}
	a.c.metrics.proxyCreated()
	log.Debug("Proxy created")
	return proxied, nil
}

// advisors builds the advisors of every recorded aspect not processed yet and returns all of them: aspect
// advisors in recording order, then programmatic ones.
func (a *autoProxy) advisors() ([]*aop.Advisor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*aop.Advisor
	for _, aspect := range a.aspects {
		advisors, ok := a.cache[aspect.name]
		if !ok {
			var err error
			if advisors, err = a.c.advisorFactory.Advisors(aspect.name, aspect.bean); err != nil {
				return nil, err
			}
			a.cache[aspect.name] = advisors
			a.c.log.WithFields(logrus.Fields{
				"aspect":   aspect.name,
				"advisors": len(advisors),
			}).Debug("Advisors built")
		}
		out = append(out, advisors...)
	}
	return append(out, a.programmatic...), nil
}
