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

package aop

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// AdvisedConfig holds everything a proxy needs: the target, the interceptor to run and the matcher deciding
// which calls go through it.
type AdvisedConfig struct {
	Target      any
	Interceptor MethodInterceptor
	Matcher     MethodMatcher
}

// NewAdvisedConfig combines advisors for a target. A single advisor is used as is; several are chained in the
// given order and a call is intercepted when any of their pointcuts matches it. Within the chain a link whose
// own pointcut rejects the method passes the call on untouched.
func NewAdvisedConfig(target any, advisors []*Advisor) *AdvisedConfig {
	if len(advisors) == 1 {
		return &AdvisedConfig{Target: target, Interceptor: advisors[0].interceptor, Matcher: advisors[0].pointcut}
	}
	targetType := reflect.TypeOf(target)
	interceptors := make([]MethodInterceptor, len(advisors))
	matchers := make([]MethodMatcher, len(advisors))
	for i, advisor := range advisors {
		interceptors[i] = guarded(advisor, targetType)
		matchers[i] = advisor.pointcut
	}
	return &AdvisedConfig{Target: target, Interceptor: NewComposite(interceptors...), Matcher: AnyMethod(matchers...)}
}

func guarded(advisor *Advisor, targetType reflect.Type) MethodInterceptor {
	return InterceptorFunc(func(invocation MethodInvocation) ([]any, error) {
		if !advisor.pointcut.MatchesMethod(invocation.Method(), targetType) {
			return invocation.Proceed()
		}
		return advisor.interceptor.Invoke(invocation)
	})
}

// Proxy dispatches calls to the target, routing the matching ones through the interceptor. Typed decorators
// registered as contracts embed it and forward every interface method to Invoke.
type Proxy struct {
	config     *AdvisedConfig
	target     reflect.Value
	targetType reflect.Type
}

// NewProxy creates a proxy for the configuration.
func NewProxy(config *AdvisedConfig) *Proxy {
	return &Proxy{config: config, target: reflect.ValueOf(config.Target), targetType: reflect.TypeOf(config.Target)}
}

// Target returns the proxied object.
func (p *Proxy) Target() any {
	return p.config.Target
}

// Invoke calls the named method with args and returns all of its results.
//
// A variadic method may receive its variadic part either spread or as a single slice. When an interceptor
// short-circuits with an error, the results are zero values with the error in the trailing error slot; a
// method without an error result panics with it instead.
func (p *Proxy) Invoke(method string, args ...any) []any {
	m, ok := p.targetType.MethodByName(method)
	if !ok {
		panic(fmt.Sprintf("aop: %s has no method %s", p.targetType, method))
	}
	call := newInvocation(p.target, m, args)
	if p.config.Interceptor == nil || p.config.Matcher == nil || !p.config.Matcher.MatchesMethod(m, p.targetType) {
		results, _ := call.Proceed()
		return results
	}
	results, err := p.config.Interceptor.Invoke(call)
	if results != nil {
		return results
	}
	return call.abort(err)
}

// Result returns the i-th result converted to T, or the zero value of T when the result is nil or missing.
func Result[T any](results []any, i int) T {
	var zero T
	if i < 0 || i >= len(results) || results[i] == nil {
		return zero
	}
	return results[i].(T)
}

// Err returns the trailing error of a result list.
func Err(results []any) error {
	if len(results) == 0 {
		return nil
	}
	err, _ := results[len(results)-1].(error)
	return err
}

type contract struct {
	iface reflect.Type
	build func(p *Proxy) any
}

// Contracts holds the decorators able to present a Proxy as a typed interface value. The first registered
// contract implemented by a target is used for it.
type Contracts struct {
	mu      sync.RWMutex
	entries []contract
}

// NewContracts creates an empty set.
func NewContracts() *Contracts {
	return &Contracts{}
}

// RegisterContract registers the decorator for interface I. Registering I again replaces its decorator and
// keeps its position.
func RegisterContract[I any](c *Contracts, build func(p *Proxy) I) error {
	iface := reflect.TypeOf((*I)(nil)).Elem()
	if iface.Kind() != reflect.Interface {
		return fmt.Errorf("proxy contract must be an interface, got %s", iface)
	}
	if build == nil {
		return errors.New("proxy contract builder must not be nil")
	}
	entry := contract{iface: iface, build: func(p *Proxy) any { return build(p) }}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].iface == iface {
			c.entries[i] = entry
			return nil
		}
	}
	c.entries = append(c.entries, entry)
	return nil
}

// Supports reports whether t implements any registered contract.
func (c *Contracts) Supports(t reflect.Type) bool {
	_, ok := c.find(t)
	return ok
}

// Wrap builds the typed proxy for the configuration's target.
func (c *Contracts) Wrap(config *AdvisedConfig) (any, error) {
	t := reflect.TypeOf(config.Target)
	entry, ok := c.find(t)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoContract, t)
	}
	return entry.build(NewProxy(config)), nil
}

func (c *Contracts) find(t reflect.Type) (contract, bool) {
	if t == nil {
		return contract{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.entries {
		if t.Implements(entry.iface) {
			return entry, true
		}
	}
	return contract{}, false
}
