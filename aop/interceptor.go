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
	"reflect"

	"github.com/sirupsen/logrus"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// JoinPoint describes the call being advised. Arguments returns the live argument slice: an interceptor may
// replace elements before calling Proceed.
type JoinPoint interface {
	Method() reflect.Method
	Arguments() []any
	This() any
}

// MethodInvocation is a JoinPoint that can continue down the interceptor chain.
//
// Proceed returns every result of the method, trailing error included, plus that trailing error on its own.
type MethodInvocation interface {
	JoinPoint
	Proceed() ([]any, error)
}

// MethodInterceptor wraps a method invocation. Returning without calling Proceed short-circuits the call.
type MethodInterceptor interface {
	Invoke(invocation MethodInvocation) ([]any, error)
}

// InterceptorFunc adapts a function to MethodInterceptor.
type InterceptorFunc func(invocation MethodInvocation) ([]any, error)

func (f InterceptorFunc) Invoke(invocation MethodInvocation) ([]any, error) {
	return f(invocation)
}

// BeforeAdvice runs ahead of the target. A non-nil error aborts the call and is returned to the caller.
type BeforeAdvice func(jp JoinPoint) error

// AfterAdvice runs once the target has finished, whether it returned, failed or panicked.
type AfterAdvice func(jp JoinPoint) error

// AfterReturningAdvice observes the first result of a successful call.
type AfterReturningAdvice func(jp JoinPoint, result any) error

// AfterThrowingAdvice observes the trailing error of a failed call.
type AfterThrowingAdvice func(jp JoinPoint, err error) error

// Before adapts a BeforeAdvice to an interceptor.
func Before(advice BeforeAdvice) MethodInterceptor {
	return InterceptorFunc(func(invocation MethodInvocation) ([]any, error) {
		if err := advice(invocation); err != nil {
			return nil, err
		}
		return invocation.Proceed()
	})
}

// After adapts an AfterAdvice to an interceptor. Advice errors are logged, the call outcome is kept.
func After(advice AfterAdvice) MethodInterceptor {
	return InterceptorFunc(func(invocation MethodInvocation) ([]any, error) {
		defer func() {
			if err := advice(invocation); err != nil {
				logAdviceError("after", invocation, err)
			}
		}()
		return invocation.Proceed()
	})
}

// AfterReturning adapts an AfterReturningAdvice to an interceptor.
func AfterReturning(advice AfterReturningAdvice) MethodInterceptor {
	return InterceptorFunc(func(invocation MethodInvocation) ([]any, error) {
		results, err := invocation.Proceed()
		if err != nil {
			return results, err
		}
		var first any
		if len(results) > 0 {
			first = results[0]
		}
		if adviceErr := advice(invocation, first); adviceErr != nil {
			logAdviceError("afterReturning", invocation, adviceErr)
		}
		return results, nil
	})
}

// AfterThrowing adapts an AfterThrowingAdvice to an interceptor. The original error is always propagated.
func AfterThrowing(advice AfterThrowingAdvice) MethodInterceptor {
	return InterceptorFunc(func(invocation MethodInvocation) ([]any, error) {
		results, err := invocation.Proceed()
		if err != nil {
			if adviceErr := advice(invocation, err); adviceErr != nil {
				logAdviceError("afterThrowing", invocation, adviceErr)
			}
		}
		return results, err
	})
}

// Composite runs interceptors in order; each one reaches the next by calling Proceed and the last one reaches
// the target.
type Composite struct {
	interceptors []MethodInterceptor
}

// NewComposite creates a chain. The slice is copied.
func NewComposite(interceptors ...MethodInterceptor) *Composite {
	return &Composite{interceptors: append([]MethodInterceptor(nil), interceptors...)}
}

// Len returns the number of links in the chain.
func (c *Composite) Len() int {
	return len(c.interceptors)
}

func (c *Composite) Invoke(invocation MethodInvocation) ([]any, error) {
	chain := &chainedInvocation{MethodInvocation: invocation, interceptors: c.interceptors}
	return chain.Proceed()
}

type chainedInvocation struct {
	MethodInvocation
	interceptors []MethodInterceptor
	index        int
}

func (c *chainedInvocation) Proceed() ([]any, error) {
	if c.index == len(c.interceptors) {
		return c.MethodInvocation.Proceed()
	}
	next := c.interceptors[c.index]
	c.index++
	return next.Invoke(c)
}

// invocation calls the target method through reflection.
type invocation struct {
	method    reflect.Method
	target    reflect.Value
	arguments []any
	callSlice bool
}

func newInvocation(target reflect.Value, method reflect.Method, args []any) *invocation {
	fnType := target.Method(method.Index).Type()
	callSlice := false
	if fnType.IsVariadic() && len(args) == fnType.NumIn() {
		last := args[len(args)-1]
		callSlice = last == nil || reflect.TypeOf(last).AssignableTo(fnType.In(fnType.NumIn()-1))
	}
	return &invocation{method: method, target: target, arguments: args, callSlice: callSlice}
}

func parameterType(fnType reflect.Type, i int, callSlice bool) reflect.Type {
	if fnType.IsVariadic() && i >= fnType.NumIn()-1 {
		last := fnType.In(fnType.NumIn() - 1)
		if callSlice {
			return last
		}
		return last.Elem()
	}
	if i < fnType.NumIn() {
		return fnType.In(i)
	}
	return nil
}

func argumentValue(arg any, paramType reflect.Type) reflect.Value {
	if arg == nil && paramType != nil {
		return reflect.Zero(paramType)
	}
	value := reflect.ValueOf(arg)
	if paramType != nil && paramType.Kind() != reflect.Interface && value.Type() != paramType &&
		value.Type().ConvertibleTo(paramType) {
		return value.Convert(paramType)
	}
	return value
}

func (i *invocation) Method() reflect.Method {
	return i.method
}

func (i *invocation) Arguments() []any {
	return i.arguments
}

func (i *invocation) This() any {
	return i.target.Interface()
}

func (i *invocation) Proceed() ([]any, error) {
	fn := i.target.Method(i.method.Index)
	fnType := fn.Type()
	values := make([]reflect.Value, len(i.arguments))
	for n, arg := range i.arguments {
		values[n] = argumentValue(arg, parameterType(fnType, n, i.callSlice))
	}
	var out []reflect.Value
	if i.callSlice {
		out = fn.CallSlice(values)
	} else {
		out = fn.Call(values)
	}
	results := make([]any, len(out))
	for n, value := range out {
		results[n] = value.Interface()
	}
	return results, trailingError(results, fnType)
}

// abort builds the results of a short-circuited call: zero values with err in the trailing error slot.
func (i *invocation) abort(err error) []any {
	fnType := i.target.Method(i.method.Index).Type()
	results := make([]any, fnType.NumOut())
	for n := range results {
		results[n] = reflect.Zero(fnType.Out(n)).Interface()
	}
	if err == nil {
		return results
	}
	if !returnsError(fnType) {
		panic(err)
	}
	results[len(results)-1] = err
	return results
}

func returnsError(fnType reflect.Type) bool {
	return fnType.NumOut() > 0 && fnType.Out(fnType.NumOut()-1) == errorType
}

func trailingError(results []any, fnType reflect.Type) error {
	if !returnsError(fnType) {
		return nil
	}
	err, _ := results[len(results)-1].(error)
	return err
}

func logAdviceError(kind string, jp JoinPoint, err error) {
	logrus.WithFields(logrus.Fields{
		"component": "aop",
		"advice":    kind,
		"method":    jp.Method().Name,
	}).WithError(err).Warn("Advice failed")
}
