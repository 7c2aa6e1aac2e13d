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
	"regexp"
	"strings"

	"github.com/bloomboot/di/marker"
)

var (
	joinPointType = reflect.TypeOf((*JoinPoint)(nil)).Elem()
	anyType       = reflect.TypeOf((*any)(nil)).Elem()
	referenceCall = regexp.MustCompile(`^([A-Za-z_]\w*)\(\)$`)
)

var adviceMarkers = []struct {
	marker marker.Kind
	kind   AdviceKind
}{
	{marker.Before, BeforeKind},
	{marker.After, AfterKind},
	{marker.AfterReturning, AfterReturningKind},
	{marker.AfterThrowing, AfterThrowingKind},
}

// AdvisorFactory turns the advice methods of an aspect source into advisors.
//
// An advice marker's value is either a pointcut expression or a reference to a method carrying a pointcut
// marker, written "@Name" or "Name()". Advice methods take no argument or a JoinPoint; after-returning advice
// may also take the result (any) and after-throwing advice the error. They may return an error.
type AdvisorFactory struct {
	reader    marker.Reader
	evaluator Evaluator
}

// NewAdvisorFactory creates a factory.
func NewAdvisorFactory(reader marker.Reader, evaluator Evaluator) *AdvisorFactory {
	return &AdvisorFactory{reader: reader, evaluator: evaluator}
}

type declaration struct {
	kind     AdviceKind
	method   reflect.Method
	pointcut Pointcut
}

// Validate checks the advice declarations of an aspect type without creating it.
func (f *AdvisorFactory) Validate(source string, t reflect.Type) error {
	_, err := f.declarations(source, t)
	return err
}

// Advisors builds one advisor per advice method of the aspect, in method name order.
func (f *AdvisorFactory) Advisors(source string, aspect any) ([]*Advisor, error) {
	if aspect == nil {
		return nil, &ConfigurationError{Source: source, Err: errors.New("aspect source is nil")}
	}
	declarations, err := f.declarations(source, reflect.TypeOf(aspect))
	if err != nil {
		return nil, err
	}
	value := reflect.ValueOf(aspect)
	advisors := make([]*Advisor, 0, len(declarations))
	for _, d := range declarations {
		interceptor := bind(d.kind, value.Method(d.method.Index))
		advisors = append(advisors, NewAdvisor(d.kind, source, d.method.Name, d.pointcut, interceptor))
	}
	return advisors, nil
}

func (f *AdvisorFactory) declarations(source string, t reflect.Type) ([]declaration, error) {
	pointcuts := map[string]string{}
	for i := 0; i < t.NumMethod(); i++ {
		name := t.Method(i).Name
		if set := f.reader.MethodMarkers(t, name); set.Has(marker.Pointcut) {
			pointcuts[name] = set.Value(marker.Pointcut)
		}
	}

	var out []declaration
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		set := f.reader.MethodMarkers(t, method.Name)
		for _, advice := range adviceMarkers {
			if !set.Has(advice.marker) {
				continue
			}
			expression, err := resolveReference(set.Value(advice.marker), pointcuts)
			if err != nil {
				return nil, &ConfigurationError{Source: source, Element: method.Name, Err: err}
			}
			if err := checkSignature(advice.kind, method.Type); err != nil {
				return nil, &ConfigurationError{Source: source, Element: method.Name, Err: err}
			}
			pointcut, err := f.evaluator.Parse(expression)
			if err != nil {
				return nil, &ConfigurationError{Source: source, Element: method.Name, Err: err}
			}
			out = append(out, declaration{kind: advice.kind, method: method, pointcut: pointcut})
			// one advisor per method, the first advice marker wins
			break
		}
	}
	return out, nil
}

func resolveReference(value string, pointcuts map[string]string) (string, error) {
	value = strings.TrimSpace(value)
	name := ""
	switch {
	case strings.HasPrefix(value, "@"):
		name = value[1:]
	case referenceCall.MatchString(value):
		name = referenceCall.FindStringSubmatch(value)[1]
	case value == "":
		return "", errors.New("empty pointcut expression")
	default:
		return value, nil
	}
	expression, ok := pointcuts[name]
	if !ok {
		return "", fmt.Errorf("unknown pointcut reference %q", value)
	}
	if strings.TrimSpace(expression) == "" {
		return "", fmt.Errorf("pointcut %s has no expression", name)
	}
	return expression, nil
}

// checkSignature validates an advice method type obtained from a reflect.Type, receiver first.
func checkSignature(kind AdviceKind, methodType reflect.Type) error {
	if methodType.IsVariadic() {
		return errors.New("advice method must not be variadic")
	}
	switch {
	case methodType.NumOut() == 0:
	case methodType.NumOut() == 1 && methodType.Out(0) == errorType:
	default:
		return fmt.Errorf("advice method may only return error, got %s", methodType)
	}
	params := make([]reflect.Type, 0, methodType.NumIn())
	for i := 1; i < methodType.NumIn(); i++ {
		params = append(params, methodType.In(i))
	}
	for _, allowed := range allowedParams(kind) {
		if sameTypes(params, allowed) {
			return nil
		}
	}
	return fmt.Errorf("unsupported %s advice signature %s", kind, methodType)
}

func allowedParams(kind AdviceKind) [][]reflect.Type {
	allowed := [][]reflect.Type{{}, {joinPointType}}
	switch kind {
	case AfterReturningKind:
		allowed = append(allowed, []reflect.Type{anyType}, []reflect.Type{joinPointType, anyType})
	case AfterThrowingKind:
		allowed = append(allowed, []reflect.Type{errorType}, []reflect.Type{joinPointType, errorType})
	}
	return allowed
}

func sameTypes(a, b []reflect.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bind(kind AdviceKind, fn reflect.Value) MethodInterceptor {
	switch kind {
	case BeforeKind:
		return Before(func(jp JoinPoint) error { return callAdvice(fn, jp, nil) })
	case AfterKind:
		return After(func(jp JoinPoint) error { return callAdvice(fn, jp, nil) })
	case AfterReturningKind:
		return AfterReturning(func(jp JoinPoint, result any) error { return callAdvice(fn, jp, result) })
	default:
		return AfterThrowing(func(jp JoinPoint, err error) error { return callAdvice(fn, jp, err) })
	}
}

func callAdvice(fn reflect.Value, jp JoinPoint, extra any) error {
	fnType := fn.Type()
	in := make([]reflect.Value, fnType.NumIn())
	for i := range in {
		switch {
		case fnType.In(i) == joinPointType:
			in[i] = reflect.ValueOf(jp)
		case extra == nil:
			in[i] = reflect.Zero(fnType.In(i))
		default:
			in[i] = reflect.ValueOf(extra)
		}
	}
	out := fn.Call(in)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
