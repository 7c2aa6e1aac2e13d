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

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ClassFilter is the coarse filter deciding whether a bean type is worth considering at all.
type ClassFilter interface {
	MatchesType(t reflect.Type) bool
}

// MethodMatcher is the fine filter deciding whether a single method call is intercepted.
type MethodMatcher interface {
	MatchesMethod(method reflect.Method, targetType reflect.Type) bool
}

// MethodMatcherFunc adapts a function to MethodMatcher.
type MethodMatcherFunc func(method reflect.Method, targetType reflect.Type) bool

func (f MethodMatcherFunc) MatchesMethod(method reflect.Method, targetType reflect.Type) bool {
	return f(method, targetType)
}

// AnyMethod matches when at least one of the matchers does.
func AnyMethod(matchers ...MethodMatcher) MethodMatcher {
	return MethodMatcherFunc(func(method reflect.Method, targetType reflect.Type) bool {
		for _, matcher := range matchers {
			if matcher.MatchesMethod(method, targetType) {
				return true
			}
		}
		return false
	})
}

// Pointcut selects join points by type and by method.
type Pointcut interface {
	ClassFilter
	MethodMatcher
	Expression() string
}

// Evaluator turns a textual expression into a Pointcut.
type Evaluator interface {
	Parse(expression string) (Pointcut, error)
}

var executionPattern = regexp.MustCompile(`^execution\(\s*(.*?)\s*([^\s(]+)\(([^)]*)\)\s*\)$`)

const matchCacheSize = 512

// ExecutionEvaluator understands "execution(<ret> [<type>.]<method>(<params>))" expressions.
//
// Every part is a glob: "*" matches any run of characters, "?" a single one. The declaring type is matched
// against both the short ("pkg.Type") and the fully qualified ("import/path.Type") name of the target, without
// the pointer star. Parameters are a comma separated list of type globs; ".." matches any remaining
// parameters. A visibility modifier in front of the return type is accepted and ignored. Methods without results
// have the return type "void"; several results read as "(T1, T2)".
type ExecutionEvaluator struct{}

// NewExecutionEvaluator creates the default evaluator.
func NewExecutionEvaluator() *ExecutionEvaluator {
	return &ExecutionEvaluator{}
}

func (e *ExecutionEvaluator) Parse(expression string) (Pointcut, error) {
	groups := executionPattern.FindStringSubmatch(strings.TrimSpace(expression))
	if groups == nil {
		return nil, fmt.Errorf("unsupported pointcut expression: %q", expression)
	}
	returns := strings.TrimSpace(groups[1])
	for _, modifier := range []string{"public ", "protected ", "private "} {
		returns = strings.TrimSpace(strings.TrimPrefix(returns, modifier))
	}
	if returns == "" {
		return nil, fmt.Errorf("missing return type pattern in %q", expression)
	}
	p := &executionPointcut{
		expression: expression,
		returns:    returns,
		method:     groups[2],
	}
	if dot := strings.LastIndex(groups[2], "."); dot >= 0 {
		p.declaringType = groups[2][:dot]
		p.method = groups[2][dot+1:]
	}
	if params := strings.TrimSpace(groups[3]); params != "" {
		for _, param := range strings.Split(params, ",") {
			p.params = append(p.params, strings.TrimSpace(param))
		}
	}
	for _, pattern := range append([]string{p.returns, p.declaringType, p.method}, p.params...) {
		if pattern != "" && pattern != ".." && !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("bad pattern %q in %q", pattern, expression)
		}
	}
	for i, param := range p.params {
		if param == ".." && i != len(p.params)-1 {
			return nil, errors.New("\"..\" must be the last parameter pattern in " + expression)
		}
	}
	cache, err := lru.New[matchKey, bool](matchCacheSize)
	if err != nil {
		return nil, err
	}
	p.cache = cache
	return p, nil
}

type matchKey struct {
	targetType reflect.Type
	method     string
}

type executionPointcut struct {
	expression    string
	returns       string
	declaringType string
	method        string
	params        []string
	cache         *lru.Cache[matchKey, bool]
}

func (p *executionPointcut) Expression() string {
	return p.expression
}

func (p *executionPointcut) MatchesType(t reflect.Type) bool {
	if t == nil || !p.matchesDeclaringType(t) {
		return false
	}
	for i := 0; i < t.NumMethod(); i++ {
		if p.MatchesMethod(t.Method(i), t) {
			return true
		}
	}
	return false
}

func (p *executionPointcut) MatchesMethod(method reflect.Method, targetType reflect.Type) bool {
	key := matchKey{targetType: targetType, method: method.Name}
	if matched, ok := p.cache.Get(key); ok {
		return matched
	}
	matched := p.matchesDeclaringType(targetType) &&
		glob(p.method, method.Name) &&
		glob(p.returns, resultsString(method.Type)) &&
		p.matchesParams(method.Type)
	p.cache.Add(key, matched)
	return matched
}

func (p *executionPointcut) matchesDeclaringType(t reflect.Type) bool {
	if p.declaringType == "" {
		return true
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if glob(p.declaringType, t.String()) {
		return true
	}
	return t.PkgPath() != "" && glob(p.declaringType, t.PkgPath()+"."+t.Name())
}

// matchesParams skips the receiver, methods obtained from a reflect.Type carry it as the first input.
func (p *executionPointcut) matchesParams(methodType reflect.Type) bool {
	in := methodType.NumIn() - 1
	for i, pattern := range p.params {
		if pattern == ".." {
			return true
		}
		if i >= in || !glob(pattern, methodType.In(i+1).String()) {
			return false
		}
	}
	return len(p.params) == in
}

func resultsString(methodType reflect.Type) string {
	switch methodType.NumOut() {
	case 0:
		return "void"
	case 1:
		return methodType.Out(0).String()
	}
	out := make([]string, 0, methodType.NumOut())
	for i := 0; i < methodType.NumOut(); i++ {
		out = append(out, methodType.Out(i).String())
	}
	return "(" + strings.Join(out, ", ") + ")"
}

func glob(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	return err == nil && matched
}
