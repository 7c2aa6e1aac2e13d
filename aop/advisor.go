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

import "reflect"

// AdviceKind tells when an advisor's interceptor acts relative to the target call.
type AdviceKind string

const (
	BeforeKind         AdviceKind = "before"
	AfterKind          AdviceKind = "after"
	AfterReturningKind AdviceKind = "afterReturning"
	AfterThrowingKind  AdviceKind = "afterThrowing"
	// AroundKind is used for interceptors registered programmatically.
	AroundKind AdviceKind = "around"
)

// Advisor pairs a pointcut with the interceptor to apply where it matches.
type Advisor struct {
	Kind        AdviceKind
	Source      string
	Method      string
	pointcut    Pointcut
	interceptor MethodInterceptor
}

// NewAdvisor creates an advisor. Source names the aspect it came from, method the advice method (empty for
// programmatic advisors).
func NewAdvisor(kind AdviceKind, source, method string, pointcut Pointcut, interceptor MethodInterceptor) *Advisor {
	return &Advisor{Kind: kind, Source: source, Method: method, pointcut: pointcut, interceptor: interceptor}
}

func (a *Advisor) Pointcut() Pointcut {
	return a.pointcut
}

func (a *Advisor) Interceptor() MethodInterceptor {
	return a.interceptor
}

// Matching filters advisors whose pointcut accepts t. The input order is preserved.
func Matching(advisors []*Advisor, t reflect.Type) []*Advisor {
	var out []*Advisor
	for _, advisor := range advisors {
		if advisor.pointcut.MatchesType(t) {
			out = append(out, advisor)
		}
	}
	return out
}
