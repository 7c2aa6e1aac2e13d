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

// Package advice provides ready-made interceptors for the common cross-cutting concerns.
package advice

import (
	"context"
	"reflect"

	"github.com/bloomboot/di/aop"
)

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// contextOf returns the first context.Context argument of the call, or context.Background.
func contextOf(jp aop.JoinPoint) context.Context {
	for _, arg := range jp.Arguments() {
		if ctx, ok := arg.(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// withContext replaces the first context.Context argument, if the method declares one.
func withContext(jp aop.JoinPoint, ctx context.Context) bool {
	args := jp.Arguments()
	for i := range args {
		if parameter(jp.Method().Type, i) == contextType {
			args[i] = ctx
			return true
		}
	}
	return false
}

// parameter returns the type of the i-th argument, skipping the receiver.
func parameter(methodType reflect.Type, i int) reflect.Type {
	if i+1 >= methodType.NumIn() {
		return nil
	}
	return methodType.In(i + 1)
}

func typeName(target any) string {
	t := reflect.TypeOf(target)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
