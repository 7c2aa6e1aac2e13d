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

package advice

import (
	"fmt"

	"github.com/bloomboot/di/aop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/bloomboot/di/aop/advice"

// Tracing starts one span per intercepted call, named "<type>.<method>". The parent is taken from the first
// context.Context argument; when the method declares one, the span context replaces it for the target.
// A nil tracer uses the global provider.
func Tracing(tracer trace.Tracer) aop.MethodInterceptor {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return aop.InterceptorFunc(func(invocation aop.MethodInvocation) (results []any, err error) {
		typ := typeName(invocation.This())
		method := invocation.Method().Name
		ctx, span := tracer.Start(contextOf(invocation), typ+"."+method,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("code.namespace", typ),
				attribute.String("code.function", method),
			),
		)
		defer func() {
			if r := recover(); r != nil {
				span.RecordError(fmt.Errorf("panic: %v", r))
				span.SetStatus(codes.Error, "panic")
				span.End()
				panic(r)
			}
			span.End()
		}()
		withContext(invocation, ctx)

		results, err = invocation.Proceed()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return results, err
		}
		span.SetStatus(codes.Ok, "")
		return results, nil
	})
}
