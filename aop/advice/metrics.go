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
	"errors"
	"time"

	"github.com/bloomboot/di/aop"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomePanic   = "panic"
)

// Metrics counts intercepted calls and observes their duration, labelled by type, method and outcome.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them. Collectors already registered under the same names
// are reused, so several proxies may share one registry.
func NewMetrics(registerer prometheus.Registerer, namespace string) (*Metrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "method_calls_total",
		Help:      "Number of intercepted method calls.",
	}, []string{"type", "method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "method_call_duration_seconds",
		Help:      "Duration of intercepted method calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type", "method", "outcome"})

	var err error
	if calls, err = register(registerer, calls); err != nil {
		return nil, err
	}
	if duration, err = register(registerer, duration); err != nil {
		return nil, err
	}
	return &Metrics{calls: calls, duration: duration}, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if registerer == nil {
		return collector, nil
	}
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

func (m *Metrics) Invoke(invocation aop.MethodInvocation) (results []any, err error) {
	start := time.Now()
	outcome := outcomePanic
	defer func() {
		labels := prometheus.Labels{
			"type":    typeName(invocation.This()),
			"method":  invocation.Method().Name,
			"outcome": outcome,
		}
		m.calls.With(labels).Inc()
		m.duration.With(labels).Observe(time.Since(start).Seconds())
	}()
	results, err = invocation.Proceed()
	outcome = outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	return results, err
}
