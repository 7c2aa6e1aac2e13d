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
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// containerMetrics instruments bean creation and proxying. A nil value records nothing.
type containerMetrics struct {
	creations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	proxies   prometheus.Counter
}

func newContainerMetrics(registerer prometheus.Registerer) (*containerMetrics, error) {
	creations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bloom",
		Subsystem: "container",
		Name:      "bean_creations_total",
		Help:      "Number of beans created, by scope, instantiation strategy and outcome.",
	}, []string{"scope", "strategy", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bloom",
		Subsystem: "container",
		Name:      "bean_creation_duration_seconds",
		Help:      "Time spent creating beans, dependencies included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"scope", "strategy"})
	proxies := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bloom",
		Subsystem: "container",
		Name:      "proxies_total",
		Help:      "Number of proxies created by the auto-proxy.",
	})

	var err error
	if creations, err = registerCollector(registerer, creations); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(registerer, duration); err != nil {
		return nil, err
	}
	if proxies, err = registerCollector(registerer, proxies); err != nil {
		return nil, err
	}
	return &containerMetrics{creations: creations, duration: duration, proxies: proxies}, nil
}

// registerCollector registers the collector, reusing the one already registered under the same descriptor.
func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
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

func (m *containerMetrics) observeCreation(scope Scope, strategy string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.creations.WithLabelValues(string(scope), strategy, outcome).Inc()
	m.duration.WithLabelValues(string(scope), strategy).Observe(elapsed.Seconds())
}

func (m *containerMetrics) proxyCreated() {
	if m == nil {
		return
	}
	m.proxies.Inc()
}
