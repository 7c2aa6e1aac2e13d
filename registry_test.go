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
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type destroyFunc func() error

func (f destroyFunc) Destroy() error {
	return f()
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func newTestRegistry() *instanceRegistry {
	return newInstanceRegistry(logrus.WithField("component", "test"))
}

func TestResolveTiers(t *testing.T) {
	registry := newTestRegistry()
	_, found, err := registry.resolve("bean")
	assert.NoError(t, err)
	assert.False(t, found)

	calls := 0
	early := new(string)
	registry.registerFactory("bean", func() (any, error) {
		calls++
		return early, nil
	})
	assert.Equal(t, tierFactory, registry.tier("bean"))

	for i := 0; i < 2; i++ {
		value, found, err := registry.resolve("bean")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Same(t, early, value)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, tierEarly, registry.tier("bean"))

	finished := new(string)
	registry.promote("bean", finished)
	assert.Equal(t, tierFinished, registry.tier("bean"))
	_, ok := registry.earlyValue("bean")
	assert.False(t, ok)

	registry.registerFactory("bean", func() (any, error) {
		return new(string), nil
	})
	value, _, _ := registry.resolve("bean")
	assert.Same(t, finished, value)

	registry.discard("bean")
	assert.Equal(t, tierFinished, registry.tier("bean"))
}

func TestResolveFactoryRunsOnceConcurrently(t *testing.T) {
	registry := newTestRegistry()
	var mu sync.Mutex
	calls := 0
	registry.registerFactory("bean", func() (any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return new(int), nil
	})

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, _ = registry.resolve("bean")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
	for _, result := range results {
		assert.Same(t, results[0], result)
	}
}

func TestResolveFactoryError(t *testing.T) {
	registry := newTestRegistry()
	factoryErr := errors.New("boom")
	registry.registerFactory("bean", func() (any, error) {
		return nil, factoryErr
	})
	_, found, err := registry.resolve("bean")
	assert.True(t, found)
	assert.Equal(t, factoryErr, err)

	registry.discard("bean")
	assert.Equal(t, tierAbsent, registry.tier("bean"))
}

func TestRegisterFactoryReplacesStaleEarlyReference(t *testing.T) {
	registry := newTestRegistry()
	registry.registerFactory("bean", func() (any, error) { return new(int), nil })
	stale, _, _ := registry.resolve("bean")

	registry.registerFactory("bean", func() (any, error) { return new(int), nil })
	assert.Equal(t, tierFactory, registry.tier("bean"))
	fresh, _, _ := registry.resolve("bean")
	assert.NotSame(t, stale, fresh)
}

func TestRegisterDisposable(t *testing.T) {
	registry := newTestRegistry()
	assert.True(t, registry.registerDisposable("destroyable", destroyFunc(func() error { return nil })))
	assert.True(t, registry.registerDisposable("closer", closerFunc(func() error { return nil })))
	assert.False(t, registry.registerDisposable("plain", new(string)))
	assert.Len(t, registry.disposables, 2)
}

func TestTeardownIsIdempotent(t *testing.T) {
	registry := newTestRegistry()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		registry.promote(name, name)
		registry.registerDisposable(name, destroyFunc(func() error {
			order = append(order, name)
			return nil
		}))
	}
	require.NoError(t, registry.teardownAll(FailFast))
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Equal(t, tierAbsent, registry.tier("a"))

	require.NoError(t, registry.teardownAll(FailFast))
	assert.Len(t, order, 3)
}

func TestTeardownFailFast(t *testing.T) {
	registry := newTestRegistry()
	destroyErr := errors.New("stuck")
	var order []string
	registry.registerDisposable("a", destroyFunc(func() error {
		order = append(order, "a")
		return nil
	}))
	registry.registerDisposable("b", destroyFunc(func() error {
		order = append(order, "b")
		return destroyErr
	}))
	registry.registerDisposable("c", destroyFunc(func() error {
		order = append(order, "c")
		return nil
	}))

	err := registry.teardownAll(FailFast)
	var disposalErr *DisposalError
	if assert.ErrorAs(t, err, &disposalErr) {
		assert.Equal(t, "b", disposalErr.Name)
	}
	assert.ErrorIs(t, err, destroyErr)
	assert.Equal(t, []string{"c", "b"}, order)
	assert.Len(t, registry.disposables, 1)

	require.NoError(t, registry.teardownAll(FailFast))
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestTeardownContinue(t *testing.T) {
	registry := newTestRegistry()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		registry.registerDisposable(name, destroyFunc(func() error {
			order = append(order, name)
			if name == "c" {
				return nil
			}
			return errors.New(name + " failed")
		}))
	}

	err := registry.teardownAll(Continue)
	assert.Equal(t, []string{"c", "b", "a"}, order)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], "error destroying bean b: b failed")
	assert.EqualError(t, errs[1], "error destroying bean a: a failed")
	assert.Empty(t, registry.disposables)
}

func TestEvictDependentsOfFailedIdentity(t *testing.T) {
	registry := newTestRegistry()
	registry.registerFactory("a", func() (any, error) { return "early a", nil })
	registry.trackDependents("a", tierFactory, map[string]bool{"a": true, "b": true})
	registry.promote("b", "b")
	registry.registerDisposable("b", destroyFunc(func() error { return nil }))
	registry.trackDependents("b", tierFinished, map[string]bool{"a": true, "c": true})
	registry.promote("c", "c")

	assert.ElementsMatch(t, []string{"b", "c"}, registry.evictDependents("a"))
	assert.Equal(t, tierAbsent, registry.tier("b"))
	assert.Equal(t, tierAbsent, registry.tier("c"))
	assert.Empty(t, registry.disposables)
	assert.Empty(t, registry.dependents)
	assert.Empty(t, registry.holds)
}

func TestSettleKeepsDependents(t *testing.T) {
	registry := newTestRegistry()
	registry.registerFactory("a", func() (any, error) { return "early a", nil })
	registry.trackDependents("a", tierFactory, map[string]bool{"a": true, "b": true})
	registry.promote("b", "b")
	registry.promote("a", "a")
	registry.settle("a")

	assert.Empty(t, registry.evictDependents("a"))
	assert.Equal(t, tierFinished, registry.tier("b"))
	assert.Empty(t, registry.holds)
}
