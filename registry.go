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
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type tier int

const (
	tierAbsent tier = iota
	tierFinished
	tierEarly
	tierFactory
)

// TeardownPolicy decides what Close does when a bean fails to tear down.
type TeardownPolicy string

const (
	// FailFast stops at the first failure; beans not torn down yet stay registered.
	FailFast TeardownPolicy = "fail-fast"
	// Continue tears every bean down and reports all failures together.
	Continue TeardownPolicy = "continue"
)

// Disposable is implemented by beans that release resources at shutdown.
type Disposable interface {
	Destroy() error
}

type slot struct {
	tier     tier
	value    any
	factory  func() (any, error)
	once     sync.Once
	produced any
	err      error
}

type disposable struct {
	name    string
	destroy func() error
}

// instanceRegistry is the layered singleton cache. Every identity lives in at most one tier: finished beans
// (tier 1), early references (tier 2) and factories producing early references (tier 3).
//
// While an identity is unfinished, the beans that reached its early reference are tracked as its dependents,
// so a failed creation can take them down with it.
type instanceRegistry struct {
	mu          sync.Mutex
	slots       map[string]*slot
	disposables []disposable
	dependents  map[string]map[string]bool
	holds       map[string]map[string]bool
	log         *logrus.Entry
}

func newInstanceRegistry(log *logrus.Entry) *instanceRegistry {
	return &instanceRegistry{
		slots:      make(map[string]*slot),
		dependents: make(map[string]map[string]bool),
		holds:      make(map[string]map[string]bool),
		log:        log,
	}
}

// resolve looks the identity up tier by tier. A tier 3 factory runs at most once, its result moves to tier 2.
func (r *instanceRegistry) resolve(name string) (any, bool, error) {
	r.mu.Lock()
	s, ok := r.slots[name]
	if !ok {
		r.mu.Unlock()
		return nil, false, nil
	}
	if s.tier != tierFactory {
		value := s.value
		r.mu.Unlock()
		return value, true, nil
	}
	r.mu.Unlock()

	s.once.Do(func() {
		s.produced, s.err = s.factory()
	})
	if s.err != nil {
		return nil, true, s.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s.tier == tierFactory {
		s.tier = tierEarly
		s.value = s.produced
		s.factory = nil
		r.log.WithField("bean", name).Trace("Early reference exposed")
	}
	return s.value, true, nil
}

// registerFactory adds a tier 3 factory unless the identity is already finished. A stale early reference is
// dropped.
func (r *instanceRegistry) registerFactory(name string, factory func() (any, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[name]; ok && s.tier == tierFinished {
		return
	}
	r.slots[name] = &slot{tier: tierFactory, factory: factory}
}

// promote moves the identity to tier 1.
func (r *instanceRegistry) promote(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[name]
	if !ok {
		s = &slot{}
		r.slots[name] = s
	}
	s.tier = tierFinished
	s.value = value
	s.factory = nil
}

func (r *instanceRegistry) earlyValue(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[name]; ok && s.tier == tierEarly {
		return s.value, true
	}
	return nil, false
}

// discard drops an identity that never reached tier 1.
func (r *instanceRegistry) discard(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[name]; ok && s.tier != tierFinished {
		delete(r.slots, name)
	}
}

// trackDependents records the beans of consumers as dependents of every unfinished identity reachable through
// name: name itself when it was found in tier 2 or 3, or the identities a finished name still depends on.
func (r *instanceRegistry) trackDependents(name string, found tier, consumers map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var owners []string
	switch found {
	case tierEarly, tierFactory:
		owners = []string{name}
	case tierFinished:
		for owner := range r.holds[name] {
			owners = append(owners, owner)
		}
	}
	for _, owner := range owners {
		for consumer := range consumers {
			if consumer == owner {
				continue
			}
			if r.dependents[owner] == nil {
				r.dependents[owner] = make(map[string]bool)
			}
			r.dependents[owner][consumer] = true
			if r.holds[consumer] == nil {
				r.holds[consumer] = make(map[string]bool)
			}
			r.holds[consumer][owner] = true
		}
	}
}

// settle forgets the dependents of an identity that finished successfully.
func (r *instanceRegistry) settle(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for dependent := range r.dependents[name] {
		delete(r.holds[dependent], name)
		if len(r.holds[dependent]) == 0 {
			delete(r.holds, dependent)
		}
	}
	delete(r.dependents, name)
}

// evictDependents drops the identities that reached the early reference of a failed identity, finished or
// not, together with their teardown callbacks. It returns the evicted names.
func (r *instanceRegistry) evictDependents(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for dependent := range r.dependents[name] {
		delete(r.slots, dependent)
		for owner := range r.holds[dependent] {
			if owner != name {
				delete(r.dependents[owner], dependent)
			}
		}
		delete(r.holds, dependent)
		evicted = append(evicted, dependent)
	}
	delete(r.dependents, name)
	for owner := range r.holds[name] {
		delete(r.dependents[owner], name)
	}
	delete(r.holds, name)

	if len(evicted) > 0 {
		gone := make(map[string]bool, len(evicted))
		for _, n := range evicted {
			gone[n] = true
		}
		kept := r.disposables[:0]
		for _, d := range r.disposables {
			if !gone[d.name] {
				kept = append(kept, d)
			}
		}
		r.disposables = kept
	}
	return evicted
}

func (r *instanceRegistry) tier(name string) tier {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[name]; ok {
		return s.tier
	}
	return tierAbsent
}

// registerDisposable records the teardown callback of a bean implementing Disposable or io.Closer.
func (r *instanceRegistry) registerDisposable(name string, bean any) bool {
	var destroy func() error
	switch b := bean.(type) {
	case Disposable:
		destroy = b.Destroy
	case io.Closer:
		destroy = b.Close
	default:
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposables = append(r.disposables, disposable{name: name, destroy: destroy})
	return true
}

// teardownAll runs the teardown callbacks in reverse registration order and clears the cache once all of them
// have run. Calling it again after a complete run does nothing.
func (r *instanceRegistry) teardownAll(policy TeardownPolicy) error {
	r.mu.Lock()
	disposables := r.disposables
	r.mu.Unlock()

	var errs error
	for i := len(disposables) - 1; i >= 0; i-- {
		d := disposables[i]
		r.log.WithField("bean", d.name).Trace("Destroying bean")
		if err := d.destroy(); err != nil {
			disposalErr := &DisposalError{Name: d.name, Err: err}
			if policy != Continue {
				r.mu.Lock()
				r.disposables = disposables[:i]
				r.mu.Unlock()
				return disposalErr
			}
			errs = multierr.Append(errs, disposalErr)
		}
	}

	r.mu.Lock()
	r.disposables = nil
	r.slots = make(map[string]*slot)
	r.dependents = make(map[string]map[string]bool)
	r.holds = make(map[string]map[string]bool)
	r.mu.Unlock()
	return errs
}
