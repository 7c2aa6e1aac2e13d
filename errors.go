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
	"fmt"
	"reflect"
	"strings"

	"github.com/bloomboot/di/aop"
)

var (
	// ErrCircularDependency is wrapped by the error reported when a bean depends on itself through a chain that
	// the singleton cache can't break.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrNoContract is returned when a proxy is requested for a bean implementing no registered contract.
	ErrNoContract = aop.ErrNoContract

	errNoDependency = errors.New("no dependency found")
)

// ConfigurationError reports a malformed aspect declaration; it is raised by Refresh before any other singleton
// is created.
type ConfigurationError = aop.ConfigurationError

// NotFoundError is returned when no bean definition exists under a name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "no bean found with name: " + e.Name
}

// Is matches any NotFoundError when the target has no name, or the one for the same name.
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	return ok && (t.Name == "" || t.Name == e.Name)
}

// TypeResolutionError is returned when a lookup by type finds no candidate, or more than one in strict mode.
type TypeResolutionError struct {
	Type       reflect.Type
	Candidates []string
}

func (e *TypeResolutionError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no bean assignable to type %v", e.Type)
	}
	return fmt.Sprintf("ambiguous bean type %v: candidates %s", e.Type, strings.Join(e.Candidates, ", "))
}

// DependencyResolutionError is returned when a declared dependency can't be satisfied by name nor by type.
type DependencyResolutionError struct {
	Bean       string
	Field      string
	Dependency string
	Err        error
}

func (e *DependencyResolutionError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("can't inject %q into field %s of bean %s: %v", e.Dependency, e.Field, e.Bean, e.Err)
}

func (e *DependencyResolutionError) Unwrap() error {
	return e.Err
}

// BeanCreationError wraps any failure raised while a bean was being created, injected, initialized or extended.
type BeanCreationError struct {
	Name string
	Err  error
}

func (e *BeanCreationError) Error() string {
	return fmt.Sprintf("error creating bean %s: %v", e.Name, e.Err)
}

func (e *BeanCreationError) Unwrap() error {
	return e.Err
}

// DisposalError is returned when a teardown callback fails.
type DisposalError struct {
	Name string
	Err  error
}

func (e *DisposalError) Error() string {
	return fmt.Sprintf("error destroying bean %s: %v", e.Name, e.Err)
}

func (e *DisposalError) Unwrap() error {
	return e.Err
}

func circularDependency(name string) error {
	return &DependencyResolutionError{
		Dependency: name,
		Err:        fmt.Errorf("%w detected for bean: %s", ErrCircularDependency, name),
	}
}
