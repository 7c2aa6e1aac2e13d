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

// Package marker reads the declarative markers attached to bean types, their fields and their methods.
//
// Go has no annotations, so markers come from two places: struct tags (type and field markers) and the
// Annotated interface (method markers).
package marker

import "reflect"

// Kind is a capability tag carried by a type, a field or a method.
type Kind string

const (
	// Type markers.
	Name   Kind = "di.name"
	Scope  Kind = "di.scope"
	Lazy   Kind = "di.lazy"
	Aspect Kind = "di.aspect"

	// Field markers.
	Inject   Kind = "di.inject"
	Optional Kind = "di.optional"

	// Method markers.
	Init           Kind = "init"
	Pointcut       Kind = "pointcut"
	Before         Kind = "before"
	After          Kind = "after"
	AfterReturning Kind = "afterReturning"
	AfterThrowing  Kind = "afterThrowing"
)

// Set holds the markers found on a single element, keyed by kind, with their payload values.
type Set map[Kind]string

// Has reports whether the element carries the marker.
func (s Set) Has(kind Kind) bool {
	_, ok := s[kind]
	return ok
}

// Value returns the marker payload, or an empty string.
func (s Set) Value(kind Kind) string {
	return s[kind]
}

// Of builds a single-marker set.
func Of(kind Kind, value string) Set {
	return Set{kind: value}
}

// With returns a copy of the set extended with one more marker.
func (s Set) With(kind Kind, value string) Set {
	out := make(Set, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[kind] = value
	return out
}

// Annotations maps method names to their markers.
type Annotations map[string]Set

// Annotated is implemented by types that declare method markers. Annotations is called on a zero value, so it
// must return a static description.
type Annotated interface {
	Annotations() Annotations
}

// Component can be embedded to carry type markers in its tag:
//
//	type UserService struct {
//		marker.Component `di.name:"users" di.scope:"prototype"`
//	}
type Component struct{}

// AspectSource marks a type as an aspect source when embedded.
type AspectSource struct{}

var aspectSourceType = reflect.TypeOf(AspectSource{})

// Reader answers marker queries. The container depends only on this interface.
type Reader interface {
	TypeMarkers(t reflect.Type) Set
	FieldMarkers(f reflect.StructField) Set
	MethodMarkers(t reflect.Type, method string) Set
}
