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
	"reflect"
	"sort"
	"strconv"
	"sync"
	"unicode"

	"github.com/bloomboot/di/marker"
	"github.com/sirupsen/logrus"
)

type Scope string

const (
	Singleton Scope = "singleton"
	Prototype Scope = "prototype"
	Request   Scope = "request"
)

// Definition describes one bean: its identity, type, scope and how to obtain it.
//
// Beans with a Factory (registered factories and instances) are never injected; all others are allocated from
// Type, which is a pointer to a struct. Type is nil for factory beans, whose type is known only once created.
type Definition struct {
	Name    string
	Type    reflect.Type
	Scope   Scope
	Lazy    bool
	Aspect  bool
	Factory func() (any, error)
}

func (d *Definition) injectable() bool {
	return d.Factory == nil
}

// definitionFor reads the type markers of t into a definition. An empty name defaults to the decapitalized type
// name.
func definitionFor(name string, t reflect.Type, reader marker.Reader) (*Definition, error) {
	markers := reader.TypeMarkers(t)
	scope, err := parseScope(markers)
	if err != nil {
		return nil, err
	}
	lazy, err := parseFlag(markers, marker.Lazy)
	if err != nil {
		return nil, err
	}
	aspect, err := parseFlag(markers, marker.Aspect)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = markers.Value(marker.Name)
	}
	if name == "" {
		name = defaultName(t)
	}
	return &Definition{Name: name, Type: t, Scope: scope, Lazy: lazy, Aspect: aspect}, nil
}

func parseScope(markers marker.Set) (Scope, error) {
	if !markers.Has(marker.Scope) {
		return Singleton, nil
	}
	scope := markers.Value(marker.Scope)
	switch Scope(scope) {
	case Singleton, Prototype, Request:
		return Scope(scope), nil
	}
	return "", errors.New("unsupported scope: " + scope)
}

func parseFlag(markers marker.Set, kind marker.Kind) (bool, error) {
	if !markers.Has(kind) {
		return false, nil
	}
	value := markers.Value(kind)
	if value == "" {
		return true, nil
	}
	flag, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.New("invalid " + string(kind) + " value: " + value)
	}
	return flag, nil
}

// defaultName decapitalizes the type name; names starting with two capitals (acronyms) are kept as they are.
func defaultName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return decapitalize(t.Name())
}

func decapitalize(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return name
	}
	if len(runes) > 1 && unicode.IsUpper(runes[0]) && unicode.IsUpper(runes[1]) {
		return name
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

type definitionRegistry struct {
	definitions sync.Map // string -> *Definition
	log         *logrus.Entry
}

func newDefinitionRegistry(log *logrus.Entry) *definitionRegistry {
	return &definitionRegistry{log: log}
}

// register stores the definition; an existing one under the same name is replaced.
func (r *definitionRegistry) register(def *Definition) (overwritten bool) {
	existing, loaded := r.definitions.Swap(def.Name, def)
	if loaded {
		r.log.WithFields(logrus.Fields{
			"id":              def.Name,
			"registered bean": existing.(*Definition).Type,
			"new bean":        def.Type,
		}).Warn("Bean with such ID is already registered, overwriting it")
	}
	return loaded
}

func (r *definitionRegistry) get(name string) (*Definition, error) {
	def, ok := r.definitions.Load(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return def.(*Definition), nil
}

// all returns every definition sorted by name.
func (r *definitionRegistry) all() []*Definition {
	var out []*Definition
	r.definitions.Range(func(_, value any) bool {
		out = append(out, value.(*Definition))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *definitionRegistry) types() map[string]reflect.Type {
	out := make(map[string]reflect.Type)
	r.definitions.Range(func(key, value any) bool {
		if t := value.(*Definition).Type; t != nil {
			out[key.(string)] = t
		}
		return true
	})
	return out
}

func (r *definitionRegistry) scopes() map[string]Scope {
	out := make(map[string]Scope)
	r.definitions.Range(func(key, value any) bool {
		out[key.(string)] = value.(*Definition).Scope
		return true
	})
	return out
}
