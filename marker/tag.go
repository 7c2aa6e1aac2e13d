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

package marker

import (
	"reflect"
	"sync"
)

var annotatedType = reflect.TypeOf((*Annotated)(nil)).Elem()

var typeTags = []Kind{Name, Scope, Lazy, Aspect}

// TagReader is the default Reader: type markers are read from the tags of any field of the struct, field markers
// from the field's own tag and method markers from Annotations of the type and of every embedded type.
type TagReader struct {
	annotations sync.Map // reflect.Type -> Annotations
}

// NewTagReader creates a TagReader.
func NewTagReader() *TagReader {
	return &TagReader{}
}

func (r *TagReader) TypeMarkers(t reflect.Type) Set {
	set := Set{}
	t = structType(t)
	if t == nil {
		return set
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == aspectSourceType {
			set[Aspect] = "true"
		}
		for _, kind := range typeTags {
			if _, ok := set[kind]; ok {
				continue
			}
			if value, ok := field.Tag.Lookup(string(kind)); ok {
				set[kind] = value
			}
		}
	}
	return set
}

func (r *TagReader) FieldMarkers(f reflect.StructField) Set {
	set := Set{}
	if value, ok := f.Tag.Lookup(string(Inject)); ok {
		set[Inject] = value
	}
	if value, ok := f.Tag.Lookup(string(Optional)); ok {
		set[Optional] = value
	}
	return set
}

func (r *TagReader) MethodMarkers(t reflect.Type, method string) Set {
	if set, ok := r.annotationsOf(t)[method]; ok {
		return set
	}
	return Set{}
}

func (r *TagReader) annotationsOf(t reflect.Type) Annotations {
	if cached, ok := r.annotations.Load(t); ok {
		return cached.(Annotations)
	}
	out := Annotations{}
	collectAnnotations(t, out, make(map[reflect.Type]bool))
	r.annotations.Store(t, out)
	return out
}

// collectAnnotations merges the annotations of t and its embedded types; the outermost declaration of a method
// name wins, mirroring Go's method promotion.
func collectAnnotations(t reflect.Type, out Annotations, seen map[reflect.Type]bool) {
	elem := t
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if seen[elem] {
		return
	}
	seen[elem] = true
	ptr := reflect.PointerTo(elem)
	if ptr.Implements(annotatedType) {
		for name, set := range callAnnotations(ptr) {
			if _, ok := out[name]; !ok {
				out[name] = set
			}
		}
	}
	if elem.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		if !field.Anonymous {
			continue
		}
		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			collectAnnotations(ft, out, seen)
		}
	}
}

func callAnnotations(ptr reflect.Type) (annotations Annotations) {
	defer func() {
		// promoted through a nil embedded pointer
		if recover() != nil {
			annotations = nil
		}
	}()
	return reflect.New(ptr.Elem()).Interface().(Annotated).Annotations()
}

func structType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}
