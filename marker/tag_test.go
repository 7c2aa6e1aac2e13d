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
	"testing"

	"github.com/stretchr/testify/assert"
)

type base struct{}

func (b *base) Annotations() Annotations {
	return Annotations{
		"Warmup": Of(Init, ""),
		"Reload": Of(Init, ""),
	}
}

type service struct {
	base
	Component `di.name:"svc" di.scope:"prototype" di.lazy:"true"`
	Repo      *string `di.inject:"repository" di.optional:"true"`
	other     *string `di.inject:""`
	plain     string
}

func (s *service) Annotations() Annotations {
	return Annotations{
		"Reload": Of(Before, "execution(* *(..))"),
	}
}

type loggingAspect struct {
	AspectSource
}

type taggedAspect struct {
	Scope string `di.aspect:"true"`
}

func TestTypeMarkers(t *testing.T) {
	reader := NewTagReader()
	markers := reader.TypeMarkers(reflect.TypeOf((*service)(nil)))
	assert.Equal(t, "svc", markers.Value(Name))
	assert.Equal(t, "prototype", markers.Value(Scope))
	assert.Equal(t, "true", markers.Value(Lazy))
	assert.False(t, markers.Has(Aspect))

	assert.True(t, reader.TypeMarkers(reflect.TypeOf((*loggingAspect)(nil))).Has(Aspect))
	assert.True(t, reader.TypeMarkers(reflect.TypeOf(taggedAspect{})).Has(Aspect))
	assert.Empty(t, reader.TypeMarkers(reflect.TypeOf(new(string))))
	assert.Empty(t, reader.TypeMarkers(nil))
}

func TestFieldMarkers(t *testing.T) {
	reader := NewTagReader()
	serviceType := reflect.TypeOf(service{})

	repo, _ := serviceType.FieldByName("Repo")
	markers := reader.FieldMarkers(repo)
	assert.Equal(t, "repository", markers.Value(Inject))
	assert.Equal(t, "true", markers.Value(Optional))

	other, _ := serviceType.FieldByName("other")
	markers = reader.FieldMarkers(other)
	assert.True(t, markers.Has(Inject))
	assert.Equal(t, "", markers.Value(Inject))

	plain, _ := serviceType.FieldByName("plain")
	assert.False(t, reader.FieldMarkers(plain).Has(Inject))
}

func TestMethodMarkersMergeEmbeddedTypes(t *testing.T) {
	reader := NewTagReader()
	serviceType := reflect.TypeOf((*service)(nil))

	assert.True(t, reader.MethodMarkers(serviceType, "Warmup").Has(Init))
	reload := reader.MethodMarkers(serviceType, "Reload")
	assert.True(t, reload.Has(Before))
	assert.False(t, reload.Has(Init))
	assert.Empty(t, reader.MethodMarkers(serviceType, "Missing"))
	// cached result is stable
	assert.Equal(t, reload, reader.MethodMarkers(serviceType, "Reload"))
}

func TestSetWith(t *testing.T) {
	set := Of(AfterReturning, "@Service")
	extended := set.With(Init, "")
	assert.True(t, extended.Has(Init))
	assert.True(t, extended.Has(AfterReturning))
	assert.False(t, set.Has(Init))
}
