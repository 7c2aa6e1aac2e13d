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
	"strconv"
	"unsafe"

	"github.com/bloomboot/di/marker"
	"github.com/sirupsen/logrus"
)

var errRequestBeanInjection = errors.New("request-scoped beans can't be injected: they can only be retrieved from the web-context")

type injectionPoint struct {
	index    []int
	field    string
	name     string
	typ      reflect.Type
	optional bool
}

type injectionPlan struct {
	points []injectionPoint
}

// plan returns the injection points of a pointer-to-struct type; plans are computed once per type.
func (c *Container) plan(t reflect.Type) (*injectionPlan, error) {
	if cached, ok := c.plans.Load(t); ok {
		return cached.(*injectionPlan), nil
	}
	plan := &injectionPlan{}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		if err := c.collectPoints(t.Elem(), nil, &plan.points); err != nil {
			return nil, err
		}
	}
	c.plans.Store(t, plan)
	return plan, nil
}

// collectPoints walks the fields of t, descending into embedded structs.
func (c *Container) collectPoints(t reflect.Type, prefix []int, points *[]injectionPoint) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		markers := c.reader.FieldMarkers(field)
		if !markers.Has(marker.Inject) {
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				if err := c.collectPoints(field.Type, index, points); err != nil {
					return err
				}
			}
			continue
		}
		if field.Type.Kind() != reflect.Ptr && field.Type.Kind() != reflect.Interface {
			return errors.New("unsupported dependency type: all injections must be done by reference")
		}
		optional := false
		if markers.Has(marker.Optional) {
			value := markers.Value(marker.Optional)
			var err error
			if optional, err = strconv.ParseBool(value); err != nil {
				return errors.New("invalid di.optional value: " + value)
			}
		}
		name := markers.Value(marker.Inject)
		if name == "" {
			name = decapitalize(field.Name)
		}
		*points = append(*points, injectionPoint{
			index:    index,
			field:    field.Name,
			name:     name,
			typ:      field.Type,
			optional: optional,
		})
	}
	return nil
}

func (c *Container) inject(beanName string, bean any, chain map[string]bool) error {
	plan, err := c.plan(reflect.TypeOf(bean))
	if err != nil {
		return err
	}
	if len(plan.points) == 0 {
		return nil
	}
	c.log.WithField("bean", beanName).Trace("Injecting dependencies")
	value := reflect.ValueOf(bean).Elem()
	for _, point := range plan.points {
		dependency, err := c.resolveDependency(point, chain)
		if err != nil {
			return &DependencyResolutionError{Bean: beanName, Field: point.field, Dependency: point.name, Err: err}
		}
		if dependency == nil {
			if point.optional {
				c.log.WithFields(logrus.Fields{
					"bean":  beanName,
					"field": point.field,
				}).Trace("No dependency found, injecting nil since the dependency marked as optional")
				continue
			}
			return &DependencyResolutionError{Bean: beanName, Field: point.field, Dependency: point.name, Err: errNoDependency}
		}
		field := value.FieldByIndex(point.index)
		field = reflect.NewAt(field.Type(), unsafe.Pointer(field.UnsafeAddr())).Elem()
		field.Set(reflect.ValueOf(dependency))
	}
	return nil
}

// resolveDependency looks the dependency up by name, then by type when the name is unknown or names a bean of
// another type. A nil result without error means nothing matched.
func (c *Container) resolveDependency(point injectionPoint, chain map[string]bool) (any, error) {
	if def, err := c.definitions.get(point.name); err == nil {
		if def.Scope == Request {
			return nil, errRequestBeanInjection
		}
		if def.Type == nil || def.Type.AssignableTo(point.typ) {
			bean, err := c.getBean(point.name, chain)
			if err != nil {
				return nil, err
			}
			if reflect.TypeOf(bean).AssignableTo(point.typ) {
				return bean, nil
			}
		}
	}
	name, err := c.nameForType(point.typ)
	if err != nil {
		var typeErr *TypeResolutionError
		if errors.As(err, &typeErr) && len(typeErr.Candidates) == 0 {
			return nil, nil
		}
		return nil, err
	}
	bean, err := c.getBean(name, chain)
	if err != nil {
		return nil, err
	}
	if !reflect.TypeOf(bean).AssignableTo(point.typ) {
		return nil, fmt.Errorf("bean %s of type %T is not assignable to %v", name, bean, point.typ)
	}
	return bean, nil
}
