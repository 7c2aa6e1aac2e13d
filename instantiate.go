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

	"github.com/bloomboot/di/aop"
)

var errFactoryResult = errors.New("bean factory must return pointer")

// instantiationStrategy allocates the raw bean. The strategy is a pure function of the definition.
type instantiationStrategy interface {
	instantiate(def *Definition) (any, error)
	String() string
}

// factoryStrategy calls the registered factory.
type factoryStrategy struct{}

func (factoryStrategy) instantiate(def *Definition) (any, error) {
	bean, err := def.Factory()
	if err != nil {
		return nil, err
	}
	if bean == nil || reflect.TypeOf(bean).Kind() != reflect.Ptr {
		return nil, errFactoryResult
	}
	return bean, nil
}

func (factoryStrategy) String() string {
	return "factory"
}

// contractStrategy allocates a bean that implements a proxy contract and can therefore be intercepted.
type contractStrategy struct{}

func (contractStrategy) instantiate(def *Definition) (any, error) {
	return reflect.New(def.Type.Elem()).Interface(), nil
}

func (contractStrategy) String() string {
	return "contract"
}

// plainStrategy allocates a bean no proxy can stand in for.
type plainStrategy struct{}

func (plainStrategy) instantiate(def *Definition) (any, error) {
	return reflect.New(def.Type.Elem()).Interface(), nil
}

func (plainStrategy) String() string {
	return "plain"
}

func strategyFor(def *Definition, contracts *aop.Contracts) instantiationStrategy {
	switch {
	case def.Factory != nil:
		return factoryStrategy{}
	case contracts.Supports(def.Type):
		return contractStrategy{}
	default:
		return plainStrategy{}
	}
}
