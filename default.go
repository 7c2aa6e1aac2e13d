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
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/bloomboot/di/aop"
	"github.com/sirupsen/logrus"
)

var initializeLock sync.Mutex
var containerInitialized int32 = 0
var defaultContainer = New()

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{})
}

func initialized() bool {
	return atomic.LoadInt32(&containerInitialized) == 1
}

// InitializeContainer refreshes the default container. It can be called only once.
func InitializeContainer() error {
	initializeLock.Lock()
	defer initializeLock.Unlock()
	if !atomic.CompareAndSwapInt32(&containerInitialized, 0, 1) {
		return errors.New("container is already initialized: reinitialization is not supported")
	}
	if err := defaultContainer.Refresh(); err != nil {
		atomic.StoreInt32(&containerInitialized, 0)
		return err
	}
	return nil
}

// RegisterBean registers a bean type with the default container.
func RegisterBean(beanID string, beanType reflect.Type) (overwritten bool, err error) {
	initializeLock.Lock()
	defer initializeLock.Unlock()
	if initialized() {
		return false, errors.New("container is already initialized: can't register new bean")
	}
	return defaultContainer.RegisterBean(beanID, beanType)
}

// RegisterBeanInstance registers a ready-made singleton with the default container.
func RegisterBeanInstance(beanID string, beanInstance any) (overwritten bool, err error) {
	initializeLock.Lock()
	defer initializeLock.Unlock()
	if initialized() {
		return false, errors.New("container is already initialized: can't register new bean")
	}
	return defaultContainer.RegisterBeanInstance(beanID, beanInstance)
}

// RegisterBeanFactory registers a bean factory with the default container.
func RegisterBeanFactory(beanID string, beanScope Scope, beanFactory func() (any, error)) (overwritten bool, err error) {
	initializeLock.Lock()
	defer initializeLock.Unlock()
	if initialized() {
		return false, errors.New("container is already initialized: can't register new bean factory")
	}
	return defaultContainer.RegisterBeanFactory(beanID, beanScope, beanFactory)
}

// RegisterBeanPostprocessor registers a postprocessor for beans of exactly beanType with the default container.
func RegisterBeanPostprocessor(beanType reflect.Type, postprocessor func(bean any) error) error {
	initializeLock.Lock()
	defer initializeLock.Unlock()
	if initialized() {
		return errors.New("container is already initialized: can't register bean postprocessor")
	}
	return defaultContainer.RegisterBeanPostprocessor(beanType, postprocessor)
}

// AddAdvisor adds a programmatic advisor to the default container.
func AddAdvisor(expression string, interceptor aop.MethodInterceptor) error {
	initializeLock.Lock()
	defer initializeLock.Unlock()
	if initialized() {
		return errors.New("container is already initialized: can't add advisor")
	}
	return defaultContainer.AddAdvisor(expression, interceptor)
}

// Contracts returns the proxy contracts of the default container.
func Contracts() *aop.Contracts {
	return defaultContainer.Contracts()
}

// GetInstance returns a bean from the default container and panics on failure.
func GetInstance(beanID string) any {
	if !initialized() {
		panic("container is not initialized: can't lookup instances of beans yet")
	}
	instance, err := defaultContainer.GetBean(beanID)
	if err != nil {
		panic(err)
	}
	return instance
}

// GetInstanceSafe returns a bean from the default container.
func GetInstanceSafe(beanID string) (any, error) {
	if !initialized() {
		return nil, errors.New("container is not initialized: can't lookup instances of beans yet")
	}
	return defaultContainer.GetBean(beanID)
}

// GetBeanTypes returns a copy of the bean types registered with the default container.
func GetBeanTypes() map[string]reflect.Type {
	return defaultContainer.Types()
}

// GetBeanScopes returns a copy of the bean scopes registered with the default container.
func GetBeanScopes() map[string]Scope {
	return defaultContainer.Scopes()
}

// Close tears the default container down.
func Close() error {
	return defaultContainer.Close()
}

// Middleware injects the request-scoped beans of the default container into each request context.
func Middleware(next http.Handler) http.Handler {
	return defaultContainer.Middleware(next)
}

func resetContainer() {
	initializeLock.Lock()
	defer initializeLock.Unlock()
	containerInitialized = 0
	defaultContainer = New()
}
