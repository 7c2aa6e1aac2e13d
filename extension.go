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
	"sync"
)

// Stage is the point of the bean lifecycle an extension hooks into.
type Stage int

const (
	// BeforeInstantiation may supply the bean instead of the container; the first non-nil answer wins.
	BeforeInstantiation Stage = iota
	// EarlyReference decorates the reference handed out to cycle partners before the bean is complete.
	EarlyReference
	// BeforeInitialization runs after injection, before the init callbacks.
	BeforeInitialization
	// AfterInitialization runs last and may replace the bean, typically with a proxy.
	AfterInitialization
)

func (s Stage) String() string {
	switch s {
	case BeforeInstantiation:
		return "before-instantiation"
	case EarlyReference:
		return "early-reference"
	case BeforeInitialization:
		return "before-initialization"
	case AfterInitialization:
		return "after-initialization"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Extension hooks into one stage of every bean's lifecycle. BeforeInstantiation extensions implement Instantiate,
// all others Process. Returning nil from either keeps the running value.
type Extension struct {
	Stage       Stage
	Name        string
	Instantiate func(def *Definition) (any, error)
	Process     func(bean any, name string) (any, error)
}

// ExtensionProvider is implemented by beans that contribute extensions; they are registered during Refresh.
type ExtensionProvider interface {
	Extensions() []Extension
}

func (e Extension) validate() error {
	if e.Name == "" {
		return errors.New("extension name must not be empty")
	}
	switch e.Stage {
	case BeforeInstantiation:
		if e.Instantiate == nil {
			return fmt.Errorf("extension %s: %s stage requires Instantiate", e.Name, e.Stage)
		}
	case EarlyReference, BeforeInitialization, AfterInitialization:
		if e.Process == nil {
			return fmt.Errorf("extension %s: %s stage requires Process", e.Name, e.Stage)
		}
	default:
		return fmt.Errorf("extension %s: unknown stage %d", e.Name, int(e.Stage))
	}
	return nil
}

type extensionChain struct {
	mu      sync.RWMutex
	entries []Extension
}

// add appends the extension; one registered under the same name is removed first.
func (c *extensionChain) add(ext Extension) error {
	if err := ext.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].Name == ext.Name {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			break
		}
	}
	c.entries = append(c.entries, ext)
	return nil
}

func (c *extensionChain) stage(stage Stage) []Extension {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Extension
	for _, ext := range c.entries {
		if ext.Stage == stage {
			out = append(out, ext)
		}
	}
	return out
}

func (c *extensionChain) beforeInstantiation(def *Definition) (any, error) {
	for _, ext := range c.stage(BeforeInstantiation) {
		bean, err := ext.Instantiate(def)
		if err != nil {
			return nil, fmt.Errorf("extension %s: %w", ext.Name, err)
		}
		if bean != nil {
			return bean, nil
		}
	}
	return nil, nil
}

func (c *extensionChain) apply(stage Stage, bean any, name string) (any, error) {
	current := bean
	for _, ext := range c.stage(stage) {
		next, err := ext.Process(current, name)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}
