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

package aop

import (
	"errors"
	"fmt"
)

// ErrNoContract is returned when a target implements none of the registered proxy contracts.
var ErrNoContract = errors.New("no proxy contract implemented by target")

// ConfigurationError reports a malformed aspect declaration: an unknown pointcut reference, an expression the
// evaluator rejects or an unsupported advice method signature. It is raised at startup, never at call time.
type ConfigurationError struct {
	Source  string
	Element string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("configuration error in %s.%s: %v", e.Source, e.Element, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
