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

import "reflect"

// Locator discovers component types to register during Refresh.
type Locator interface {
	Locate() ([]reflect.Type, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func() ([]reflect.Type, error)

func (f LocatorFunc) Locate() ([]reflect.Type, error) {
	return f()
}

// Components is a static locator returning the given types.
func Components(types ...reflect.Type) Locator {
	return LocatorFunc(func() ([]reflect.Type, error) {
		return append([]reflect.Type(nil), types...), nil
	})
}
