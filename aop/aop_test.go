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
	"strings"
)

var errBoom = errors.New("boom")

type Greeter interface {
	Greet(name string) (string, error)
	Sum(values ...int) int
	Fail() error
	Shout()
}

type greeter struct {
	calls  int
	shouts int
}

func (g *greeter) Greet(name string) (string, error) {
	g.calls++
	return "hello " + name, nil
}

func (g *greeter) Sum(values ...int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func (g *greeter) Fail() error {
	return errBoom
}

func (g *greeter) Shout() {
	g.shouts++
}

type greeterProxy struct {
	*Proxy
}

func (p greeterProxy) Greet(name string) (string, error) {
	results := p.Invoke("Greet", name)
	return Result[string](results, 0), Err(results)
}

func (p greeterProxy) Sum(values ...int) int {
	return Result[int](p.Invoke("Sum", values), 0)
}

func (p greeterProxy) Fail() error {
	return Err(p.Invoke("Fail"))
}

func (p greeterProxy) Shout() {
	p.Invoke("Shout")
}

// recorder collects advice events in call order.
type recorder struct {
	events []string
}

func (r *recorder) add(event string) {
	r.events = append(r.events, event)
}

func (r *recorder) String() string {
	return strings.Join(r.events, ",")
}

func recording(r *recorder, name string) MethodInterceptor {
	return InterceptorFunc(func(invocation MethodInvocation) ([]any, error) {
		r.add(name + ">")
		results, err := invocation.Proceed()
		r.add("<" + name)
		return results, err
	})
}

func (g *greeter) Explode() {
	panic("exploded")
}
