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

package advice

import (
	"context"
	"errors"
	"testing"

	"github.com/bloomboot/di/aop"
	"github.com/stretchr/testify/require"
)

var errInsufficient = errors.New("insufficient funds")

type accountService struct {
	balance int
	fail    error
	ctx     context.Context
}

func (s *accountService) Deposit(ctx context.Context, amount int) (int, error) {
	s.ctx = ctx
	if s.fail != nil {
		return 0, s.fail
	}
	s.balance += amount
	return s.balance, nil
}

func (s *accountService) Explode() {
	panic("exploded")
}

func proxyFor(t *testing.T, target any, interceptor aop.MethodInterceptor) *aop.Proxy {
	pointcut, err := aop.NewExecutionEvaluator().Parse("execution(* *(..))")
	require.NoError(t, err)
	advisor := aop.NewAdvisor(aop.AroundKind, "test", "", pointcut, interceptor)
	return aop.NewProxy(aop.NewAdvisedConfig(target, []*aop.Advisor{advisor}))
}
