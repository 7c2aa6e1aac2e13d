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
	"fmt"

	"github.com/bloomboot/di/aop"
	"github.com/sirupsen/logrus"
)

// Tx is a unit of work started by a TxManager.
type Tx interface {
	Commit() error
	Rollback() error
}

// TxManager starts transactions.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// Transaction runs every intercepted call in its own transaction: committed when the call succeeds, rolled back
// when it returns an error or panics. A failing commit fails the call.
func Transaction(manager TxManager) aop.MethodInterceptor {
	return aop.InterceptorFunc(func(invocation aop.MethodInvocation) (results []any, err error) {
		tx, err := manager.Begin(contextOf(invocation))
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if r := recover(); r != nil {
				rollback(invocation, tx)
				panic(r)
			}
		}()

		results, err = invocation.Proceed()
		if err != nil {
			rollback(invocation, tx)
			return results, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return results, nil
	})
}

func rollback(invocation aop.MethodInvocation, tx Tx) {
	if err := tx.Rollback(); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "aop",
			"method":    invocation.Method().Name,
		}).WithError(err).Error("Rollback failed")
	}
}
