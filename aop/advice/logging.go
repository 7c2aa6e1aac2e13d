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
	"time"

	"github.com/bloomboot/di/aop"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logging logs every intercepted call at debug level, tagged with an invocation id and the call duration.
// Failed calls are logged at error level.
func Logging(entry *logrus.Entry) aop.MethodInterceptor {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return aop.InterceptorFunc(func(invocation aop.MethodInvocation) ([]any, error) {
		log := entry.WithFields(logrus.Fields{
			"invocation": uuid.NewString(),
			"type":       typeName(invocation.This()),
			"method":     invocation.Method().Name,
		})
		log.Debug("Invoking method")
		start := time.Now()
		results, err := invocation.Proceed()
		log = log.WithField("duration", time.Since(start))
		if err != nil {
			log.WithError(err).Error("Method failed")
			return results, err
		}
		log.Debug("Method returned")
		return results, nil
	})
}
