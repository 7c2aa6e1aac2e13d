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
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	service := &accountService{}
	proxy := proxyFor(t, service, Logging(logrus.NewEntry(logger)))

	results := proxy.Invoke("Deposit", context.Background(), 10)
	assert.Equal(t, 10, results[0])

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Invoking method", entries[0].Message)
	assert.Equal(t, "Method returned", entries[1].Message)
	assert.Equal(t, "advice.accountService", entries[0].Data["type"])
	assert.Equal(t, "Deposit", entries[0].Data["method"])
	assert.NotEmpty(t, entries[0].Data["invocation"])
	assert.Equal(t, entries[0].Data["invocation"], entries[1].Data["invocation"])
	assert.Contains(t, entries[1].Data, "duration")

	hook.Reset()
	service.fail = errInsufficient
	results = proxy.Invoke("Deposit", context.Background(), 10)
	assert.Equal(t, errInsufficient, results[1])
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, errInsufficient, hook.LastEntry().Data[logrus.ErrorKey])
}
