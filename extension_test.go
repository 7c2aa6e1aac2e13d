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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appending(name string) Extension {
	return Extension{
		Stage: AfterInitialization,
		Name:  name,
		Process: func(bean any, _ string) (any, error) {
			return bean.(string) + name, nil
		},
	}
}

func TestExtensionChainOrder(t *testing.T) {
	chain := &extensionChain{}
	require.NoError(t, chain.add(appending("a")))
	require.NoError(t, chain.add(appending("b")))
	require.NoError(t, chain.add(appending("c")))

	result, err := chain.apply(AfterInitialization, "", "bean")
	require.NoError(t, err)
	assert.Equal(t, "abc", result)

	// re-adding moves the extension to the end
	require.NoError(t, chain.add(appending("a")))
	result, err = chain.apply(AfterInitialization, "", "bean")
	require.NoError(t, err)
	assert.Equal(t, "bca", result)
	assert.Len(t, chain.stage(AfterInitialization), 3)
	assert.Empty(t, chain.stage(EarlyReference))
}

func TestExtensionChainKeepsValueOnNil(t *testing.T) {
	chain := &extensionChain{}
	require.NoError(t, chain.add(Extension{
		Stage:   BeforeInitialization,
		Name:    "noop",
		Process: func(bean any, _ string) (any, error) { return nil, nil },
	}))
	result, err := chain.apply(BeforeInitialization, "value", "bean")
	require.NoError(t, err)
	assert.Equal(t, "value", result)
}

func TestBeforeInstantiationFirstAnswerWins(t *testing.T) {
	chain := &extensionChain{}
	calls := 0
	for i, answer := range []any{nil, "first", "second"} {
		answer := answer
		require.NoError(t, chain.add(Extension{
			Stage: BeforeInstantiation,
			Name:  fmt.Sprintf("answer%d", i),
			Instantiate: func(*Definition) (any, error) {
				calls++
				return answer, nil
			},
		}))
	}
	bean, err := chain.beforeInstantiation(&Definition{Name: "bean"})
	require.NoError(t, err)
	assert.Equal(t, "first", bean)
	assert.Equal(t, 2, calls)

	failing := &extensionChain{}
	require.NoError(t, failing.add(Extension{
		Stage:       BeforeInstantiation,
		Name:        "failing",
		Instantiate: func(*Definition) (any, error) { return nil, errors.New("nope") },
	}))
	_, err = failing.beforeInstantiation(&Definition{Name: "bean"})
	assert.EqualError(t, err, "extension failing: nope")
}

func TestExtensionValidation(t *testing.T) {
	tests := []Extension{
		{Stage: AfterInitialization},
		{Stage: BeforeInstantiation, Name: "missing instantiate"},
		{Stage: EarlyReference, Name: "missing process"},
		{Stage: Stage(42), Name: "unknown", Process: func(any, string) (any, error) { return nil, nil }},
	}
	for _, ext := range tests {
		assert.Error(t, (&extensionChain{}).add(ext), ext.Name)
	}
	assert.Equal(t, "early-reference", EarlyReference.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
