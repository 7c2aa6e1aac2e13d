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
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var closedRequestBeans atomic.Int32

type requestBean struct {
	Scope Scope `di.scope:"request"`
}

func (rb *requestBean) Close() error {
	closedRequestBeans.Add(1)
	return nil
}

func (suite *TestSuite) TestMiddleware() {
	closedRequestBeans.Store(0)
	_, err := RegisterBean("requestBean", reflect.TypeOf((*requestBean)(nil)))
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), InitializeContainer())

	var mu sync.Mutex
	var seen []*requestBean
	router := chi.NewRouter()
	router.Use(Middleware)
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		instance, ok := r.Context().Value(BeanKey("requestBean")).(*requestBean)
		assert.True(suite.T(), ok)
		assert.NotNil(suite.T(), instance)
		mu.Lock()
		seen = append(seen, instance)
		mu.Unlock()
	})
	server := httptest.NewServer(router)
	defer server.Close()

	for i := 0; i < 2; i++ {
		response, err := http.Get(server.URL)
		require.NoError(suite.T(), err)
		_ = response.Body.Close()
		assert.Equal(suite.T(), http.StatusOK, response.StatusCode)
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(suite.T(), seen, 2)
	assert.NotSame(suite.T(), seen[0], seen[1])
	assert.Eventually(suite.T(), func() bool {
		return closedRequestBeans.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func (suite *TestSuite) TestFailRequestBeanCreation() {
	_, err := RegisterBeanFactory("requestBean", Request, func() (any, error) {
		return nil, errors.New("cannot initialize request bean")
	})
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), InitializeContainer())

	called := false
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(suite.T(), http.StatusInternalServerError, recorder.Code)
	assert.False(suite.T(), called)
}
