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
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// BeanKey is as a Context key, because usage of string keys is discouraged (due to obvious reasons).
type BeanKey string

// Middleware creates every request-scoped bean for each request and stores it in the request context under
// BeanKey(name). Beans implementing io.Closer are closed once the request context is done. A bean that can't be
// created fails the request with status 500.
func (c *Container) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		diContext := r.Context()
		for _, def := range c.definitions.all() {
			if def.Scope != Request {
				continue
			}
			bean, err := c.createBean(def, map[string]bool{def.Name: true})
			if err != nil {
				c.log.WithError(err).WithField("bean", def.Name).Error("Can't create request bean")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			diContext = context.WithValue(diContext, BeanKey(def.Name), bean)
			if closer, ok := bean.(io.Closer); ok {
				go c.closeOnDone(r.Context(), def.Name, closer)
			}
		}
		next.ServeHTTP(w, r.WithContext(diContext))
	})
}

func (c *Container) closeOnDone(ctx context.Context, name string, closer io.Closer) {
	<-ctx.Done()
	if err := closer.Close(); err != nil {
		c.log.WithFields(logrus.Fields{
			"bean": name,
		}).WithError(err).Warn("Can't close request bean")
	}
}
