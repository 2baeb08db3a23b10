// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-whistle-service/pkg/constants"
)

// AuthorizationMiddleware copies the authorization header into the request
// context. Validation happens in the API handlers, since guests may call
// some endpoints without a token.
func AuthorizationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authorization := r.Header.Get(constants.AuthorizationHeader); authorization != "" {
				ctx := context.WithValue(r.Context(), constants.AuthorizationContextID, authorization)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
