// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/go-jose/go-jose.v2"
	"gopkg.in/go-jose/go-jose.v2/jwt"
)

const testKeyID = "heimdall-test"

// heimdall signs tokens the way the gateway does and serves the matching
// JWKS document.
type heimdall struct {
	key    *rsa.PrivateKey
	server *httptest.Server
}

func newHeimdall(t *testing.T) *heimdall {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	h := &heimdall{key: key}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     testKeyID,
			Algorithm: string(jose.PS256),
			Use:       "sig",
		}}})
	}))
	t.Cleanup(h.server.Close)
	return h
}

func (h *heimdall) sign(t *testing.T, audience string, expiry time.Time, custom map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.PS256, Key: h.key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", testKeyID),
	)
	require.NoError(t, err)

	token, err := jwt.Signed(signer).
		Claims(jwt.Claims{
			Issuer:   defaultIssuer,
			Audience: jwt.Audience{audience},
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Expiry:   jwt.NewNumericDate(expiry),
		}).
		Claims(custom).
		CompactSerialize()
	require.NoError(t, err)
	return token
}

func (h *heimdall) auth(t *testing.T) *JWTAuth {
	t.Helper()
	a, err := NewJWTAuth(JWTAuthConfig{JWKSURL: h.server.URL + "/.well-known/jwks"})
	require.NoError(t, err)
	return a
}

func TestHeimdallClaims_Validate(t *testing.T) {
	assert.NoError(t, (&HeimdallClaims{Principal: "ada"}).Validate(context.Background()))

	err := (&HeimdallClaims{Name: "Ada Lovelace"}).Validate(context.Background())
	assert.EqualError(t, err, "principal must be provided")
}

func TestNewJWTAuth(t *testing.T) {
	a, err := NewJWTAuth(JWTAuthConfig{})
	require.NoError(t, err)
	assert.Equal(t, defaultJWKSURL, a.config.JWKSURL)
	assert.Equal(t, defaultAudience, a.config.Audience)
	assert.NotNil(t, a.validator)

	_, err = NewJWTAuth(JWTAuthConfig{JWKSURL: "://no-scheme"})
	assert.ErrorContains(t, err, "invalid JWKS URL")
}

func TestJWTAuth_ParseClaims(t *testing.T) {
	h := newHeimdall(t)
	a := h.auth(t)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		token := h.sign(t, defaultAudience, time.Now().Add(time.Hour), map[string]any{
			"principal": "ada",
			"name":      "Ada Lovelace",
			"email":     "ada@example.org",
		})

		claims, err := a.ParseClaims(ctx, "Bearer "+token, slog.Default())
		require.NoError(t, err)
		assert.Equal(t, &HeimdallClaims{Principal: "ada", Name: "Ada Lovelace", Email: "ada@example.org"}, claims)

		principal, err := a.ParsePrincipal(ctx, token, slog.Default())
		require.NoError(t, err)
		assert.Equal(t, "ada", principal)
	})

	t.Run("missing principal", func(t *testing.T) {
		token := h.sign(t, defaultAudience, time.Now().Add(time.Hour), map[string]any{"name": "Nobody"})
		_, err := a.ParseClaims(ctx, token, slog.Default())
		assert.Error(t, err)
	})

	t.Run("other audience", func(t *testing.T) {
		token := h.sign(t, "lfx-v2-committee-service", time.Now().Add(time.Hour), map[string]any{"principal": "ada"})
		_, err := a.ParseClaims(ctx, token, slog.Default())
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token := h.sign(t, defaultAudience, time.Now().Add(-time.Hour), map[string]any{"principal": "ada"})
		_, err := a.ParseClaims(ctx, token, slog.Default())
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, token := range []string{"", "invalid.token", "Bearer a.b.c"} {
			_, err := a.ParseClaims(ctx, token, slog.Default())
			assert.Error(t, err, "token %q", token)
		}
	})
}

func TestJWTAuth_MockLocalPrincipal(t *testing.T) {
	a := &JWTAuth{config: JWTAuthConfig{MockLocalPrincipal: "local-dev"}}

	claims, err := a.ParseClaims(context.Background(), "anything", slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "local-dev", claims.Principal)
}

func TestJWTAuth_NoValidator(t *testing.T) {
	_, err := (&JWTAuth{}).ParsePrincipal(context.Background(), "token", slog.Default())
	assert.EqualError(t, err, "JWT validator is not set up")
}
