// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package auth validates the bearer tokens Heimdall issues for API requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

const (
	// PS256 is the signature algorithm Heimdall signs tokens with.
	PS256 = validator.PS256

	defaultIssuer   = "heimdall"
	defaultAudience = "lfx-v2-whistle-service"
	defaultJWKSURL  = "http://heimdall:4457/.well-known/jwks"

	jwksCacheTTL = 5 * time.Minute
	clockSkew    = 5 * time.Second
)

// IJWTAuth parses the identity out of a bearer token.
type IJWTAuth interface {
	ParsePrincipal(ctx context.Context, token string, logger *slog.Logger) (string, error)
	ParseClaims(ctx context.Context, token string, logger *slog.Logger) (*HeimdallClaims, error)
}

// JWTAuthConfig configures token validation. Empty fields take the Heimdall
// defaults.
type JWTAuthConfig struct {
	JWKSURL  string
	Audience string
	// MockLocalPrincipal disables validation and authenticates every request
	// as this principal. For local development only.
	MockLocalPrincipal string
}

// HeimdallClaims contains extra custom claims we want to parse from the JWT
// token.
type HeimdallClaims struct {
	Principal string `json:"principal"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Validate provides additional middleware validation of any claims defined
// in HeimdallClaims.
func (c *HeimdallClaims) Validate(_ context.Context) error {
	if c.Principal == "" {
		return errors.New("principal must be provided")
	}
	return nil
}

// JWTAuth validates Heimdall tokens against the JWKS endpoint.
type JWTAuth struct {
	validator *validator.Validator
	config    JWTAuthConfig
}

// Ensure that JWTAuth implements IJWTAuth
var _ IJWTAuth = (*JWTAuth)(nil)

// NewJWTAuth creates a JWTAuth with a caching JWKS provider.
func NewJWTAuth(config JWTAuthConfig) (*JWTAuth, error) {
	if config.JWKSURL == "" {
		config.JWKSURL = defaultJWKSURL
	}
	if config.Audience == "" {
		config.Audience = defaultAudience
	}

	jwksURL, err := url.Parse(config.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS URL: %w", err)
	}
	issuer, err := url.Parse(defaultIssuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer: %w", err)
	}

	provider := jwks.NewCachingProvider(issuer, jwksCacheTTL, jwks.WithCustomJWKSURI(jwksURL))

	customClaims := func() validator.CustomClaims {
		return &HeimdallClaims{}
	}

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		PS256,
		issuer.String(),
		[]string{config.Audience},
		validator.WithCustomClaims(customClaims),
		validator.WithAllowedClockSkew(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the JWT validator: %w", err)
	}

	return &JWTAuth{
		validator: jwtValidator,
		config:    config,
	}, nil
}

// ParsePrincipal extracts the principal from the JWT claims.
func (j *JWTAuth) ParsePrincipal(ctx context.Context, token string, logger *slog.Logger) (string, error) {
	claims, err := j.ParseClaims(ctx, token, logger)
	if err != nil {
		return "", err
	}
	return claims.Principal, nil
}

// ParseClaims validates token and returns its custom claims.
func (j *JWTAuth) ParseClaims(ctx context.Context, token string, logger *slog.Logger) (*HeimdallClaims, error) {
	if j.config.MockLocalPrincipal != "" {
		logger.InfoContext(ctx, "JWT principal parsing disabled; returning mock principal",
			"principal", j.config.MockLocalPrincipal,
		)
		return &HeimdallClaims{Principal: j.config.MockLocalPrincipal}, nil
	}

	if j.validator == nil {
		return nil, errors.New("JWT validator is not set up")
	}

	token = strings.TrimPrefix(token, "Bearer ")
	parsed, err := j.validator.ValidateToken(ctx, token)
	if err != nil {
		logger.WarnContext(ctx, "unable to validate JWT", logging.ErrKey, err)
		return nil, err
	}

	validated, ok := parsed.(*validator.ValidatedClaims)
	if !ok {
		return nil, errors.New("unexpected validated claims type")
	}
	claims, ok := validated.CustomClaims.(*HeimdallClaims)
	if !ok || claims == nil {
		return nil, errors.New("failed to get custom authorization claims")
	}
	return claims, nil
}
