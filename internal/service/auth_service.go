// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/auth"
)

type AuthService struct {
	auth auth.IJWTAuth
}

func NewAuthService(auth auth.IJWTAuth) *AuthService {
	return &AuthService{
		auth: auth,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *AuthService) ServiceReady() bool {
	return s.auth != nil
}

// ParseRequester turns a Heimdall bearer token into the Requester it
// authenticates. An empty token yields an anonymous Requester.
func (s *AuthService) ParseRequester(ctx context.Context, bearerToken string, logger *slog.Logger) (Requester, error) {
	if !s.ServiceReady() {
		return Requester{}, domain.NewUnavailableError("auth service not ready")
	}
	if bearerToken == "" {
		return Requester{}, nil
	}

	claims, err := s.auth.ParseClaims(ctx, bearerToken, logger)
	if err != nil {
		return Requester{}, domain.NewUnauthorizedError("invalid bearer token", err)
	}
	return Requester{
		UserID: claims.Principal,
		Name:   claims.Name,
		Email:  claims.Email,
	}, nil
}
