// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"crypto/rand"
	"fmt"

	"github.com/akamensky/base58"
	"golang.org/x/crypto/bcrypt"
)

// GuestIDPrefix marks user ids handed to unauthenticated participants.
const GuestIDPrefix = "gl-guest-"

// InviteTokens issues and checks the tokens embedded in invite links. A token
// is a bcrypt hash of the room's access code, so a link keeps working until
// the code changes.
type InviteTokens struct {
	cost int
}

// NewInviteTokens creates an InviteTokens with the given bcrypt cost. A cost
// outside bcrypt's range falls back to the default.
func NewInviteTokens(cost int) *InviteTokens {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &InviteTokens{cost: cost}
}

// Issue returns a new token for accessCode.
func (t *InviteTokens) Issue(accessCode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(accessCode), t.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash access code: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether token was issued for accessCode.
func (t *InviteTokens) Verify(token, accessCode string) bool {
	if token == "" || accessCode == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(token), []byte(accessCode)) == nil
}

// NewGuestID returns a random id for a participant without an account.
func NewGuestID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return GuestIDPrefix + base58.Encode(b)
}
