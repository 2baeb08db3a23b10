// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Key prefixes
const (
	KeyPrefixRoom         = "room"
	KeyPrefixSubscription = "subscription"
	KeyPrefixMonthly      = "monthly"

	KeyPrefixIndex        = "index"
	KeyPrefixIndexMeeting = "meeting"
	KeyPrefixIndexOwner   = "owner"
)

// KeyBuilder builds NATS KV keys. Every path segment is URL-safe base64
// encoded so user supplied values (room uids, user ids) are always valid KV
// tokens.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{prefix: prefix}
}

// RoomKey is the key of a room document, e.g. "room/<uid>".
func (kb *KeyBuilder) RoomKey(uid string) string {
	return kb.build(KeyPrefixRoom, uid)
}

// MeetingIndexKey maps a conferencing meeting id back to its room.
func (kb *KeyBuilder) MeetingIndexKey(meetingID string) string {
	return kb.build(KeyPrefixIndex, KeyPrefixIndexMeeting, meetingID)
}

// OwnerIndexKey records that ownerID owns room uid.
func (kb *KeyBuilder) OwnerIndexKey(ownerID, uid string) string {
	return kb.build(KeyPrefixIndex, KeyPrefixIndexOwner, ownerID, uid)
}

// OwnerIndexPrefix is the decoded prefix of every owner index key of ownerID.
func (kb *KeyBuilder) OwnerIndexPrefix(ownerID string) string {
	return "/" + kb.join(KeyPrefixIndex, KeyPrefixIndexOwner, ownerID) + "/"
}

// SubscriptionKey is the key of a user's subscription record.
func (kb *KeyBuilder) SubscriptionKey(userID string) string {
	return kb.build(KeyPrefixSubscription, userID)
}

// MonthlyKey is the key of a user's session allowance for month (yyyy-mm).
func (kb *KeyBuilder) MonthlyKey(userID, month string) string {
	return kb.build(KeyPrefixMonthly, userID, month)
}

func (kb *KeyBuilder) join(parts ...string) string {
	if kb.prefix != "" {
		parts = append([]string{kb.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func (kb *KeyBuilder) build(parts ...string) string {
	key := kb.join(parts...)
	encoded, err := kb.EncodeKey(key)
	if err != nil {
		// EncodeKey only fails on an empty key, which join never produces.
		return key
	}
	return encoded
}

// EncodeKey encodes a key for NATS KV store.
// From https://github.com/ripienaar/encodedkv
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", nats.ErrInvalidKey
	}
	parts := strings.Split(key, "/")
	for i, part := range parts {
		if part == ">" || part == "*" {
			continue
		}
		parts[i] = base64.URLEncoding.EncodeToString([]byte(part))
	}
	return strings.Join(parts, "."), nil
}

// DecodeKey reverses EncodeKey and returns the key with a leading slash.
func (kb *KeyBuilder) DecodeKey(key string) (string, error) {
	if key == "" {
		return "", nats.ErrInvalidKey
	}
	parts := strings.Split(key, ".")
	for i, part := range parts {
		k, err := base64.URLEncoding.DecodeString(part)
		if err != nil {
			return "", err
		}
		parts[i] = string(k)
	}
	return fmt.Sprintf("/%s", strings.Join(parts, "/")), nil
}
