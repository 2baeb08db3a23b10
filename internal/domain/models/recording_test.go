// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecording_LengthString(t *testing.T) {
	tests := []struct {
		name      string
		playbacks []Playback
		expected  string
	}{
		{name: "no playbacks", expected: "< 1 min"},
		{name: "zero lengths", playbacks: []Playback{{Length: 0}, {Length: 0}}, expected: "< 1 min"},
		{name: "minutes", playbacks: []Playback{{Length: 12}}, expected: "12 min"},
		{name: "exactly one hour", playbacks: []Playback{{Length: 60}}, expected: "60 min"},
		{name: "hours and minutes", playbacks: []Playback{{Length: 65}}, expected: "1 h 5 min"},
		{name: "first non-zero wins", playbacks: []Playback{{Length: 0}, {Length: 125}, {Length: 3}}, expected: "2 h 5 min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Recording{Playbacks: tt.playbacks}.LengthString())
		})
	}
}

func TestRecording_Listed(t *testing.T) {
	assert.False(t, Recording{}.Listed())
	assert.True(t, Recording{Metadata: map[string]string{MetaListed: "true"}}.Listed())
	assert.False(t, Recording{Metadata: map[string]string{MetaListed: "false"}}.Listed())
}

func TestParseSubscriptionTier(t *testing.T) {
	tests := map[string]SubscriptionTier{
		"":             TierCommunity,
		"community":    TierCommunity,
		"whistle_plus": TierPlus,
		"Plus":         TierPlus,
		"whistle_pro":  TierPro,
		" pro ":        TierPro,
		"enterprise":   TierUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseSubscriptionTier(in), "input %q", in)
	}
}

func TestTierLimits_MaxParticipants(t *testing.T) {
	limits := DefaultTierLimits()

	assert.Equal(t, DefaultMaxParticipantsCommunity, limits.MaxParticipants(TierCommunity))
	assert.Equal(t, DefaultMaxParticipantsPlus, limits.MaxParticipants(TierPlus))
	assert.Equal(t, DefaultMaxParticipantsPro, limits.MaxParticipants(TierPro))
	assert.Equal(t, DefaultMaxParticipantsCommunity, limits.MaxParticipants(TierUnknown))
	assert.True(t, TierPro.Paid())
	assert.False(t, TierCommunity.Paid())
}
