// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"net/url"
	"slices"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Room is a persistent conferencing room owned by a single user.
// BBBID, ModeratorPW and AttendeePW are assigned at creation and never
// change afterwards.
type Room struct {
	ID                 string       `json:"id"`
	UID                string       `json:"uid"`
	Name               string       `json:"name"`
	OwnerID            string       `json:"owner_id"`
	OwnerName          string       `json:"owner_name,omitempty"`
	OwnerEmail         string       `json:"owner_email,omitempty"`
	OwnerBrandImageURL string       `json:"owner_brand_image_url,omitempty"`
	BBBID              string       `json:"bbb_id"`
	ModeratorPW        string       `json:"moderator_pw"`
	AttendeePW         string       `json:"attendee_pw"`
	AccessCode         string       `json:"access_code,omitempty"`
	Settings           RoomSettings `json:"room_settings"`
	SharedWith         []string     `json:"shared_with,omitempty"`
	PresentationURL    string       `json:"presentation_url,omitempty"`
	Sessions           int          `json:"sessions"`
	LastSession        *time.Time   `json:"last_session,omitempty"`
	Deleted            bool         `json:"deleted"`
	CreatedAt          *time.Time   `json:"created_at,omitempty"`
	UpdatedAt          *time.Time   `json:"updated_at,omitempty"`
}

// OwnedBy reports whether userID owns the room.
func (r *Room) OwnedBy(userID string) bool {
	return userID != "" && r.OwnerID == userID
}

// SharedWithUser reports whether the room has been shared with userID.
func (r *Room) SharedWithUser(userID string) bool {
	if userID == "" {
		return false
	}
	return slices.Contains(r.SharedWith, userID)
}

// HasAccessCode reports whether joining requires an access code.
func (r *Room) HasAccessCode() bool {
	return r.AccessCode != ""
}

// InvitePath is the path segment guests open to join the room.
func (r *Room) InvitePath() string {
	return "/" + url.PathEscape(r.UID)
}

// RoomSettings holds the per-room toggles chosen by the owner.
type RoomSettings struct {
	MuteOnStart              bool   `json:"muteOnStart"`
	RequireModeratorApproval bool   `json:"requireModeratorApproval"`
	AnyoneCanStart           bool   `json:"anyoneCanStart"`
	JoinModerator            bool   `json:"joinModerator"`
	Recording                bool   `json:"recording"`
	AuthMandatory            bool   `json:"authMandatory"`
	AuthMultiFactor          bool   `json:"authMultiFactor"`
	AuthLobby                bool   `json:"authLobby"`
	AuthOneTimeInviteLink    bool   `json:"authOneTimeInviteLink"`
	WebinarMode              bool   `json:"webinarMode"`
	BannerMessage            string `json:"bannerMessage,omitempty"`
}

// DefaultRoomSettings returns the settings given to newly created rooms.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		MuteOnStart:           true,
		AuthMandatory:         true,
		AuthMultiFactor:       false,
		AuthLobby:             true,
		AuthOneTimeInviteLink: true,
		WebinarMode:           false,
	}
}

// Merge applies a partial, weakly typed settings update. Keys that are not
// present in changes keep their current value; unknown keys are rejected.
func (s RoomSettings) Merge(changes map[string]any) (RoomSettings, error) {
	merged := s
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &merged,
	})
	if err != nil {
		return s, err
	}
	if err := decoder.Decode(changes); err != nil {
		return s, err
	}
	return merged, nil
}

// Setting names understood by the site room configuration.
const (
	SettingMuteOnStart              = "muteOnStart"
	SettingRequireModeratorApproval = "requireModeratorApproval"
	SettingJoinModerator            = "joinModerator"
	SettingAnyoneCanStart           = "anyoneCanStart"
	SettingRecording                = "recording"
)

// value returns the room's own value for one of the configurable settings.
func (s RoomSettings) value(name string) bool {
	switch name {
	case SettingMuteOnStart:
		return s.MuteOnStart
	case SettingRequireModeratorApproval:
		return s.RequireModeratorApproval
	case SettingJoinModerator:
		return s.JoinModerator
	case SettingAnyoneCanStart:
		return s.AnyoneCanStart
	case SettingRecording:
		return s.Recording
	}
	return false
}

// FeatureMode is the site administrator's policy for a room setting.
type FeatureMode string

const (
	FeatureEnabled  FeatureMode = "enabled"
	FeatureOptional FeatureMode = "optional"
	FeatureDisabled FeatureMode = "disabled"
)

// ParseFeatureMode parses a policy value, falling back to optional.
func ParseFeatureMode(v string) FeatureMode {
	switch FeatureMode(v) {
	case FeatureEnabled, FeatureDisabled:
		return FeatureMode(v)
	}
	return FeatureOptional
}

// RoomConfiguration is the site-wide policy applied on top of room settings.
type RoomConfiguration struct {
	MuteOnJoin              FeatureMode
	RequireModerator        FeatureMode
	AllJoinModerator        FeatureMode
	AllowAnyStart           FeatureMode
	Recording               FeatureMode
	RequireRecordingConsent bool
	DefaultRecordingVisible bool
	MarketingRoomUID        string
}

// DefaultRoomConfiguration leaves every setting to the room owner.
func DefaultRoomConfiguration() RoomConfiguration {
	return RoomConfiguration{
		MuteOnJoin:       FeatureOptional,
		RequireModerator: FeatureOptional,
		AllJoinModerator: FeatureOptional,
		AllowAnyStart:    FeatureOptional,
		Recording:        FeatureOptional,
	}
}

// SettingWithConfig resolves a room setting against the site policy:
// enabled forces true, disabled forces false, optional defers to the room.
func (c RoomConfiguration) SettingWithConfig(settings RoomSettings, name string) bool {
	var mode FeatureMode
	switch name {
	case SettingMuteOnStart:
		mode = c.MuteOnJoin
	case SettingRequireModeratorApproval:
		mode = c.RequireModerator
	case SettingJoinModerator:
		mode = c.AllJoinModerator
	case SettingAnyoneCanStart:
		mode = c.AllowAnyStart
	case SettingRecording:
		mode = c.Recording
	default:
		return false
	}

	switch mode {
	case FeatureEnabled:
		return true
	case FeatureDisabled:
		return false
	default:
		return settings.value(name)
	}
}

// RecordMeeting applies the recording consent rule: with consent required the
// room's recording setting decides, otherwise meetings are recorded.
func (c RoomConfiguration) RecordMeeting(settings RoomSettings) bool {
	if c.RequireRecordingConsent {
		return c.SettingWithConfig(settings, SettingRecording)
	}
	return true
}
