// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// Recording is a recording held by the conferencing server. The service
// never stores recordings; it only relays them.
type Recording struct {
	RecordID     string            `json:"record_id"`
	MeetingID    string            `json:"meeting_id"`
	Name         string            `json:"name"`
	Published    bool              `json:"published"`
	State        string            `json:"state"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Participants int               `json:"participants"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Playbacks    []Playback        `json:"playbacks,omitempty"`
}

// Playback is one playback format of a recording.
type Playback struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	// Length in minutes.
	Length        int      `json:"length"`
	PreviewImages []string `json:"preview_images,omitempty"`
}

// Listed reports whether the recording is marked as publicly listed.
func (r Recording) Listed() bool {
	return r.Metadata[MetaListed] == "true"
}

// LengthString formats the first non-zero playback length, e.g. "1 h 5 min".
func (r Recording) LengthString() string {
	for _, p := range r.Playbacks {
		if p.Length == 0 {
			continue
		}
		if p.Length > 60 {
			return fmt.Sprintf("%d h %d min", p.Length/60, p.Length%60)
		}
		return fmt.Sprintf("%d min", p.Length)
	}
	return "< 1 min"
}
