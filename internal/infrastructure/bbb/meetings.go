// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package bbb

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
)

// CreateMeeting creates the meeting or, if it already exists, returns its
// details with the duplicateWarning message key.
func (c *Client) CreateMeeting(ctx context.Context, req domain.CreateMeetingRequest) (*domain.MeetingInfo, error) {
	params := url.Values{}
	for k, v := range req.Params {
		params.Set(k, v)
	}
	params.Set("name", req.Name)
	params.Set("meetingID", req.MeetingID)
	params.Set("moderatorPW", req.ModeratorPW)
	params.Set("attendeePW", req.AttendeePW)

	var body []byte
	if req.PresentationURL != "" {
		modules := modulesXML{Modules: []moduleXML{{
			Name:      "presentation",
			Documents: []documentXML{{URL: req.PresentationURL}},
		}}}
		b, err := xml.Marshal(modules)
		if err != nil {
			return nil, fmt.Errorf("failed to encode presentation module: %w", err)
		}
		body = b
		slog.InfoContext(ctx, "creating meeting with presentation", "meeting_id", req.MeetingID)
	}

	var resp createResponse
	if err := c.call(ctx, "create", params, body, &resp); err != nil {
		return nil, err
	}
	return resp.toMeetingInfo(), nil
}

// JoinMeetingURL builds the signed join URL. No request is made; the user's
// browser follows the URL.
func (c *Client) JoinMeetingURL(_ context.Context, req domain.JoinRequest) (string, error) {
	params := url.Values{}
	params.Set("fullName", req.FullName)
	params.Set("meetingID", req.MeetingID)
	params.Set("password", req.Password)
	if req.UserID != "" {
		params.Set("userID", req.UserID)
	}
	params.Set("joinViaHtml5", "true")

	return c.buildURL("join", params), nil
}

// IsMeetingRunning reports whether meetingID has users in it.
func (c *Client) IsMeetingRunning(ctx context.Context, meetingID string) (bool, error) {
	params := url.Values{}
	params.Set("meetingID", meetingID)

	var resp isMeetingRunningResponse
	if err := c.call(ctx, "isMeetingRunning", params, nil, &resp); err != nil {
		return false, err
	}
	return resp.Running, nil
}

// GetMeetings lists the meetings on the server.
func (c *Client) GetMeetings(ctx context.Context) ([]domain.RunningMeeting, error) {
	var resp getMeetingsResponse
	if err := c.call(ctx, "getMeetings", url.Values{}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toRunningMeetings(), nil
}
