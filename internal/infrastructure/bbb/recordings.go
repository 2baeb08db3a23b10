// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package bbb

import (
	"context"
	"net/url"
	"strings"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

const metaPrefix = "meta_"

// GetRecordings lists the recordings of the given meetings in one call.
func (c *Client) GetRecordings(ctx context.Context, meetingIDs ...string) ([]models.Recording, error) {
	params := url.Values{}
	if len(meetingIDs) > 0 {
		params.Set("meetingID", strings.Join(meetingIDs, ","))
	}

	var resp getRecordingsResponse
	if err := c.call(ctx, "getRecordings", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toRecordings(), nil
}

// DeleteRecordings deletes the given recordings. An empty list is a no-op.
func (c *Client) DeleteRecordings(ctx context.Context, recordIDs ...string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	params := url.Values{}
	params.Set("recordID", strings.Join(recordIDs, ","))

	var resp deleteRecordingsResponse
	if err := c.call(ctx, "deleteRecordings", params, nil, &resp); err != nil {
		return err
	}
	if !resp.Deleted {
		return domain.NewExternalServiceError("deleteRecordings", resp.MessageKey, "recordings were not deleted", nil)
	}
	return nil
}

// UpdateRecordings sets metadata on a recording. Keys are sent with the
// meta_ prefix, which is added when missing.
func (c *Client) UpdateRecordings(ctx context.Context, recordID string, meta map[string]string) error {
	params := url.Values{}
	params.Set("recordID", recordID)
	for k, v := range meta {
		if !strings.HasPrefix(k, metaPrefix) {
			k = metaPrefix + k
		}
		params.Set(k, v)
	}

	var resp updateRecordingsResponse
	if err := c.call(ctx, "updateRecordings", params, nil, &resp); err != nil {
		return err
	}
	if !resp.Updated {
		return domain.NewExternalServiceError("updateRecordings", resp.MessageKey, "recording was not updated", nil)
	}
	return nil
}
