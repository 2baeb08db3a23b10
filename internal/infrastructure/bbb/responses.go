// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package bbb

import (
	"encoding/xml"
	"time"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain/models"
)

type createResponse struct {
	baseResponse
	MeetingID         string `xml:"meetingID"`
	InternalMeetingID string `xml:"internalMeetingID"`
	CreateTime        int64  `xml:"createTime"`
	HasUserJoined     bool   `xml:"hasUserJoined"`
}

func (r *createResponse) toMeetingInfo() *domain.MeetingInfo {
	return &domain.MeetingInfo{
		MeetingID:         r.MeetingID,
		InternalMeetingID: r.InternalMeetingID,
		CreateTime:        fromMillis(r.CreateTime),
		HasUserJoined:     r.HasUserJoined,
		MessageKey:        r.MessageKey,
		Message:           r.Message,
	}
}

type isMeetingRunningResponse struct {
	baseResponse
	Running bool `xml:"running"`
}

type meetingXML struct {
	MeetingID            string `xml:"meetingID"`
	MeetingName          string `xml:"meetingName"`
	Running              bool   `xml:"running"`
	ParticipantCount     int    `xml:"participantCount"`
	ModeratorCount       int    `xml:"moderatorCount"`
	CreateTime           int64  `xml:"createTime"`
	Recording            bool   `xml:"recording"`
	HasBeenForciblyEnded bool   `xml:"hasBeenForciblyEnded"`
}

type getMeetingsResponse struct {
	baseResponse
	Meetings []meetingXML `xml:"meetings>meeting"`
}

func (r *getMeetingsResponse) toRunningMeetings() []domain.RunningMeeting {
	meetings := make([]domain.RunningMeeting, 0, len(r.Meetings))
	for _, m := range r.Meetings {
		meetings = append(meetings, domain.RunningMeeting{
			MeetingID:            m.MeetingID,
			Name:                 m.MeetingName,
			Running:              m.Running,
			ParticipantCount:     m.ParticipantCount,
			ModeratorCount:       m.ModeratorCount,
			CreateTime:           fromMillis(m.CreateTime),
			Recording:            m.Recording,
			HasBeenForciblyEnded: m.HasBeenForciblyEnded,
		})
	}
	return meetings
}

// metadataXML collects the free-form children of <metadata>.
type metadataXML struct {
	Items []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

type formatXML struct {
	Type   string   `xml:"type"`
	URL    string   `xml:"url"`
	Length int      `xml:"length"`
	Images []string `xml:"preview>images>image"`
}

type recordingXML struct {
	RecordID     string      `xml:"recordID"`
	MeetingID    string      `xml:"meetingID"`
	Name         string      `xml:"name"`
	Published    bool        `xml:"published"`
	State        string      `xml:"state"`
	StartTime    int64       `xml:"startTime"`
	EndTime      int64       `xml:"endTime"`
	Participants int         `xml:"participants"`
	Metadata     metadataXML `xml:"metadata"`
	Formats      []formatXML `xml:"playback>format"`
}

type getRecordingsResponse struct {
	baseResponse
	Recordings []recordingXML `xml:"recordings>recording"`
}

func (r *getRecordingsResponse) toRecordings() []models.Recording {
	recordings := make([]models.Recording, 0, len(r.Recordings))
	for _, rec := range r.Recordings {
		meta := make(map[string]string, len(rec.Metadata.Items))
		for _, item := range rec.Metadata.Items {
			meta[item.XMLName.Local] = item.Value
		}
		playbacks := make([]models.Playback, 0, len(rec.Formats))
		for _, f := range rec.Formats {
			playbacks = append(playbacks, models.Playback{
				Type:          f.Type,
				URL:           f.URL,
				Length:        f.Length,
				PreviewImages: f.Images,
			})
		}
		name := rec.Name
		if n, ok := meta["meetingName"]; ok && name == "" {
			name = n
		}
		recordings = append(recordings, models.Recording{
			RecordID:     rec.RecordID,
			MeetingID:    rec.MeetingID,
			Name:         name,
			Published:    rec.Published,
			State:        rec.State,
			StartTime:    fromMillis(rec.StartTime),
			EndTime:      fromMillis(rec.EndTime),
			Participants: rec.Participants,
			Metadata:     meta,
			Playbacks:    playbacks,
		})
	}
	return recordings
}

type deleteRecordingsResponse struct {
	baseResponse
	Deleted bool `xml:"deleted"`
}

type updateRecordingsResponse struct {
	baseResponse
	Updated bool `xml:"updated"`
}

// modulesXML is the create call body used to preload a presentation.
type modulesXML struct {
	XMLName xml.Name    `xml:"modules"`
	Modules []moduleXML `xml:"module"`
}

type moduleXML struct {
	Name      string        `xml:"name,attr"`
	Documents []documentXML `xml:"document"`
}

type documentXML struct {
	URL string `xml:"url,attr"`
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
