// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"net/http"
)

// RunningMeetings lists the meetings running on the conferencing server.
func (s *WhistleAPI) RunningMeetings(w http.ResponseWriter, r *http.Request) {
	requester, err := s.authenticated(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx := withRequester(r.Context(), requester)

	meetings, err := s.sessionService.RunningMeetings(ctx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, meetings)
}
