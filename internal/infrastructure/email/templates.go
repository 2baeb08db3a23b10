// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
)

const invitationHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.InviterName}} invited you to {{.RoomName}}</h2>
  {{- if .Message}}
  <p>{{newLineToBreakLine .Message}}</p>
  {{- end}}
  <p><a href="{{.InviteURL}}" style="background: #0094ff; color: #fff; padding: 10px 16px; text-decoration: none; border-radius: 4px;">Join the room</a></p>
  <p style="font-size: 12px; color: #777;">Or open this link: {{.InviteURL}}</p>
</body>
</html>
`

const invitationText = `{{.InviterName}} invited you to {{.RoomName}}
{{if .Message}}
{{.Message}}
{{end}}
Join the room: {{.InviteURL}}
`

// RenderedEmail holds both HTML and text versions of a rendered email
type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// Templates holds the parsed invitation templates.
type Templates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewTemplates parses the invitation templates.
func NewTemplates() (*Templates, error) {
	html, err := htmltemplate.New("invitation.html").
		Funcs(htmltemplate.FuncMap{"newLineToBreakLine": newLineToBreakLine}).
		Parse(invitationHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse invitation HTML template: %w", err)
	}
	text, err := texttemplate.New("invitation.txt").Parse(invitationText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse invitation text template: %w", err)
	}
	return &Templates{html: html, text: text}, nil
}

// RenderInvitation renders both parts of a room invitation.
func (t *Templates) RenderInvitation(invitation domain.RoomInvitation) (*RenderedEmail, error) {
	if invitation.InviterName == "" {
		invitation.InviterName = "Someone"
	}

	var html, text bytes.Buffer
	if err := t.html.Execute(&html, invitation); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}
	if err := t.text.Execute(&text, invitation); err != nil {
		return nil, fmt.Errorf("failed to render text template: %w", err)
	}
	return &RenderedEmail{
		Subject: fmt.Sprintf("Invitation: %s", invitation.RoomName),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// newLineToBreakLine converts newlines to HTML break tags for proper email formatting
func newLineToBreakLine(s string) htmltemplate.HTML {
	escaped := htmltemplate.HTMLEscapeString(s)
	// Return as template.HTML to prevent double escaping
	return htmltemplate.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
