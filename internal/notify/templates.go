// Package notify renders and delivers meeting notifications by email.
package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/classmeet/backend/internal/models"
)

const layout = `<p>Hello <b>{{.FirstName}}</b>,</p>
<p>{{.Lead}}</p>
<ul>
  <li>Class: {{.ClassName}}</li>
  <li>Date: {{.Date}}</li>
  <li>Time: {{.StartTime}} - {{.EndTime}}</li>
{{- if .ShowDuration}}
  <li>Duration: {{.Duration}} minutes</li>
{{- end}}
{{- if .Link}}
  <li>Meeting Link: <a href="{{.Link}}">{{.Link}}</a></li>
{{- end}}
{{- if .Credential}}
  <li>Password: {{.Credential}}</li>
{{- end}}
</ul>
<p>{{.Closing}}</p>
`

var body = template.Must(template.New("meeting").Parse(layout))

type view struct {
	FirstName    string
	Lead         string
	ClassName    string
	Date         string
	StartTime    string
	EndTime      string
	Duration     int
	ShowDuration bool
	Link         string
	Credential   string
	Closing      template.HTML
}

// Render builds the subject and HTML body for one notification.
func Render(kind models.NotificationType, to *models.User, m *models.Meeting, extra models.NotificationExtra) (string, string, error) {
	v := view{
		FirstName: to.FirstName,
		ClassName: m.ClassName,
		Date:      m.Date.Format("Mon Jan 02 2006"),
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Duration:  m.Duration,
	}
	var subject string
	switch kind {
	case models.NotificationNew:
		subject = "Meeting Invitation: " + m.ClassName
		v.ShowDuration = true
		v.Link = extra.Link
		if extra.Credential != "" {
			v.Lead = "You have been allocated to a meeting:"
			v.Credential = extra.Credential
			v.Closing = "Please login using this password."
		} else {
			v.Lead = "You have been allocated to a new meeting:"
			v.Closing = "Please login to view details."
		}
	case models.NotificationRemoved:
		subject = "Removed from Meeting: " + m.ClassName
		v.Lead = "You have been removed from:"
		v.Closing = "Regards,<br>Admin"
	case models.NotificationReschedule:
		subject = "Rescheduled: " + m.ClassName
		v.Lead = "The meeting has been rescheduled:"
		v.ShowDuration = true
		v.Closing = "Please update your calendar.<br>Regards,<br>Admin"
	case models.NotificationCancel:
		subject = "Meeting Cancelled: " + m.ClassName
		v.Lead = "The meeting has been cancelled:"
		v.Closing = "Regards,<br>Admin"
	default:
		return "", "", fmt.Errorf("unknown notification type %q", kind)
	}

	var buf bytes.Buffer
	if err := body.Execute(&buf, v); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	return subject, buf.String(), nil
}
