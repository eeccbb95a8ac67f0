/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package invite

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
)

// Mailer sends the rendered invite email. The external mailer is out of
// scope; this is the seam the core hands rendered mail off
// across.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// inviteTemplate mirrors Perkeep's pkg/server/help.go pattern of a
// backtick HTML literal parsed once into a *template.Template.
var inviteTemplate = template.Must(template.New("invite").Parse(`<html>
<body style="font-family: sans-serif;">
	<h2>{{.AuthorName}} shared a room with you</h2>
	<p>You've been invited to download files from a shared room.</p>
	<p><a href="{{.ShareURL}}">{{.ShareURL}}</a></p>
	<p style="color:#777;font-size:12px;">This link may expire or the room may be time-limited.</p>
</body>
</html>`))

// TemplateData is the invite template's input.
type TemplateData struct {
	AuthorName string
	ShareURL   string
}

// RenderInvite renders the invite HTML body.
func RenderInvite(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SMTPMailer is the default Mailer, using net/smtp directly.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Auth     smtp.Auth
}

func NewSMTPMailer(addr, from, username, password, host string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{Addr: addr, From: from, Auth: auth}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := buildMIMEMessage(m.From, to, subject, htmlBody)
	return smtp.SendMail(m.Addr, m.Auth, m.From, []string{to}, msg)
}

func buildMIMEMessage(from, to, subject, htmlBody string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(htmlBody)
	return buf.Bytes()
}

var _ Mailer = (*SMTPMailer)(nil)
