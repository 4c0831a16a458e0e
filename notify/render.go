package notify

import (
	"bytes"
	"fmt"
	"text/template"
)

const DefaultTemplate = "password_reset"

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	"password_reset": {
		subject: "Reset your password",
		body: template.Must(template.New("password_reset").Parse(`Hello {{.DisplayName}},

A password reset was requested for your account from {{.Origin}}.
Use the link below within {{.ExpiryMinutes}} minutes to choose a new password:

{{.Link}}

If you did not request this, you can ignore this message.
`)),
	},
	"vendor_password_reset": {
		subject: "Reset your seller account password",
		body: template.Must(template.New("vendor_password_reset").Parse(`Hello {{.DisplayName}},

We received a request to reset the password of your seller account (origin {{.Origin}}).
The link below is valid for {{.ExpiryMinutes}} minutes:

{{.Link}}

Your storefront stays online while you reset. Ignore this message if it was not you.
`)),
	},
	"admin_password_reset": {
		subject: "Administrator password reset",
		body: template.Must(template.New("admin_password_reset").Parse(`{{.DisplayName}},

An administrator password reset was requested from {{.Origin}}.
Link (expires in {{.ExpiryMinutes}} minutes):

{{.Link}}

If this was not you, report it to security immediately.
`)),
	},
}

// Render turns a notice into a Message using its named template, falling back
// to DefaultTemplate when the name is empty.
func Render(n PasswordResetNotice) (Message, error) {
	name := n.Template
	if name == "" {
		name = DefaultTemplate
	}
	tpl, ok := templates[name]
	if !ok {
		return Message{}, fmt.Errorf("notify: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, n); err != nil {
		return Message{}, fmt.Errorf("notify: render %q: %w", name, err)
	}
	return Message{To: n.Address, Name: n.DisplayName, Subject: tpl.subject, Body: buf.String()}, nil
}

// KnownTemplate reports whether Render accepts name.
func KnownTemplate(name string) bool {
	if name == "" {
		return true
	}
	_, ok := templates[name]
	return ok
}
