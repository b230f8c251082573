package notification

import (
	"bytes"
	"fmt"
	"text/template"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[Case]mailTemplate{
	CaseCreateAccount: {
		subject: template.Must(template.New("create_account.subject").Parse(
			`Welcome, {{index . "firstname"}}!`)),
		body: template.Must(template.New("create_account.body").Parse(
			`Hi {{index . "firstname"}} {{index . "lastname"}},

Your account has been created and your shopping cart is ready.

If you did not sign up, please ignore this message.
`)),
	},
}

// Render produces the subject line and plain-text body for msg.
func Render(msg Message) (subject, body string, err error) {
	tmpl, ok := templates[msg.Subject]
	if !ok {
		return "", "", fmt.Errorf("no template for case %q", msg.Subject)
	}

	var buf bytes.Buffer
	if err := tmpl.subject.Execute(&buf, msg.Context); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", msg.Subject, err)
	}
	subject = buf.String()

	buf.Reset()
	if err := tmpl.body.Execute(&buf, msg.Context); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", msg.Subject, err)
	}
	return subject, buf.String(), nil
}
