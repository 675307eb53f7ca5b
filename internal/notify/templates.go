package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const otpEmailHTML = `<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; background: #f4f4f7; padding: 24px;">
    <div style="max-width: 480px; margin: auto; background: #ffffff; border-radius: 8px; padding: 32px;">
      <h2 style="color: #222;">{{.Subject}}</h2>
      <p>Hi {{.Name}},</p>
      <p>{{.Message}}</p>
      <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold; text-align: center; margin: 24px 0;">{{.Code}}</p>
      <p style="color: #666;">This code expires in {{.ExpiryMinutes}} minutes. If you did not request it, you can safely ignore this email.</p>
    </div>
  </body>
</html>`

var otpEmailTmpl = template.Must(template.New("otp").Parse(otpEmailHTML))

type templateData struct {
	Subject       string
	Name          string
	Message       string
	Code          string
	ExpiryMinutes int
}

// Render produces the subject line and HTML body for a notification.
func Render(n Notification) (subject, html string, err error) {
	var message string
	switch n.Kind {
	case KindConfirmEmail:
		subject = "Please confirm your email"
		message = "Welcome to Murmur! To complete your registration, use the secure verification code below:"
	case KindResetPassword:
		subject = "Password reset request"
		message = "We received a request to reset your password. Use the code below to proceed:"
	case KindEmailChangeOld:
		subject = "Confirm your email change"
		message = "A change of the email on your account was requested. Enter this code to approve it from your current address:"
	case KindEmailChangeNew:
		subject = "Verify your new email"
		message = "This address was requested as the new email for a Murmur account. Enter this code to verify it:"
	default:
		return "", "", fmt.Errorf("notify: unknown notification kind %q", n.Kind)
	}

	minutes := int(n.ExpiresIn / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	var buf bytes.Buffer
	err = otpEmailTmpl.Execute(&buf, templateData{
		Subject:       subject,
		Name:          n.Name,
		Message:       message,
		Code:          n.Code,
		ExpiryMinutes: minutes,
	})
	if err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
