// Package notify carries typed notification values from the auth flows to an
// asynchronous delivery worker. Flows enqueue and move on; delivery failures
// are logged, never surfaced to the originating request.
package notify

import "time"

// Kind selects the template and subject line for a notification.
type Kind string

const (
	KindConfirmEmail   Kind = "confirm_email"
	KindResetPassword  Kind = "reset_password"
	KindEmailChangeOld Kind = "email_change_current"
	KindEmailChangeNew Kind = "email_change_new"
)

// Notification is one outbound email carrying an OTP code.
type Notification struct {
	Kind      Kind
	To        string
	Name      string
	Code      string
	ExpiresIn time.Duration
}

// Enqueuer accepts notifications for eventual delivery.
type Enqueuer interface {
	Enqueue(n Notification)
}

// Discard is an Enqueuer that drops everything. Used when no SMTP
// configuration is present and by tests that don't care about email.
type Discard struct{}

func (Discard) Enqueue(Notification) {}
