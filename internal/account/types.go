// Package account defines the user account domain model and its persistence
// contracts. Accounts are plain data: hashing, encryption and OTP handling
// happen at explicit call sites in the auth service, never inside setters.
package account

import (
	"fmt"
	"time"
)

// Role determines which token secret pair signs an account's tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Provider identifies the credential origin of an account.
type Provider string

const (
	ProviderSystem Provider = "system"
	ProviderGoogle Provider = "google"
)

// Gender is carried through to profile greetings only.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// OTP is a one-time code challenge embedded in an account. The code itself is
// never stored; CodeHash holds its bcrypt digest. Once Attempts reaches
// MaxAttempts the challenge is dead until a fresh one is generated.
type OTP struct {
	CodeHash    string    `bson:"code_hash"`
	ExpiresAt   time.Time `bson:"expires_at"`
	Verified    bool      `bson:"verified"`
	Attempts    int       `bson:"attempts"`
	MaxAttempts int       `bson:"max_attempts"`
}

// Expired reports whether the challenge is past its expiry at the given time.
func (o *OTP) Expired(now time.Time) bool { return now.After(o.ExpiresAt) }

// Exhausted reports whether the attempt budget is spent.
func (o *OTP) Exhausted() bool { return o.Attempts >= o.MaxAttempts }

// Image references an object held in the image store.
type Image struct {
	ID  string `bson:"id" json:"id"`
	URL string `bson:"url" json:"url"`
}

// SystemCredentials exists only on accounts with ProviderSystem. External
// accounts carry no password, age or phone at all rather than empty fields.
type SystemCredentials struct {
	PasswordHash    string   `bson:"password_hash"`
	PasswordHistory []string `bson:"password_history,omitempty"`
	Age             int      `bson:"age"`
	// Phone holds AES-GCM ciphertext; decrypt explicitly when serving it.
	Phone string `bson:"phone,omitempty"`
}

// Account is the persisted user record.
type Account struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	Email  string `bson:"email"`
	Role   Role   `bson:"role"`
	Gender Gender `bson:"gender,omitempty"`

	Provider Provider           `bson:"provider"`
	System   *SystemCredentials `bson:"system,omitempty"`

	IsVerified   bool   `bson:"is_verified"`
	EmailOTP     *OTP   `bson:"email_otp,omitempty"`
	NewEmailOTP  *OTP   `bson:"new_email_otp,omitempty"`
	PasswordOTP  *OTP   `bson:"password_otp,omitempty"`
	PendingEmail string `bson:"pending_email,omitempty"`

	CredentialChangedAt *time.Time `bson:"credential_changed_at,omitempty"`

	ProfileImage *Image `bson:"profile_image,omitempty"`
	CoverImage   *Image `bson:"cover_image,omitempty"`

	IsActive  bool       `bson:"is_active"`
	DeletedBy string     `bson:"deleted_by,omitempty"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// IsSystem reports whether the account authenticates with a local password.
func (a *Account) IsSystem() bool { return a.Provider == ProviderSystem }

// Deactivate soft-removes the account, recording who removed it and when.
func (a *Account) Deactivate(by string, now time.Time) {
	a.IsActive = false
	a.DeletedBy = by
	a.DeletedAt = &now
}

// Restore reverts a soft removal.
func (a *Account) Restore() {
	a.IsActive = true
	a.DeletedBy = ""
	a.DeletedAt = nil
}

// Greeting renders the profile salutation the way the product has always
// phrased it: time-of-day prefix plus a gendered title.
func (a *Account) Greeting(now time.Time) string {
	var timeMsg string
	switch h := now.Hour(); {
	case h < 12:
		timeMsg = "Good morning"
	case h < 18:
		timeMsg = "Good afternoon"
	default:
		timeMsg = "Good evening"
	}
	title := "Mr."
	if a.Gender == GenderFemale {
		title = "Ms."
	}
	return fmt.Sprintf("%s, %s %s", timeMsg, title, a.Name)
}
