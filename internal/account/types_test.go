package account

import (
	"strings"
	"testing"
	"time"
)

func TestOTPExpiredAndExhausted(t *testing.T) {
	now := time.Now()
	otp := OTP{ExpiresAt: now.Add(time.Minute), Attempts: 4, MaxAttempts: 5}

	if otp.Expired(now) {
		t.Fatal("not yet expired")
	}
	if !otp.Expired(now.Add(2 * time.Minute)) {
		t.Fatal("should be expired")
	}
	if otp.Exhausted() {
		t.Fatal("one attempt left")
	}
	otp.Attempts++
	if !otp.Exhausted() {
		t.Fatal("budget spent")
	}
}

func TestDeactivateAndRestore(t *testing.T) {
	now := time.Now()
	a := Account{IsActive: true}

	a.Deactivate("admin-1", now)
	if a.IsActive || a.DeletedBy != "admin-1" || a.DeletedAt == nil {
		t.Fatalf("deactivate: %+v", a)
	}

	a.Restore()
	if !a.IsActive || a.DeletedBy != "" || a.DeletedAt != nil {
		t.Fatalf("restore: %+v", a)
	}
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		hour   int
		gender Gender
		want   string
	}{
		{9, GenderFemale, "Good morning, Ms. Dana"},
		{14, GenderMale, "Good afternoon, Mr. Dana"},
		{21, GenderFemale, "Good evening, Ms. Dana"},
	}
	for _, tc := range tests {
		a := Account{Name: "Dana", Gender: tc.gender}
		at := time.Date(2025, 1, 1, tc.hour, 0, 0, 0, time.UTC)
		if got := a.Greeting(at); got != tc.want {
			t.Fatalf("Greeting(%d, %s) = %q, want %q", tc.hour, tc.gender, got, tc.want)
		}
	}
}

func TestIsSystem(t *testing.T) {
	sys := Account{Provider: ProviderSystem, System: &SystemCredentials{}}
	ext := Account{Provider: ProviderGoogle}
	if !sys.IsSystem() || ext.IsSystem() {
		t.Fatal("provider check")
	}
}

func TestRoleValid(t *testing.T) {
	for _, tc := range []struct {
		role Role
		ok   bool
	}{
		{RoleUser, true},
		{RoleAdmin, true},
		{Role("root"), false},
		{Role(strings.ToUpper(string(RoleUser))), false},
	} {
		if tc.role.Valid() != tc.ok {
			t.Fatalf("Valid(%q) = %v", tc.role, tc.role.Valid())
		}
	}
}
