package auth

import (
	"crypto/rand"
	"math/big"
	"time"

	"murmur.dev/internal/account"
)

const (
	otpDigits      = 6
	otpMaxAttempts = 5

	// RegistrationOTPTTL applies to email confirmation and email change.
	RegistrationOTPTTL = 10 * time.Minute
	// PasswordResetOTPTTL applies to the forgot-password flow.
	PasswordResetOTPTTL = 5 * time.Minute
)

// GenerateOTP draws a uniform fixed-length numeric code and returns it once,
// in plaintext, for email delivery alongside the challenge record that stores
// only its hash.
func (s *Service) GenerateOTP(ttl time.Duration) (string, *account.OTP, error) {
	code, err := randomDigits(otpDigits)
	if err != nil {
		return "", nil, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", nil, err
	}
	return code, &account.OTP{
		CodeHash:    hash,
		ExpiresAt:   s.now().Add(ttl),
		Verified:    false,
		Attempts:    0,
		MaxAttempts: otpMaxAttempts,
	}, nil
}

// randomDigits returns n digits drawn independently from a uniform
// distribution, leading zeros included.
func randomDigits(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

// checkOTP applies the shared consumption contract: a challenge must exist,
// be unexpired and under its attempt budget, and the code must hash-match.
// On a mismatch the attempt counter is incremented in place; the caller is
// responsible for persisting the account either way.
func (s *Service) checkOTP(otp *account.OTP, code string) error {
	if otp == nil {
		return ErrOTPInvalid
	}
	if otp.Expired(s.now()) {
		return ErrOTPExpired
	}
	if otp.Exhausted() {
		return ErrOTPMaxAttempts
	}
	if !s.hasher.Compare(code, otp.CodeHash) {
		otp.Attempts++
		return ErrOTPInvalid
	}
	return nil
}
