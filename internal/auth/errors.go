package auth

import "errors"

var (
	// ErrInvalidCredentials covers both a wrong password and an unknown
	// email. The two are deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")

	ErrEmailTaken         = errors.New("auth: this email is already registered")
	ErrEmailNotVerified   = errors.New("auth: please verify your email first")
	ErrAccountDeactivated = errors.New("auth: account is deactivated")
	ErrAlreadyVerified    = errors.New("auth: user already verified")
	ErrAlreadyActive      = errors.New("auth: account is already active")
	ErrForbidden          = errors.New("auth: not authorized for this action")
	ErrSocialAccount      = errors.New("auth: account uses social login")
	ErrProviderConflict   = errors.New("auth: email registered with password login")
	ErrPasswordReuse      = errors.New("auth: password was used before")
	ErrNoPendingEmail     = errors.New("auth: no email change in progress")

	ErrTokenRequired = errors.New("auth: token is required")
	ErrTokenInvalid  = errors.New("auth: invalid token")
	ErrTokenExpired  = errors.New("auth: token expired")
	ErrTokenRevoked  = errors.New("auth: token has been revoked, please login again")
	// ErrTokenStale marks tokens issued before the account's last
	// credential change.
	ErrTokenStale = errors.New("auth: token is no longer valid, please login again")

	ErrOTPInvalid     = errors.New("auth: invalid OTP")
	ErrOTPExpired     = errors.New("auth: OTP expired, please request again")
	ErrOTPMaxAttempts = errors.New("auth: too many wrong attempts, request a new code")
	ErrOTPNotVerified = errors.New("auth: reset code has not been verified")

	// ErrCipher wraps any failure to decrypt a stored ciphertext.
	ErrCipher = errors.New("auth: cannot decrypt value")
)
