package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"murmur.dev/internal/account"
	"murmur.dev/internal/ids"
	"murmur.dev/internal/notify"
	"murmur.dev/internal/obs"
)

// Service orchestrates the account credential lifecycle: signup, OTP
// verification, login, token refresh, password recovery, email change,
// social login and logout. Account mutations are plain read-modify-write
// sequences; concurrent requests against the same account race and the last
// writer wins, which is accepted for this workload.
type Service struct {
	accounts account.Store
	revoked  RevocationStore
	codec    *Codec
	hasher   Hasher
	cipher   *Cipher
	identity IdentityVerifier
	notify   notify.Enqueuer
	now      func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithIdentityVerifier installs the external identity provider used by
// social login. Without one, social login is unavailable.
func WithIdentityVerifier(v IdentityVerifier) ServiceOption {
	return func(s *Service) { s.identity = v }
}

// NewService wires the credential-lifecycle flows together.
func NewService(accounts account.Store, revoked RevocationStore, codec *Codec, hasher Hasher, cipher *Cipher, enq notify.Enqueuer, opts ...ServiceOption) (*Service, error) {
	if accounts == nil || revoked == nil || codec == nil || cipher == nil {
		return nil, errors.New("auth: accounts, revocations, codec and cipher are required")
	}
	if enq == nil {
		enq = notify.Discard{}
	}
	s := &Service{
		accounts: accounts,
		revoked:  revoked,
		codec:    codec,
		hasher:   hasher,
		cipher:   cipher,
		notify:   enq,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TokenPair is an access/refresh token pair sharing one jti, so revoking the
// pair invalidates both.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func (s *Service) mintPair(acct *account.Account) (TokenPair, error) {
	jti := NewJTI()
	access, err := s.codec.Sign(acct, AccessToken, jti)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.Sign(acct, RefreshToken, jti)
	if err != nil {
		return TokenPair{}, err
	}
	now := s.now()
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.codec.TTL(AccessToken)),
		RefreshExpiresAt: now.Add(s.codec.TTL(RefreshToken)),
	}, nil
}

// NormalizeEmail lowercases and trims an address the same way everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUpInput carries the fields of a password-based registration.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Gender   account.Gender
	Age      int
	Phone    string
}

// SignUp registers a new unverified system-provider account and emails its
// confirmation OTP. The stored record holds only the password hash, the OTP
// hash and the encrypted phone.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*account.Account, error) {
	email := NormalizeEmail(in.Email)

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, account.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	var phone string
	if in.Phone != "" {
		phone, err = s.cipher.Encrypt(in.Phone)
		if err != nil {
			return nil, err
		}
	}
	code, otp, err := s.GenerateOTP(RegistrationOTPTTL)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	acct := &account.Account{
		ID:       ids.New(),
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Role:     account.RoleUser,
		Gender:   in.Gender,
		Provider: account.ProviderSystem,
		System: &account.SystemCredentials{
			PasswordHash: passwordHash,
			Age:          in.Age,
			Phone:        phone,
		},
		IsVerified: false,
		EmailOTP:   otp,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.notify.Enqueue(notify.Notification{
		Kind:      notify.KindConfirmEmail,
		To:        acct.Email,
		Name:      acct.Name,
		Code:      code,
		ExpiresIn: RegistrationOTPTTL,
	})
	return acct, nil
}

// ConfirmEmail consumes the registration OTP. Confirming an already verified
// account is rejected without mutating anything or sending email.
func (s *Service) ConfirmEmail(ctx context.Context, email, code string) error {
	acct, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if acct.IsVerified {
		return ErrAlreadyVerified
	}
	if err := s.checkOTP(acct.EmailOTP, code); err != nil {
		s.persistOTPFailure(ctx, acct, err, "confirm_email")
		return err
	}
	acct.IsVerified = true
	acct.EmailOTP = nil
	return s.saveAccount(ctx, acct)
}

// OTPType names the resend-otp variants.
type OTPType string

const (
	OTPTypeRegister      OTPType = "register"
	OTPTypeResetPassword OTPType = "reset-password"
)

// ResendOTP regenerates the OTP for the given flow, resetting its attempt
// budget, and emails the fresh code.
func (s *Service) ResendOTP(ctx context.Context, email string, typ OTPType) error {
	acct, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	switch typ {
	case OTPTypeRegister:
		if acct.IsVerified {
			return ErrAlreadyVerified
		}
		code, otp, err := s.GenerateOTP(RegistrationOTPTTL)
		if err != nil {
			return err
		}
		acct.EmailOTP = otp
		if err := s.saveAccount(ctx, acct); err != nil {
			return err
		}
		s.notify.Enqueue(notify.Notification{
			Kind: notify.KindConfirmEmail, To: acct.Email, Name: acct.Name,
			Code: code, ExpiresIn: RegistrationOTPTTL,
		})
		return nil
	case OTPTypeResetPassword:
		if !acct.IsVerified {
			return ErrEmailNotVerified
		}
		if !acct.IsActive {
			return ErrAccountDeactivated
		}
		code, otp, err := s.GenerateOTP(PasswordResetOTPTTL)
		if err != nil {
			return err
		}
		acct.PasswordOTP = otp
		if err := s.saveAccount(ctx, acct); err != nil {
			return err
		}
		s.notify.Enqueue(notify.Notification{
			Kind: notify.KindResetPassword, To: acct.Email, Name: acct.Name,
			Code: code, ExpiresIn: PasswordResetOTPTTL,
		})
		return nil
	default:
		return ErrOTPInvalid
	}
}

// Login authenticates a password account and mints a token pair. Check order
// is fixed: credentials first, then active, then verified. A wrong password
// never reveals account state, and latency for an unknown email matches the
// wrong-password path.
func (s *Service) Login(ctx context.Context, email, password string) (*account.Account, TokenPair, error) {
	acct, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			s.hasher.CompareDummy(password)
			obs.IncLogin("invalid")
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if !acct.IsSystem() {
		obs.IncLogin("blocked")
		return nil, TokenPair{}, ErrSocialAccount
	}
	if !s.hasher.Compare(password, acct.System.PasswordHash) {
		obs.IncLogin("invalid")
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !acct.IsActive {
		obs.IncLogin("blocked")
		return nil, TokenPair{}, ErrAccountDeactivated
	}
	if !acct.IsVerified && acct.PendingEmail == "" {
		obs.IncLogin("blocked")
		return nil, TokenPair{}, ErrEmailNotVerified
	}

	pair, err := s.mintPair(acct)
	if err != nil {
		return nil, TokenPair{}, err
	}
	obs.IncLogin("success")
	return acct, pair, nil
}

// Refresh mints a new access token for an account whose refresh token
// already passed the guard pipeline. The new token keeps the refresh
// token's jti so the pair stays revocable as a unit.
func (s *Service) Refresh(acct *account.Account, claims *Claims) (string, time.Time, error) {
	access, err := s.codec.Sign(acct, AccessToken, claims.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	return access, s.now().Add(s.codec.TTL(AccessToken)), nil
}

// ForgotPassword issues a password-reset OTP for a verified, active account.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if !acct.IsVerified {
		return ErrEmailNotVerified
	}
	if !acct.IsActive {
		return ErrAccountDeactivated
	}
	code, otp, err := s.GenerateOTP(PasswordResetOTPTTL)
	if err != nil {
		return err
	}
	acct.PasswordOTP = otp
	if err := s.saveAccount(ctx, acct); err != nil {
		return err
	}
	s.notify.Enqueue(notify.Notification{
		Kind: notify.KindResetPassword, To: acct.Email, Name: acct.Name,
		Code: code, ExpiresIn: PasswordResetOTPTTL,
	})
	return nil
}

// VerifyResetCode consumes the password-reset OTP, marking it verified but
// leaving the record in place for ResetPassword to check.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) error {
	acct, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if err := s.checkOTP(acct.PasswordOTP, code); err != nil {
		s.persistOTPFailure(ctx, acct, err, "reset_password")
		return err
	}
	acct.PasswordOTP.Verified = true
	return s.saveAccount(ctx, acct)
}

// ResetPassword sets a new password after the reset code was verified. The
// prior hash joins the password history, reuse of a recorded password is
// rejected, and the credential-change stamp invalidates all outstanding
// tokens.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	acct, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if !acct.IsSystem() {
		return ErrSocialAccount
	}
	otp := acct.PasswordOTP
	if otp == nil || !otp.Verified {
		return ErrOTPNotVerified
	}
	if otp.Expired(s.now()) {
		return ErrOTPExpired
	}
	if err := s.setPassword(acct, newPassword); err != nil {
		return err
	}
	acct.PasswordOTP = nil
	return s.saveAccount(ctx, acct)
}

// UpdatePassword changes the password of an authenticated caller after
// re-checking the current one.
func (s *Service) UpdatePassword(ctx context.Context, acct *account.Account, current, newPassword string) error {
	if !acct.IsSystem() {
		return ErrSocialAccount
	}
	if !s.hasher.Compare(current, acct.System.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := s.setPassword(acct, newPassword); err != nil {
		return err
	}
	return s.saveAccount(ctx, acct)
}

// setPassword hashes the new password, guards against reuse, rolls the old
// hash into history and stamps credentialChangedAt.
func (s *Service) setPassword(acct *account.Account, newPassword string) error {
	if s.hasher.Compare(newPassword, acct.System.PasswordHash) {
		return ErrPasswordReuse
	}
	for _, prior := range acct.System.PasswordHistory {
		if s.hasher.Compare(newPassword, prior) {
			return ErrPasswordReuse
		}
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	acct.System.PasswordHistory = append(acct.System.PasswordHistory, acct.System.PasswordHash)
	acct.System.PasswordHash = hash
	now := s.now().UTC()
	acct.CredentialChangedAt = &now
	return nil
}

// UpdateEmail starts an email change: the caller proves the current address,
// the new address must be unclaimed, and two parallel OTPs go out, one to
// each address. The account drops to unverified until both codes confirm.
func (s *Service) UpdateEmail(ctx context.Context, acct *account.Account, currentEmail, newEmail string) error {
	if NormalizeEmail(currentEmail) != acct.Email {
		return ErrForbidden
	}
	newEmail = NormalizeEmail(newEmail)
	if newEmail == acct.Email {
		return ErrEmailTaken
	}
	if _, err := s.accounts.FindByEmail(ctx, newEmail); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, account.ErrNotFound) {
		return err
	}

	oldCode, oldOTP, err := s.GenerateOTP(RegistrationOTPTTL)
	if err != nil {
		return err
	}
	newCode, newOTP, err := s.GenerateOTP(RegistrationOTPTTL)
	if err != nil {
		return err
	}
	acct.IsVerified = false
	acct.EmailOTP = oldOTP
	acct.NewEmailOTP = newOTP
	acct.PendingEmail = newEmail
	if err := s.saveAccount(ctx, acct); err != nil {
		return err
	}

	s.notify.Enqueue(notify.Notification{
		Kind: notify.KindEmailChangeOld, To: acct.Email, Name: acct.Name,
		Code: oldCode, ExpiresIn: RegistrationOTPTTL,
	})
	s.notify.Enqueue(notify.Notification{
		Kind: notify.KindEmailChangeNew, To: newEmail, Name: acct.Name,
		Code: newCode, ExpiresIn: RegistrationOTPTTL,
	})
	return nil
}

// ResendUpdateEmail regenerates both in-flight email-change OTPs.
func (s *Service) ResendUpdateEmail(ctx context.Context, acct *account.Account) error {
	if acct.PendingEmail == "" {
		return ErrNoPendingEmail
	}
	oldCode, oldOTP, err := s.GenerateOTP(RegistrationOTPTTL)
	if err != nil {
		return err
	}
	newCode, newOTP, err := s.GenerateOTP(RegistrationOTPTTL)
	if err != nil {
		return err
	}
	acct.EmailOTP = oldOTP
	acct.NewEmailOTP = newOTP
	if err := s.saveAccount(ctx, acct); err != nil {
		return err
	}
	s.notify.Enqueue(notify.Notification{
		Kind: notify.KindEmailChangeOld, To: acct.Email, Name: acct.Name,
		Code: oldCode, ExpiresIn: RegistrationOTPTTL,
	})
	s.notify.Enqueue(notify.Notification{
		Kind: notify.KindEmailChangeNew, To: acct.PendingEmail, Name: acct.Name,
		Code: newCode, ExpiresIn: RegistrationOTPTTL,
	})
	return nil
}

// ConfirmUpdateEmail finishes an email change. Both OTPs are checked
// independently: a partial mismatch increments only the failing side's
// attempt counter and still rejects the whole operation. On a full match the
// pending address is promoted and every outstanding token is invalidated.
func (s *Service) ConfirmUpdateEmail(ctx context.Context, acct *account.Account, oldCode, newCode string) error {
	if acct.PendingEmail == "" {
		return ErrNoPendingEmail
	}

	oldErr := s.checkOTP(acct.EmailOTP, oldCode)
	newErr := s.checkOTP(acct.NewEmailOTP, newCode)
	if oldErr != nil || newErr != nil {
		// Attempt counters were already bumped in place where applicable.
		if err := s.saveAccount(ctx, acct); err != nil {
			return err
		}
		obs.IncOTPFailure("update_email")
		if oldErr != nil {
			return oldErr
		}
		return newErr
	}

	acct.Email = acct.PendingEmail
	acct.PendingEmail = ""
	acct.IsVerified = true
	acct.EmailOTP = nil
	acct.NewEmailOTP = nil
	now := s.now().UTC()
	acct.CredentialChangedAt = &now
	return s.saveAccount(ctx, acct)
}

// SocialLogin validates an external identity token, finds or creates the
// matching account and mints a token pair. An email already registered under
// the password provider is rejected outright; we do not link providers.
func (s *Service) SocialLogin(ctx context.Context, rawIDToken string) (*account.Account, TokenPair, error) {
	if s.identity == nil {
		return nil, TokenPair{}, ErrTokenInvalid
	}
	claims, err := s.identity.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, TokenPair{}, err
	}
	// Accounts made here skip the OTP flow entirely, so the provider must
	// have verified the address itself.
	if !claims.EmailVerified {
		return nil, TokenPair{}, fmt.Errorf("%w: provider email not verified", ErrTokenInvalid)
	}

	email := NormalizeEmail(claims.Email)
	acct, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if acct.IsSystem() {
			return nil, TokenPair{}, ErrProviderConflict
		}
	case errors.Is(err, account.ErrNotFound):
		now := s.now().UTC()
		acct = &account.Account{
			ID:         ids.New(),
			Name:       claims.Name,
			Email:      email,
			Role:       account.RoleUser,
			Provider:   account.ProviderGoogle,
			IsVerified: true,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.accounts.Create(ctx, acct); err != nil {
			return nil, TokenPair{}, err
		}
	default:
		return nil, TokenPair{}, err
	}

	if !acct.IsActive {
		return nil, TokenPair{}, ErrAccountDeactivated
	}

	pair, err := s.mintPair(acct)
	if err != nil {
		return nil, TokenPair{}, err
	}
	obs.IncLogin("success")
	return acct, pair, nil
}

// Logout revokes the presented token pair's jti. A concurrent duplicate
// insert means the pair is already revoked, which is the desired end state.
func (s *Service) Logout(ctx context.Context, claims *Claims, device string) error {
	if claims.ID == "" {
		return ErrTokenInvalid
	}
	now := s.now().UTC()
	err := s.revoked.Revoke(ctx, &RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.Subject,
		Device:    device,
		ExpiresAt: now.Add(RevocationTTL),
		CreatedAt: now,
	})
	if err != nil && !errors.Is(err, account.ErrDuplicate) {
		return err
	}
	obs.IncTokenRevoked()
	return nil
}

// LogoutAll revokes the presented pair and stamps credentialChangedAt so
// every token issued before this instant, on any device, fails the guard.
func (s *Service) LogoutAll(ctx context.Context, acct *account.Account, claims *Claims, device string) error {
	if err := s.Logout(ctx, claims, device); err != nil {
		return err
	}
	now := s.now().UTC()
	acct.CredentialChangedAt = &now
	return s.saveAccount(ctx, acct)
}

// DecryptPhone returns the plaintext phone of a system account, or "" when
// none is stored.
func (s *Service) DecryptPhone(acct *account.Account) (string, error) {
	if acct.System == nil || acct.System.Phone == "" {
		return "", nil
	}
	return s.cipher.Decrypt(acct.System.Phone)
}

// EncryptPhone encrypts a phone number for storage.
func (s *Service) EncryptPhone(phone string) (string, error) {
	return s.cipher.Encrypt(phone)
}

func (s *Service) saveAccount(ctx context.Context, acct *account.Account) error {
	acct.UpdatedAt = s.now().UTC()
	return s.accounts.Update(ctx, acct)
}

// persistOTPFailure saves an incremented attempt counter after a rejected
// code. Expired and exhausted challenges mutate nothing, so skip the write.
func (s *Service) persistOTPFailure(ctx context.Context, acct *account.Account, cause error, flow string) {
	obs.IncOTPFailure(flow)
	if !errors.Is(cause, ErrOTPInvalid) {
		return
	}
	if err := s.saveAccount(ctx, acct); err != nil {
		obs.LogEvent("error", "persisting otp attempt counter failed", map[string]any{
			"account": acct.ID, "error": err.Error(),
		})
	}
}
