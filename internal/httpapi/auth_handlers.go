package httpapi

import (
	"net/http"
	"strings"
	"time"

	"murmur.dev/internal/account"
	"murmur.dev/internal/audit"
	"murmur.dev/internal/auth"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
	Age      int    `json:"age"`
	Phone    string `json:"phone"`
}

type accountResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Provider   string `json:"provider"`
	IsVerified bool   `json:"isVerified"`
}

func toAccountResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Role:       string(a.Role),
		Provider:   string(a.Provider),
		IsVerified: a.IsVerified,
	}
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		a.fail(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if len(req.Password) < 8 {
		a.fail(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	acct, err := a.auth.SignUp(r.Context(), auth.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Gender:   account.Gender(req.Gender),
		Age:      req.Age,
		Phone:    req.Phone,
	})
	if err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{"account_id": acct.ID})
	a.respond(w, http.StatusCreated, "account created, check your email for the confirmation code", toAccountResponse(acct))
}

type emailCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (a *API) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ConfirmEmail(r.Context(), req.Email, req.Code); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.email_confirmed", map[string]any{"email": auth.NormalizeEmail(req.Email)})
	a.respond(w, http.StatusOK, "email confirmed", nil)
}

func (a *API) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	typ := auth.OTPType(r.PathValue("type"))
	if typ != auth.OTPTypeRegister && typ != auth.OTPTypeResetPassword {
		a.fail(w, http.StatusBadRequest, "unknown otp type")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ResendOTP(r.Context(), req.Email, typ); err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "a new code is on its way", nil)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, pair, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"account_id": acct.ID})
	a.respond(w, http.StatusOK, "logged in", map[string]any{
		"user":   toAccountResponse(acct),
		"tokens": pair,
	})
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	acct, claims := caller(r)
	access, expiresAt, err := a.auth.Refresh(acct, claims)
	if err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "", map[string]any{
		"accessToken":     access,
		"accessExpiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "reset code sent", nil)
}

func (a *API) handleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.VerifyResetCode(r.Context(), req.Email, req.Code); err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "code verified, set your new password", nil)
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.NewPassword) < 8 {
		a.fail(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_reset", map[string]any{"email": auth.NormalizeEmail(req.Email)})
	a.respond(w, http.StatusOK, "password updated, login with your new password", nil)
}

func (a *API) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.NewPassword) < 8 {
		a.fail(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if err := a.auth.UpdatePassword(r.Context(), acct, req.CurrentPassword, req.NewPassword); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_updated", nil)
	a.respond(w, http.StatusOK, "password updated", nil)
}

func (a *API) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	var req struct {
		CurrentEmail string `json:"currentEmail"`
		NewEmail     string `json:"newEmail"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.NewEmail) == "" {
		a.fail(w, http.StatusBadRequest, "newEmail is required")
		return
	}
	if err := a.auth.UpdateEmail(r.Context(), acct, req.CurrentEmail, req.NewEmail); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.email_change_started", nil)
	a.respond(w, http.StatusOK, "confirmation codes sent to both addresses", nil)
}

func (a *API) handleResendUpdateEmail(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	if err := a.auth.ResendUpdateEmail(r.Context(), acct); err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "confirmation codes re-sent", nil)
}

func (a *API) handleConfirmUpdateEmail(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	var req struct {
		OldEmailCode string `json:"oldEmailCode"`
		NewEmailCode string `json:"newEmailCode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ConfirmUpdateEmail(r.Context(), acct, req.OldEmailCode, req.NewEmailCode); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.email_changed", map[string]any{"email": acct.Email})
	a.respond(w, http.StatusOK, "email updated, login again", nil)
}

func (a *API) handleSocialLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IDToken == "" {
		a.fail(w, http.StatusBadRequest, "idToken is required")
		return
	}
	acct, pair, err := a.auth.SocialLogin(r.Context(), req.IDToken)
	if err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.social_login", map[string]any{"account_id": acct.ID})
	a.respond(w, http.StatusOK, "logged in", map[string]any{
		"user":   toAccountResponse(acct),
		"tokens": pair,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	_, claims := caller(r)
	if err := a.auth.Logout(r.Context(), claims, r.UserAgent()); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	a.respond(w, http.StatusOK, "logged out", nil)
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	acct, claims := caller(r)
	if err := a.auth.LogoutAll(r.Context(), acct, claims, r.UserAgent()); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout_all", nil)
	a.respond(w, http.StatusOK, "logged out everywhere", nil)
}
