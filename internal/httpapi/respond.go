package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"murmur.dev/internal/account"
	"murmur.dev/internal/auth"
	"murmur.dev/internal/message"
)

// envelope is the uniform response body. Success and failure shapes share it;
// omitted fields keep each shape minimal.
type envelope struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	ErrMsg  string `json:"errMsg,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) respond(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{
		Success: true,
		Status:  code,
		Message: message,
		Data:    data,
	})
}

func (a *API) fail(w http.ResponseWriter, code int, errMsg string) {
	env := envelope{Success: false, Status: code, ErrMsg: errMsg}
	if a.dev && code >= http.StatusInternalServerError {
		env.Stack = string(debug.Stack())
	}
	writeJSON(w, code, env)
}

// failErr maps a domain error onto the envelope via the sentinel taxonomy.
func (a *API) failErr(w http.ResponseWriter, err error) {
	code, msg := mapError(err)
	a.fail(w, code, msg)
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid email or password"
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, auth.ErrProviderConflict):
		return http.StatusConflict, "email registered with a password, use password login"
	case errors.Is(err, auth.ErrSocialAccount):
		return http.StatusBadRequest, "account uses social login"
	case errors.Is(err, auth.ErrEmailNotVerified):
		return http.StatusForbidden, "email not verified"
	case errors.Is(err, auth.ErrAccountDeactivated):
		return http.StatusForbidden, "account is deactivated"
	case errors.Is(err, auth.ErrAlreadyVerified):
		return http.StatusBadRequest, "email already verified"
	case errors.Is(err, auth.ErrAlreadyActive):
		return http.StatusBadRequest, "account is already active"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "not allowed"
	case errors.Is(err, auth.ErrPasswordReuse):
		return http.StatusBadRequest, "password was used before, choose a new one"
	case errors.Is(err, auth.ErrNoPendingEmail):
		return http.StatusBadRequest, "no email change in progress"
	case errors.Is(err, auth.ErrTokenRequired):
		return http.StatusUnauthorized, "authentication token required"
	case errors.Is(err, auth.ErrTokenRevoked):
		return http.StatusUnauthorized, "session ended, login again"
	case errors.Is(err, auth.ErrTokenStale):
		return http.StatusUnauthorized, "credentials changed, login again"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, auth.ErrOTPExpired):
		return http.StatusBadRequest, "code expired, request a new one"
	case errors.Is(err, auth.ErrOTPMaxAttempts):
		return http.StatusBadRequest, "too many wrong attempts, request a new code"
	case errors.Is(err, auth.ErrOTPNotVerified):
		return http.StatusBadRequest, "reset code not verified"
	case errors.Is(err, auth.ErrOTPInvalid):
		return http.StatusBadRequest, "invalid code"
	case errors.Is(err, message.ErrEmptyMessage):
		return http.StatusBadRequest, "message content or image required"
	case errors.Is(err, message.ErrRecipientUnavailable):
		return http.StatusNotFound, "recipient not found"
	case errors.Is(err, message.ErrNotFound):
		return http.StatusNotFound, "message not found"
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, account.ErrDuplicate):
		return http.StatusConflict, "already exists"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// decodeJSON reads a JSON request body into dst, rejecting unknown fields
// and trailing garbage.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
