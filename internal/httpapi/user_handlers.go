package httpapi

import (
	"net/http"
	"strings"
	"time"

	"murmur.dev/internal/account"
	"murmur.dev/internal/audit"
	"murmur.dev/internal/auth"
	"murmur.dev/internal/obs"
)

type profileResponse struct {
	accountResponse
	Greeting     string         `json:"greeting"`
	Gender       string         `json:"gender,omitempty"`
	Age          int            `json:"age,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	ProfileImage *account.Image `json:"profileImage,omitempty"`
	CoverImage   *account.Image `json:"coverImage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)

	resp := profileResponse{
		accountResponse: toAccountResponse(acct),
		Greeting:        acct.Greeting(time.Now()),
		Gender:          string(acct.Gender),
		ProfileImage:    acct.ProfileImage,
		CoverImage:      acct.CoverImage,
		CreatedAt:       acct.CreatedAt,
	}
	if acct.IsSystem() {
		resp.Age = acct.System.Age
		phone, err := a.auth.DecryptPhone(acct)
		if err != nil {
			a.failErr(w, err)
			return
		}
		resp.Phone = phone
	}
	a.respond(w, http.StatusOK, "", resp)
}

func (a *API) handleShareProfile(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	base := strings.TrimSuffix(a.shareBaseURL, "/")
	a.respond(w, http.StatusOK, "", map[string]any{
		"shareUrl": base + "/user/public/" + acct.ID,
	})
}

func (a *API) handlePublicProfile(w http.ResponseWriter, r *http.Request) {
	acct, err := a.accounts.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		a.failErr(w, err)
		return
	}
	if !acct.IsVerified || !acct.IsActive {
		a.fail(w, http.StatusNotFound, "account not found")
		return
	}
	base := strings.TrimSuffix(a.shareBaseURL, "/")
	a.respond(w, http.StatusOK, "", map[string]any{
		"id":           acct.ID,
		"name":         acct.Name,
		"profileImage": acct.ProfileImage,
		"messageUrl":   base + "/messages/send/" + acct.ID,
	})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		acct.Name = name
	}
	if req.Phone != "" {
		if !acct.IsSystem() {
			a.failErr(w, auth.ErrSocialAccount)
			return
		}
		enc, err := a.auth.EncryptPhone(req.Phone)
		if err != nil {
			a.failErr(w, err)
			return
		}
		acct.System.Phone = enc
	}
	acct.UpdatedAt = time.Now().UTC()
	if err := a.accounts.Update(r.Context(), acct); err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "profile updated", toAccountResponse(acct))
}

func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	who, _ := caller(r)
	targetID := r.PathValue("id")
	if who.ID != targetID && who.Role != account.RoleAdmin {
		a.failErr(w, auth.ErrForbidden)
		return
	}
	target, err := a.accounts.FindByID(r.Context(), targetID)
	if err != nil {
		a.failErr(w, err)
		return
	}
	if !target.IsActive {
		a.fail(w, http.StatusBadRequest, "account is already deactivated")
		return
	}
	target.Deactivate(who.ID, time.Now().UTC())
	target.UpdatedAt = time.Now().UTC()
	if err := a.accounts.Update(r.Context(), target); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deactivated", map[string]any{"target_id": targetID})
	a.respond(w, http.StatusOK, "account deactivated", nil)
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	who, _ := caller(r)
	targetID := r.PathValue("id")
	target, err := a.accounts.FindByID(r.Context(), targetID)
	if err != nil {
		a.failErr(w, err)
		return
	}
	if target.IsActive {
		a.failErr(w, auth.ErrAlreadyActive)
		return
	}
	// Owners can undo a self-deactivation; an admin-imposed one only an
	// admin can lift.
	if who.Role != account.RoleAdmin {
		if who.ID != targetID || target.DeletedBy != target.ID {
			a.failErr(w, auth.ErrForbidden)
			return
		}
	}
	target.Restore()
	target.UpdatedAt = time.Now().UTC()
	if err := a.accounts.Update(r.Context(), target); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.restored", map[string]any{"target_id": targetID})
	a.respond(w, http.StatusOK, "account restored", nil)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID := r.PathValue("id")
	target, err := a.accounts.FindByID(r.Context(), targetID)
	if err != nil {
		a.failErr(w, err)
		return
	}
	if target.Role == account.RoleAdmin {
		a.fail(w, http.StatusForbidden, "admin accounts cannot be deleted")
		return
	}

	if _, err := a.messages.Purge(r.Context(), targetID); err != nil {
		a.failErr(w, err)
		return
	}
	if err := a.images.DestroyFolder(r.Context(), targetID); err != nil {
		a.failErr(w, err)
		return
	}
	if err := a.accounts.Delete(r.Context(), targetID); err != nil {
		a.failErr(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deleted", map[string]any{"target_id": targetID})
	a.respond(w, http.StatusOK, "account deleted", nil)
}

func (a *API) handleProfileImage(w http.ResponseWriter, r *http.Request) {
	a.replaceImage(w, r, func(acct *account.Account) **account.Image { return &acct.ProfileImage })
}

func (a *API) handleCoverImage(w http.ResponseWriter, r *http.Request) {
	a.replaceImage(w, r, func(acct *account.Account) **account.Image { return &acct.CoverImage })
}

// replaceImage uploads the posted file under the account's folder, swaps the
// image slot and destroys the previous object.
func (a *API) replaceImage(w http.ResponseWriter, r *http.Request, slot func(*account.Account) **account.Image) {
	acct, _ := caller(r)

	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		a.fail(w, http.StatusBadRequest, "only image uploads are accepted")
		return
	}

	obj, err := a.images.Upload(r.Context(), acct.ID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		a.failErr(w, err)
		return
	}

	target := slot(acct)
	previous := *target
	*target = &account.Image{ID: obj.ID, URL: obj.URL}
	acct.UpdatedAt = time.Now().UTC()
	if err := a.accounts.Update(r.Context(), acct); err != nil {
		a.failErr(w, err)
		return
	}
	if previous != nil {
		if err := a.images.Destroy(r.Context(), previous.ID); err != nil {
			obs.LogEvent("warn", "destroying replaced image failed", map[string]any{
				"image": previous.ID, "error": err.Error(),
			})
		}
	}
	a.respond(w, http.StatusOK, "image updated", *target)
}
