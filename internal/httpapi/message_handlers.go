package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"murmur.dev/internal/account"
	"murmur.dev/internal/ids"
	"murmur.dev/internal/obs"
)

// handleSendMessage accepts an anonymous message for the account named in
// the path. A JSON body carries text; a multipart body may attach an image.
func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	receiverID := r.PathValue("receiverId")
	// Settle the recipient before touching the image store so a rejected
	// send never leaves an orphan upload behind.
	if !ids.IsValid(receiverID) {
		a.fail(w, http.StatusNotFound, "account not found")
		return
	}
	if _, err := a.messages.Recipient(r.Context(), receiverID); err != nil {
		a.failErr(w, err)
		return
	}

	var (
		content string
		image   *account.Image
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
			a.fail(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		content = r.FormValue("content")
		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
				a.fail(w, http.StatusBadRequest, "only image uploads are accepted")
				return
			}
			obj, err := a.images.Upload(r.Context(), receiverID, file, header.Size, header.Header.Get("Content-Type"))
			if err != nil {
				a.failErr(w, err)
				return
			}
			image = &account.Image{ID: obj.ID, URL: obj.URL}
		}
	} else {
		var req struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			a.fail(w, http.StatusBadRequest, err.Error())
			return
		}
		content = req.Content
	}

	m, err := a.messages.Send(r.Context(), receiverID, content, image)
	if err != nil {
		if image != nil {
			if derr := a.images.Destroy(r.Context(), image.ID); derr != nil {
				obs.LogEvent("warn", "destroy unsent message image", map[string]any{"image_id": image.ID, "error": derr.Error()})
			}
		}
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusCreated, "message sent", map[string]any{"id": m.ID})
}

func (a *API) handleInbox(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	msgs, total, err := a.messages.Inbox(r.Context(), acct.ID, limit, offset)
	if err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "", map[string]any{
		"total":    total,
		"messages": msgs,
	})
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	m, err := a.messages.Get(r.Context(), acct.ID, r.PathValue("id"))
	if err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "", m)
}

func (a *API) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	acct, _ := caller(r)
	if err := a.messages.Remove(r.Context(), acct.ID, r.PathValue("id")); err != nil {
		a.failErr(w, err)
		return
	}
	a.respond(w, http.StatusOK, "message deleted", nil)
}
