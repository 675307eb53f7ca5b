package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"murmur.dev/internal/auth"
	"murmur.dev/internal/imagestore"
	"murmur.dev/internal/message"
	"murmur.dev/internal/notify"
	"murmur.dev/internal/store/memory"
)

type mailbox struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (m *mailbox) Enqueue(n notify.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

func (m *mailbox) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no notification captured")
	}
	return m.sent[len(m.sent)-1].Code
}

// recordingImages counts object-store traffic so tests can assert nothing
// was stored for rejected requests.
type recordingImages struct {
	imagestore.Discard
	mu       sync.Mutex
	uploads  int
	destroys int
}

func (s *recordingImages) Upload(ctx context.Context, folder string, r io.Reader, size int64, ct string) (imagestore.Object, error) {
	s.mu.Lock()
	s.uploads++
	s.mu.Unlock()
	return s.Discard.Upload(ctx, folder, r, size, ct)
}

func (s *recordingImages) Destroy(ctx context.Context, id string) error {
	s.mu.Lock()
	s.destroys++
	s.mu.Unlock()
	return s.Discard.Destroy(ctx, id)
}

func (s *recordingImages) counts() (uploads, destroys int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads, s.destroys
}

type apiClient struct {
	baseURL string
	client  *http.Client
	mail    *mailbox
	images  *recordingImages
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	codec, err := auth.NewCodec(auth.Secrets{
		UserAccess:   "ua-secret",
		UserRefresh:  "ur-secret",
		AdminAccess:  "aa-secret",
		AdminRefresh: "ar-secret",
	}, "murmur-test")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	cipher, err := auth.NewCipher("test-crypto-secret")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	accounts := memory.NewAccountStore()
	revoked := memory.NewRevocationStore()
	mail := &mailbox{}

	svc, err := auth.NewService(accounts, revoked, codec, auth.NewHasher(bcrypt.MinCost), cipher, mail)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	guard := auth.NewGuard(codec, accounts, revoked, "Bearer")
	messages := message.NewService(memory.NewMessageStore(), accounts)

	images := &recordingImages{}
	api := New(svc, guard, accounts, messages, images, nil, Config{
		Version:        "test",
		Dev:            true,
		ShareBaseURL:   "http://share.test",
		CORSOrigin:     "*",
		MaxBodyBytes:   1 << 20,
		MaxUploadBytes: 1 << 20,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), mail: mail, images: images, t: t}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, raw)
	}
	return env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// register walks signup + confirm + login and returns the token pair.
func (c *apiClient) register(email string) (access, refresh string) {
	c.t.Helper()

	resp := c.do(http.MethodPost, "/auth/signup", map[string]any{
		"name": "Dana", "email": email, "password": "s3cret-pass",
		"gender": "female", "age": 27,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("signup status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/auth/confirm-email", map[string]any{
		"email": email, "code": c.mail.lastCode(c.t),
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("confirm status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/auth/login", map[string]any{
		"email": email, "password": "s3cret-pass",
	}, nil)
	env := decodeEnvelope(c.t, resp)
	if resp.StatusCode != http.StatusOK || !env.Success {
		c.t.Fatalf("login status = %d, env = %+v", resp.StatusCode, env)
	}
	data := env.Data.(map[string]any)
	tokens := data["tokens"].(map[string]any)
	return tokens["accessToken"].(string), tokens["refreshToken"].(string)
}

func TestSignupConfirmLoginFlow(t *testing.T) {
	c := newTestAPI(t)
	access, refresh := c.register("dana@example.com")
	if access == "" || refresh == "" {
		t.Fatal("expected both tokens")
	}

	resp := c.do(http.MethodGet, "/user/profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("profile status = %d, env = %+v", resp.StatusCode, env)
	}
	profile := env.Data.(map[string]any)
	if profile["email"] != "dana@example.com" {
		t.Fatalf("profile email = %v", profile["email"])
	}
	if profile["greeting"] == "" {
		t.Fatal("expected a greeting")
	}
}

func TestSignupValidation(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodPost, "/auth/signup", map[string]any{
		"name": "Dana", "email": "dana@example.com", "password": "short",
	}, nil)
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusBadRequest || env.Success {
		t.Fatalf("status = %d, env = %+v", resp.StatusCode, env)
	}
	if env.ErrMsg == "" {
		t.Fatal("expected errMsg in failure envelope")
	}
}

func TestDuplicateSignupConflict(t *testing.T) {
	c := newTestAPI(t)
	c.register("dana@example.com")

	resp := c.do(http.MethodPost, "/auth/signup", map[string]any{
		"name": "Other", "email": "dana@example.com", "password": "whatever-pw",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginWrongPassword(t *testing.T) {
	c := newTestAPI(t)
	c.register("dana@example.com")

	resp := c.do(http.MethodPost, "/auth/login", map[string]any{
		"email": "dana@example.com", "password": "wrong-pass",
	}, nil)
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusBadRequest || env.Success {
		t.Fatalf("status = %d, env = %+v", resp.StatusCode, env)
	}
}

func TestRefreshTokenRoute(t *testing.T) {
	c := newTestAPI(t)
	_, refresh := c.register("dana@example.com")

	resp := c.do(http.MethodPost, "/auth/refersh-token", nil, bearer(refresh))
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("refresh status = %d, env = %+v", resp.StatusCode, env)
	}
	data := env.Data.(map[string]any)
	if data["accessToken"] == "" {
		t.Fatal("expected new access token")
	}

	// An access token is not accepted on the refresh route.
	access, _ := c.register("other@example.com")
	resp = c.do(http.MethodPost, "/auth/refersh-token", nil, bearer(access))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh with access token status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/user/profile", nil, nil)
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusUnauthorized || env.Success {
		t.Fatalf("status = %d, env = %+v", resp.StatusCode, env)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	c := newTestAPI(t)
	access, refresh := c.register("dana@example.com")

	resp := c.do(http.MethodPost, "/auth/logout", nil, bearer(access))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Both tokens of the pair are dead.
	resp = c.do(http.MethodGet, "/user/profile", nil, bearer(access))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("access after logout status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/auth/refersh-token", nil, bearer(refresh))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPasswordResetRoutes(t *testing.T) {
	c := newTestAPI(t)
	c.register("dana@example.com")

	resp := c.do(http.MethodPost, "/auth/forgot-password", map[string]any{"email": "dana@example.com"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forgot status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	code := c.mail.lastCode(t)

	resp = c.do(http.MethodPost, "/auth/verify-reset-code", map[string]any{
		"email": "dana@example.com", "code": code,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPut, "/auth/reset-password", map[string]any{
		"email": "dana@example.com", "newPassword": "brand-new-pw",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/auth/login", map[string]any{
		"email": "dana@example.com", "password": "brand-new-pw",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSendAndReadMessages(t *testing.T) {
	c := newTestAPI(t)
	access, _ := c.register("dana@example.com")

	// Pull the recipient id off the share URL.
	resp := c.do(http.MethodGet, "/user/share-profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	share := env.Data.(map[string]any)["shareUrl"].(string)
	id := share[len("http://share.test/user/public/"):]

	// Anonymous sender needs no token.
	resp = c.do(http.MethodPost, "/messages/send/"+id, map[string]any{"content": "you rock"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/messages/inbox", nil, bearer(access))
	env = decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inbox status = %d", resp.StatusCode)
	}
	data := env.Data.(map[string]any)
	if data["total"].(float64) != 1 {
		t.Fatalf("inbox total = %v, want 1", data["total"])
	}
}

func TestMessageReadAndDelete(t *testing.T) {
	c := newTestAPI(t)
	access, _ := c.register("dana@example.com")

	resp := c.do(http.MethodGet, "/user/share-profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	share := env.Data.(map[string]any)["shareUrl"].(string)
	id := share[len("http://share.test/user/public/"):]

	resp = c.do(http.MethodPost, "/messages/send/"+id, map[string]any{"content": "secret admirer"}, nil)
	env = decodeEnvelope(t, resp)
	msgID := env.Data.(map[string]any)["id"].(string)

	resp = c.do(http.MethodGet, "/messages/"+msgID, nil, bearer(access))
	env = decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if got := env.Data.(map[string]any)["content"]; got != "secret admirer" {
		t.Fatalf("content = %v", got)
	}

	// Another account must not see or delete someone else's message.
	other, _ := c.register("lee@example.com")
	resp = c.do(http.MethodGet, "/messages/"+msgID, nil, bearer(other))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-account get status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
	resp = c.do(http.MethodDelete, "/messages/"+msgID, nil, bearer(other))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-account delete status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodDelete, "/messages/"+msgID, nil, bearer(access))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/messages/"+msgID, nil, bearer(access))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSendMessageToMissingUser(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodPost, "/messages/send/no-such-id", map[string]any{"content": "hi"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func imageForm(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="pic.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte("png-bytes"))
	w.Close()
	return &buf, w.FormDataContentType()
}

func (c *apiClient) sendImage(id string) *http.Response {
	c.t.Helper()
	body, ct := imageForm(c.t)
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/messages/send/"+id, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", ct)
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do: %v", err)
	}
	return resp
}

func TestSendImageMessage(t *testing.T) {
	c := newTestAPI(t)
	access, _ := c.register("dana@example.com")

	resp := c.do(http.MethodGet, "/user/share-profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	share := env.Data.(map[string]any)["shareUrl"].(string)
	id := share[len("http://share.test/user/public/"):]

	resp = c.sendImage(id)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if uploads, destroys := c.images.counts(); uploads != 1 || destroys != 0 {
		t.Fatalf("uploads = %d, destroys = %d", uploads, destroys)
	}

	resp = c.do(http.MethodGet, "/messages/inbox", nil, bearer(access))
	env = decodeEnvelope(t, resp)
	msgs := env.Data.(map[string]any)["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("inbox size = %d", len(msgs))
	}
	if typ := msgs[0].(map[string]any)["type"]; typ != "image" {
		t.Fatalf("message type = %v", typ)
	}
}

func TestRejectedImageSendStoresNothing(t *testing.T) {
	c := newTestAPI(t)
	access, _ := c.register("dana@example.com")

	resp := c.do(http.MethodGet, "/user/share-profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	share := env.Data.(map[string]any)["shareUrl"].(string)
	id := share[len("http://share.test/user/public/"):]

	resp = c.do(http.MethodPatch, "/user/deactivate/"+id, nil, bearer(access))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.sendImage(id)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("send status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
	if uploads, _ := c.images.counts(); uploads != 0 {
		t.Fatalf("uploads = %d, want 0 for rejected send", uploads)
	}
}

func TestPublicProfile(t *testing.T) {
	c := newTestAPI(t)
	access, _ := c.register("dana@example.com")

	resp := c.do(http.MethodGet, "/user/share-profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	share := env.Data.(map[string]any)["shareUrl"].(string)
	id := share[len("http://share.test/user/public/"):]

	resp = c.do(http.MethodGet, "/user/public/"+id, nil, nil)
	env = decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public profile status = %d", resp.StatusCode)
	}
	pub := env.Data.(map[string]any)
	if pub["name"] != "Dana" {
		t.Fatalf("public name = %v", pub["name"])
	}
	if _, leaked := pub["email"]; leaked {
		t.Fatal("public profile must not expose the email")
	}
}

func TestDeactivateAndRestore(t *testing.T) {
	c := newTestAPI(t)
	access, _ := c.register("dana@example.com")

	resp := c.do(http.MethodGet, "/user/share-profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	share := env.Data.(map[string]any)["shareUrl"].(string)
	id := share[len("http://share.test/user/public/"):]

	resp = c.do(http.MethodPatch, "/user/deactivate/"+id, nil, bearer(access))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Ordinary routes refuse the deactivated account, restore still works.
	resp = c.do(http.MethodGet, "/user/profile", nil, bearer(access))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("profile while deactivated status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPatch, "/user/restore/"+id, nil, bearer(access))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/user/profile", nil, bearer(access))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile after restore status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeleteUserRequiresAdmin(t *testing.T) {
	c := newTestAPI(t)
	access, _ := c.register("dana@example.com")

	resp := c.do(http.MethodGet, "/user/share-profile", nil, bearer(access))
	env := decodeEnvelope(t, resp)
	share := env.Data.(map[string]any)["shareUrl"].(string)
	id := share[len("http://share.test/user/public/"):]

	resp = c.do(http.MethodDelete, "/user/"+id, nil, bearer(access))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("delete as user status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnknownRoute(t *testing.T) {
	c := newTestAPI(t)
	resp := c.do(http.MethodGet, "/nope", nil, nil)
	env := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusNotFound || env.Success {
		t.Fatalf("status = %d, env = %+v", resp.StatusCode, env)
	}
}

func TestHealthAndReady(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
