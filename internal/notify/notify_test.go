package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	calls int
}

func (f *fakeSender) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

func (f *fakeSender) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestRenderPerKind(t *testing.T) {
	for _, kind := range []Kind{KindConfirmEmail, KindResetPassword, KindEmailChangeOld, KindEmailChangeNew} {
		subject, html, err := Render(Notification{
			Kind:      kind,
			To:        "dana@example.com",
			Name:      "Dana",
			Code:      "123456",
			ExpiresIn: 10 * time.Minute,
		})
		if err != nil {
			t.Fatalf("Render(%s): %v", kind, err)
		}
		if subject == "" {
			t.Fatalf("Render(%s): empty subject", kind)
		}
		if !strings.Contains(html, "123456") {
			t.Fatalf("Render(%s): body missing the code", kind)
		}
		if !strings.Contains(html, "Dana") {
			t.Fatalf("Render(%s): body missing the name", kind)
		}
		if !strings.Contains(html, "10 minutes") {
			t.Fatalf("Render(%s): body missing the expiry", kind)
		}
	}
}

func TestRenderEscapesName(t *testing.T) {
	_, html, err := Render(Notification{
		Kind:      KindConfirmEmail,
		Name:      `<script>alert("x")</script>`,
		Code:      "123456",
		ExpiresIn: time.Minute,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("name must be HTML-escaped")
	}
}

func TestRenderUnknownKind(t *testing.T) {
	if _, _, err := Render(Notification{Kind: "party-invite"}); err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}

func TestDispatcherDelivers(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 8)
	d.Start()

	d.Enqueue(Notification{Kind: KindConfirmEmail, To: "a@example.com", Name: "A", Code: "111111", ExpiresIn: time.Minute})
	d.Enqueue(Notification{Kind: KindResetPassword, To: "b@example.com", Name: "B", Code: "222222", ExpiresIn: time.Minute})
	d.Close()

	got := sender.delivered()
	if len(got) != 2 {
		t.Fatalf("delivered %d emails, want 2: %v", len(got), got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1)
	// Worker not started: the buffer holds one, the rest must be dropped
	// without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Enqueue(Notification{Kind: KindConfirmEmail, To: "x@example.com", ExpiresIn: time.Minute})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	d.Start()
	d.Close()
	if got := len(sender.delivered()); got != 1 {
		t.Fatalf("delivered %d, want exactly the buffered 1", got)
	}
}

func TestDispatcherLogsFailuresAndContinues(t *testing.T) {
	sender := &fakeSender{fail: true}
	d := NewDispatcher(sender, 8)
	d.Start()
	d.Enqueue(Notification{Kind: KindConfirmEmail, To: "x@example.com", ExpiresIn: time.Minute})
	d.Enqueue(Notification{Kind: KindConfirmEmail, To: "y@example.com", ExpiresIn: time.Minute})
	d.Close()

	sender.mu.Lock()
	calls := sender.calls
	sender.mu.Unlock()
	if calls != 2 {
		t.Fatalf("sender called %d times, want 2 (failures must not stop the worker)", calls)
	}
}
