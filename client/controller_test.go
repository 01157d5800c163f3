package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/casewell/intake/draft"
	"github.com/casewell/intake/form"
	"github.com/casewell/intake/formtest"
)

type memStore struct {
	mu   sync.Mutex
	data []byte
	has  bool
}

func (s *memStore) Load() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.has, nil
}

func (s *memStore) Save(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data, s.has = data, true
	return nil
}

func (s *memStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data, s.has = nil, false
	return nil
}

type fakeUploader struct {
	failOn string
	urls   []string
}

func (u *fakeUploader) Upload(_ context.Context, filename string, _ io.Reader) (string, error) {
	if filename == u.failOn {
		return "", errors.New("bucket unavailable")
	}
	url := "https://cdn.example.com/photos/" + filename
	u.urls = append(u.urls, url)
	return url, nil
}

func filledSession(t *testing.T) *form.Session {
	t.Helper()
	session := form.NewSession(form.Questionnaire())
	for k, v := range formtest.Valid() {
		session.Set(k, v)
	}
	return session
}

func TestDoubleSubmitResultsInOnePost(t *testing.T) {
	var posts atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		close(started)
		<-release
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	ctrl := NewController(filledSession(t), srv.URL)

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background()) }()
	<-started

	// second submit while the first is in flight: no-op, no second POST
	if err := ctrl.Submit(context.Background()); err != nil {
		t.Errorf("in-flight guard returned error: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if got := posts.Load(); got != 1 {
		t.Errorf("got %d POSTs, want exactly 1", got)
	}
}

func TestValidationFailureMakesNoNetworkCall(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	session := filledSession(t)
	session.Set("email", "")
	session.GoTo(4)

	ctrl := NewController(session, srv.URL)
	err := ctrl.Submit(context.Background())

	var fieldErr *form.FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected *form.FieldError, got %T (%v)", err, err)
	}
	if fieldErr.Key != "email" || fieldErr.Step != 0 {
		t.Errorf("got field=%q step=%d, want field=email step=0", fieldErr.Key, fieldErr.Step)
	}
	if session.Step() != 0 {
		t.Errorf("session should jump to the offending step, at %d", session.Step())
	}
	if posts.Load() != 0 {
		t.Error("validation failure still issued a POST")
	}
}

func TestSubmitSuccessClearsEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"remaining":4}`)
	}))
	defer srv.Close()

	store := &memStore{}
	saver := draft.NewSaver(store, time.Millisecond)
	session := filledSession(t)
	saver.Attach(session)
	saver.Flush()

	notified := false
	ctrl := NewController(session, srv.URL, WithSaver(saver), OnSuccess(func() { notified = true }))

	session.GoTo(4)
	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if len(session.Answers()) != 0 {
		t.Error("answers not cleared on success")
	}
	if session.Step() != 0 {
		t.Errorf("step not reset, at %d", session.Step())
	}
	if _, ok, _ := store.Load(); ok {
		t.Error("draft not deleted on success")
	}
	if !notified {
		t.Error("success hook not fired")
	}
}

func TestUploadFailureAbortsBeforePost(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	session := filledSession(t)
	ctrl := NewController(session, srv.URL, WithUploader(&fakeUploader{failOn: "two.jpg"}))
	ctrl.Attach("one.jpg", strings.NewReader("a"))
	ctrl.Attach("two.jpg", strings.NewReader("b"))

	err := ctrl.Submit(context.Background())
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected *UploadError, got %T (%v)", err, err)
	}
	if uploadErr.Filename != "two.jpg" {
		t.Errorf("failing file: got %q", uploadErr.Filename)
	}
	if posts.Load() != 0 {
		t.Error("partial upload must abort before any POST")
	}
	if len(session.Answers()) == 0 {
		t.Error("answers must survive a failed attempt")
	}
}

func TestSubmitPayloadCarriesURLsNotFiles(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("payload not valid JSON: %v", err)
		}
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	uploader := &fakeUploader{}
	ctrl := NewController(filledSession(t), srv.URL, WithUploader(uploader))
	ctrl.Attach("crash.jpg", strings.NewReader("jpeg bytes"))

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var urls []string
	for _, v := range payload["photoUrls"].([]any) {
		urls = append(urls, v.(string))
	}
	if diff := cmp.Diff(uploader.urls, urls); diff != "" {
		t.Errorf("photoUrls mismatch (-uploaded +sent):\n%s", diff)
	}
	if payload["submissionId"] == "" || payload["submissionId"] == nil {
		t.Error("payload missing submissionId")
	}
	if payload["fullName"] != "Jordan Avery" {
		t.Errorf("answers not flattened into payload: %v", payload["fullName"])
	}
}

func TestRateLimitResponseSurfacesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"Too many submissions from your address. Please try again later.","retryAfter":1800}`)
	}))
	defer srv.Close()

	session := filledSession(t)
	ctrl := NewController(session, srv.URL)

	err := ctrl.Submit(context.Background())
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %T (%v)", err, err)
	}
	if rateErr.RetryAfter != 1800*time.Second {
		t.Errorf("retry after: got %s, want 30m", rateErr.RetryAfter)
	}
	if len(session.Answers()) == 0 {
		t.Error("answers must survive a rate-limited attempt")
	}
}

func TestServerFieldRejectionMapsToFieldError(t *testing.T) {
	// the endpoint can reject a field the local schema accepted; the caller
	// gets the same error type as a local failure, session moved to the step
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"Email is required","field":"email","step":0}`)
	}))
	defer srv.Close()

	session := filledSession(t)
	session.GoTo(4)
	ctrl := NewController(session, srv.URL)

	err := ctrl.Submit(context.Background())
	var fieldErr *form.FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected *form.FieldError, got %T (%v)", err, err)
	}
	if fieldErr.Key != "email" || fieldErr.Step != 0 {
		t.Errorf("got field=%q step=%d, want field=email step=0", fieldErr.Key, fieldErr.Step)
	}
	if fieldErr.Message != "Email is required" {
		t.Errorf("message: got %q, want the server's own words", fieldErr.Message)
	}
	if session.Step() != 0 {
		t.Errorf("session should jump to the rejected field's step, at %d", session.Step())
	}
	if len(session.Answers()) == 0 {
		t.Error("answers must survive a rejected attempt")
	}
}

func TestServerRejectionWithoutFieldFallsBackToTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid request body"}`)
	}))
	defer srv.Close()

	ctrl := NewController(filledSession(t), srv.URL)
	err := ctrl.Submit(context.Background())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
	if transportErr.Message != "invalid request body" {
		t.Errorf("message: got %q", transportErr.Message)
	}
}

func TestTransportErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"database exploded"}`)
	}))
	defer srv.Close()

	ctrl := NewController(filledSession(t), srv.URL)
	err := ctrl.Submit(context.Background())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
	if transportErr.Message != "database exploded" {
		t.Errorf("message: got %q, want the server's own words", transportErr.Message)
	}
}

func TestTransportErrorFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctrl := NewController(filledSession(t), srv.URL)
	err := ctrl.Submit(context.Background())

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
	if transportErr.Message != FallbackMessage {
		t.Errorf("message: got %q, want fallback", transportErr.Message)
	}
}

func TestIdempotencyKeyStableAcrossRetries(t *testing.T) {
	var ids []string
	var fail atomic.Bool
	fail.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		ids = append(ids, payload["submissionId"].(string))

		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"try again"}`)
			return
		}
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	ctrl := NewController(filledSession(t), srv.URL)

	if err := ctrl.Submit(context.Background()); err == nil {
		t.Fatal("first attempt should fail")
	}
	fail.Store(false)
	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	if len(ids) != 2 {
		t.Fatalf("got %d POSTs, want 2", len(ids))
	}
	if ids[0] != ids[1] {
		t.Errorf("retry used a different idempotency key: %q vs %q", ids[0], ids[1])
	}
	if ids[0] == "" {
		t.Error("idempotency key is empty")
	}
}
