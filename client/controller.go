// Package client drives a questionnaire session through submission: full
// schema validation, attachment upload, then one JSON POST to the intake
// endpoint. A UI layer renders whatever the session and the returned errors
// dictate; nothing here draws anything.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/casewell/intake/draft"
	"github.com/casewell/intake/form"
	"github.com/casewell/intake/log"
)

// Attachment is one binary file (a photo) attached to the submission.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// Controller owns the submit pipeline for one session.
type Controller struct {
	session  *form.Session
	saver    *draft.Saver
	uploader Uploader
	endpoint string
	client   *http.Client

	attachments []Attachment
	inFlight    atomic.Bool

	// idempotency key for the current attempt sequence: minted on the first
	// try, reused on retries so the server can deduplicate, discarded on
	// success.
	submissionID string

	onSuccess func()
}

type Option func(*Controller)

// WithSaver wires draft persistence: the draft is cleared on success.
func WithSaver(s *draft.Saver) Option {
	return func(c *Controller) { c.saver = s }
}

// WithUploader sets the object-storage client used for attachments.
func WithUploader(u Uploader) Option {
	return func(c *Controller) { c.uploader = u }
}

// WithHTTPClient overrides the transport used for the submission POST.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Controller) { c.client = hc }
}

// OnSuccess registers the success-notification hook.
func OnSuccess(fn func()) Option {
	return func(c *Controller) { c.onSuccess = fn }
}

func NewController(session *form.Session, endpoint string, opts ...Option) *Controller {
	c := &Controller{
		session:  session,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach queues a binary file for upload with the next submission.
func (c *Controller) Attach(filename string, content io.Reader) {
	c.attachments = append(c.attachments, Attachment{Filename: filename, Content: content})
}

// Submit runs validation, uploads attachments, and POSTs the answer map.
// While one submission is in flight any further call is a no-op, so exactly
// one POST can result from a burst of submit clicks.
//
// Failures come back as *form.FieldError (with the session moved to the
// offending step), *UploadError, *RateLimitError or *TransportError; the
// session is left untouched on failure so the user can retry without
// re-entering anything.
func (c *Controller) Submit(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer c.inFlight.Store(false)

	answers := c.session.Answers()
	if fieldErr := c.session.Schema().Validate(answers); fieldErr != nil {
		c.session.GoTo(fieldErr.Step)
		return fieldErr
	}

	if c.submissionID == "" {
		c.submissionID = uuid.NewString()
	}

	photoURLs, err := c.uploadAll(ctx)
	if err != nil {
		return err
	}

	if err := c.post(ctx, answers, photoURLs); err != nil {
		return err
	}

	// accepted: the draft must not survive a successful submission
	if c.saver != nil {
		c.saver.Clear()
	}
	c.session.Reset()
	c.attachments = nil
	c.submissionID = ""
	if c.onSuccess != nil {
		c.onSuccess()
	}
	return nil
}

// uploadAll is all-or-nothing: the first failed upload aborts the attempt
// before any POST is issued.
func (c *Controller) uploadAll(ctx context.Context) ([]string, error) {
	if len(c.attachments) == 0 {
		return nil, nil
	}
	if c.uploader == nil {
		return nil, &UploadError{Filename: c.attachments[0].Filename, Err: fmt.Errorf("no uploader configured")}
	}

	urls := make([]string, 0, len(c.attachments))
	for _, att := range c.attachments {
		url, err := c.uploader.Upload(ctx, att.Filename, att.Content)
		if err != nil {
			return nil, &UploadError{Filename: att.Filename, Err: err}
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (c *Controller) post(ctx context.Context, answers map[string]string, photoURLs []string) error {
	payload := make(map[string]any, len(answers)+2)
	for k, v := range answers {
		payload[k] = v
	}
	payload["submissionId"] = c.submissionID
	if photoURLs == nil {
		photoURLs = []string{}
	}
	payload["photoUrls"] = photoURLs

	body, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Message: FallbackMessage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Message: FallbackMessage, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Message: FallbackMessage, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var serverErr struct {
		Error      string `json:"error"`
		Field      string `json:"field"`
		Step       int    `json:"step"`
		RetryAfter int    `json:"retryAfter"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &serverErr); err != nil {
		log.Debugf("submit.decode_error_body: %v", err)
	}

	message := strings.TrimSpace(serverErr.Error)
	if message == "" {
		message = FallbackMessage
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    message,
			RetryAfter: time.Duration(serverErr.RetryAfter) * time.Second,
		}
	case http.StatusBadRequest:
		// the endpoint re-validates with its own copy of the schema; when it
		// names a field the schemas have drifted, and the user still gets sent
		// to the offending step
		if serverErr.Field != "" {
			c.session.GoTo(serverErr.Step)
			return &form.FieldError{Key: serverErr.Field, Step: serverErr.Step, Message: message}
		}
	}
	return &TransportError{Message: message, Err: fmt.Errorf("endpoint responded %d", resp.StatusCode)}
}
