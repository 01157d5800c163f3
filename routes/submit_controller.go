package routes

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/casewell/intake/app"
	"github.com/casewell/intake/httpx"
	"github.com/casewell/intake/log"
	"github.com/casewell/intake/mailer"
	"github.com/casewell/intake/model"
)

const mailTimeout = 10 * time.Second

// SubmitQuestionnaire accepts one flattened answer map, re-validates it
// against the shared schema, rate-limits by source address, persists the
// denormalized row and sends the two notification emails. The database write
// is the record of truth: a failed insert aborts before any email, a failed
// email is logged but does not fail the accepted submission.
func SubmitQuestionnaire(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body")
			return
		}

		answers, photoURLs, idempotencyKey := splitPayload(body)

		// never trust the client's own validation
		if fieldErr := app.Schema.Validate(answers); fieldErr != nil {
			log.Debugf("submission.validate: %s", fieldErr)
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]any{
				"error": fieldErr.Message,
				"field": fieldErr.Key,
				"step":  fieldErr.Step,
			})
			return
		}

		if idempotencyKey == "" {
			idempotencyKey = uuid.NewString()
		}

		// a retry of an already-stored submission replays the success
		// response: no second row, no second emails, no rate-limit charge
		existingId, err := model.FindByIdempotencyKey(r.Context(), app.DB, idempotencyKey)
		if err != nil {
			httpx.LogInternalError(w, r, "db.find_submission", err)
			return
		}
		if existingId != "" {
			render.JSON(w, r, map[string]any{"success": true, "id": existingId})
			return
		}

		ip := sourceIP(r)
		decision, err := app.Limiter.Allow(r.Context(), ip)
		if err != nil {
			httpx.LogInternalError(w, r, "ratelimit.allow", err)
			return
		}
		if !decision.Allowed {
			retrySecs := int(decision.RetryAfter / time.Second)
			log.Debugf("submission.rate_limited: ip=%s retry=%ds", ip, retrySecs)
			w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]any{
				"error":      "Too many submissions from your address. Please try again later.",
				"retryAfter": retrySecs,
			})
			return
		}

		// only currently-visible, non-blank answers are persisted; the rest
		// of the columns stay NULL
		stored := visibleAnswers(app, answers)

		sub := &model.Submission{
			ID:             uuid.NewString(),
			IdempotencyKey: idempotencyKey,
			CreatedAt:      time.Now().UTC(),
			SourceIP:       ip,
			Answers:        stored,
			PhotoURLs:      photoURLs,
		}
		err = model.Insert(r.Context(), app.DB, app.Schema, sub)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				// lost a race against a concurrent retry with the same key
				render.JSON(w, r, map[string]any{"success": true})
				return
			}
			httpx.LogInternalError(w, r, "db.insert_submission", err)
			return
		}

		sendEmails(app, sub)

		render.JSON(w, r, map[string]any{
			"success":   true,
			"id":        sub.ID,
			"remaining": decision.Remaining,
		})
	}
}

func GetSubmissionById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		sub, err := model.Get(r.Context(), app.DB, app.Schema, id)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, r, "get_submission", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_submission", err)
			return
		}

		render.JSON(w, r, sub)
	}
}

// splitPayload separates the flat answer map from the bookkeeping keys the
// client adds alongside it.
func splitPayload(body map[string]any) (answers map[string]string, photoURLs []string, idempotencyKey string) {
	answers = make(map[string]string, len(body))
	for k, v := range body {
		switch k {
		case "submissionId":
			if s, ok := v.(string); ok {
				idempotencyKey = s
			}
		case "photoUrls":
			items, _ := v.([]any)
			for _, item := range items {
				if s, ok := item.(string); ok && s != "" {
					photoURLs = append(photoURLs, s)
				}
			}
		default:
			switch value := v.(type) {
			case string:
				answers[k] = value
			case float64:
				answers[k] = strconv.FormatFloat(value, 'f', -1, 64)
			}
		}
	}
	return
}

func visibleAnswers(app app.App, answers map[string]string) map[string]string {
	visible := app.Schema.Visible(answers)
	stored := make(map[string]string, len(answers))
	for i := range app.Schema.Fields {
		key := app.Schema.Fields[i].Key
		if !visible[key] {
			continue
		}
		if value := strings.TrimSpace(answers[key]); value != "" {
			stored[key] = value
		}
	}
	return stored
}

// sendEmails delivers the confirmation and the intake-team notification with
// a bounded timeout, detached from the request context so a slow provider
// cannot hold the response. Best-effort by policy: failures are logged only.
func sendEmails(app app.App, sub *model.Submission) {
	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()

	if to := sub.Answers["email"]; to != "" {
		subject, html, err := mailer.Confirmation(sub.Answers)
		if err == nil {
			err = app.Mailer.Send(ctx, mailer.Message{
				From:    app.MailFrom,
				To:      to,
				Subject: subject,
				HTML:    html,
			})
		}
		if err != nil {
			log.Errorf("mail.confirmation: %s", err)
		}
	}

	subject, html, err := mailer.Notification(app.Schema, sub.Answers, sub.PhotoURLs, sub.CreatedAt)
	if err == nil {
		err = app.Mailer.Send(ctx, mailer.Message{
			From:    app.MailFrom,
			To:      app.IntakeEmail,
			Subject: subject,
			HTML:    html,
		})
	}
	if err != nil {
		log.Errorf("mail.notification: %s", err)
	}
}

func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
