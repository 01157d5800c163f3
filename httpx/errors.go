package httpx

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/casewell/intake/log"
)

// JSONError sends `{"error": msg}` with the given status.
func JSONError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"error": msg})
}

// Will log an error, and send a 500 response with a generic message. The raw
// error never reaches the client.
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	JSONError(w, r, http.StatusInternalServerError, "unexpected error, please try again later")
}

// Will log a debug message, and send a 404 response.
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	JSONError(w, r, http.StatusNotFound, "not found")
}

// Will log an error code at the given level, and send an error response with
// the given status and message.
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string) {
	log.Log(level, code+":", msg)
	JSONError(w, r, status, msg)
}
