// Package errors holds request-scoped logging helpers. Every line carries the
// chi request id when one is present so log output can be correlated with
// access logs.
package errors

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

func logf(r *http.Request, level, message string, err error) {
	requestID := middleware.GetReqID(r.Context())
	switch {
	case requestID != "" && err != nil:
		log.Printf("[%s] RequestID=%s: %s: %v", level, requestID, message, err)
	case requestID != "":
		log.Printf("[%s] RequestID=%s: %s", level, requestID, message)
	case err != nil:
		log.Printf("[%s] %s: %v", level, message, err)
	default:
		log.Printf("[%s] %s", level, message)
	}
}

func LogError(r *http.Request, message string, err error) {
	logf(r, "ERROR", message, err)
}

func LogWarn(r *http.Request, message string, err error) {
	logf(r, "WARN", message, err)
}

func LogInfo(r *http.Request, message string) {
	logf(r, "INFO", message, nil)
}

// InternalError logs the underlying error and answers with a generic 500. The
// real cause never reaches the client.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logf(r, "ERROR", message, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
