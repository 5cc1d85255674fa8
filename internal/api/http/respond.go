package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/submission"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeValid decodes a JSON body and runs struct-tag validation on it.
func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

// storeError translates store-layer failures into the API error taxonomy.
// Anything unrecognized is a 500 with a generic message; the driver detail
// stays in the server log.
func storeError(w http.ResponseWriter, err error) {
	var cd *submission.CooldownError
	switch {
	case errors.Is(err, exam.ErrNotFound), errors.Is(err, submission.ErrExamNotFound):
		writeError(w, http.StatusNotFound, "Exam not found")
	case errors.Is(err, submission.ErrNoSubmission):
		writeError(w, http.StatusNotFound, "Result not found")
	case errors.As(err, &cd):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":               "Cooldown active",
			"retry_after_seconds": cd.Remaining,
			"message":             cd.Message(),
		})
	default:
		log.Printf("storage error: %v", err)
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}
