package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"cityreport/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field names the way clients send them
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into v and validates its struct tags.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.NewValidationError("", "Invalid request body")
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError(fe.Field(), fmt.Sprintf("failed %q validation", fe.Tag()))
		}
		return apperrors.NewValidationError("", err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeAppError maps the error taxonomy onto HTTP statuses.
// Anything unclassified is logged and hidden behind a 500.
func writeAppError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		body := map[string]string{"error": verr.Error()}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		writeJSON(w, http.StatusBadRequest, body)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidCredentials), errors.Is(err, apperrors.ErrSessionExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrAccountLocked):
		status = http.StatusLocked
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, "Not found", http.StatusNotFound)
		return
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeError(w, "Internal server error", status)
		return
	}
	writeError(w, err.Error(), status)
}
