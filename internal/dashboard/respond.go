package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pathakanu/noteminder/internal/errs"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (d *Dashboard) handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			d.writeError(w, r, err)
			return
		}
		if res == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, res)
	}
}

func (d *Dashboard) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	log := d.logger.Warn
	if status >= http.StatusInternalServerError {
		log = d.logger.Error
	}
	log("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errs.IsValidation(err):
		return http.StatusBadRequest
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsStore(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Validation("body", err.Error())
	}
	return nil
}
