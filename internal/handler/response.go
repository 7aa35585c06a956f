package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Warn().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// Error writes {error, kind, ...details}. Plain errors become a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		appErr = domain.ErrInternal("internal server error", err)
	}
	if appErr.Code >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("kind", string(appErr.Kind)).Msg("Request failed")
	}

	body := make(map[string]any, len(appErr.Details)+3)
	for k, v := range appErr.Details {
		body[k] = v
	}
	body["success"] = false
	body["error"] = appErr.Message
	body["kind"] = appErr.Kind
	JSON(w, appErr.Code, body)
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}

// readBody returns the raw body so it can be inspected and decoded. An empty
// body is not an error.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.ErrBadRequest("failed to read request body")
	}
	return body, nil
}
