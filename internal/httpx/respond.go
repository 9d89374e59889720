package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Field errors become a field -> message object,
// everything else {"error", "code"}. Internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusOf(err)
	kind := apperr.KindOf(err)

	var e *apperr.Error
	errors.As(err, &e)
	if kind == apperr.Internal {
		logx.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, status, errorBody{Error: apperr.SystemErrorMessage, Code: string(kind)})
		return
	}
	if len(e.Fields) > 0 {
		writeJSON(w, status, e.Fields)
		return
	}
	writeJSON(w, status, errorBody{Error: e.Message, Code: string(kind)})
}

// decodeJSON reads a JSON object body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.Validation, "request body is empty")
		}
		return apperr.Wrap(err, apperr.Validation, "invalid json")
	}
	return nil
}
