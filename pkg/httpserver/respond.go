package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind"`
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrRateLimited):
		return http.StatusServiceUnavailable
	}

	switch types.KindOf(err) {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindState, types.KindDuplicate:
		return http.StatusConflict
	case types.KindAuthorization:
		return http.StatusForbidden
	case types.KindResource:
		return http.StatusUnprocessableEntity
	case types.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed-to-encode-response", zap.Error(err))
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request-failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		s.logger.Debug("request-rejected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", types.CodeOf(err)),
			zap.Error(err))
	}

	s.writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Code:  types.CodeOf(err),
		Kind:  string(types.KindOf(err)),
	})
}

// decode reads a JSON request body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return types.Errorf(types.ErrInvalidArgument, "read body: %v", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err = json.Unmarshal(body, v); err != nil {
		return types.Errorf(types.ErrInvalidArgument, "decode body: %v", err)
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, types.Errorf(types.ErrInvalidArgument, "invalid %s %q", name, raw)
	}
	return v, nil
}
