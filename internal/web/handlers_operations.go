package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/USFAkbari/Excel-Tools/internal/core"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/logging"
)

// maxRequestBody bounds JSON operation bodies.
const maxRequestBody = 1 << 20

// operation adapts a service operation taking a JSON request body into a
// handler. Every operation responds with a core.Result.
func operation[T any](s *Server, op func(context.Context, T) (*core.Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}

		res, err := op(r.Context(), req)
		if err != nil {
			respondError(w, r, err)
			return
		}

		logging.FromContext(r.Context()).Info("operation completed",
			"path", r.URL.Path,
			"file_id", res.FileID,
			"files", len(res.FileIDs),
		)
		writeJSON(w, http.StatusOK, res)
	}
}

// decodeJSON reads a single JSON object into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return dataset.Validationf("request", "request body exceeds %d bytes", maxRequestBody)
		case errors.Is(err, io.EOF):
			return dataset.Validationf("request", "request body is empty")
		default:
			return dataset.Validationf("request", "invalid request body: %v", err)
		}
	}
	return nil
}
