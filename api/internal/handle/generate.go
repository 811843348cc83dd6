package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"algo-viz/api/internal/llm"
	"algo-viz/api/internal/pipeline"
)

func (h *Handle) decode(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	var req pipeline.Request
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return req, false
	}
	return req, true
}

// status maps pipeline errors onto HTTP codes. Anything that is not the
// caller's fault is reported as an upstream failure.
func status(err error) int {
	var de *pipeline.DomainError
	switch {
	case errors.Is(err, pipeline.ErrEmptyText), errors.Is(err, llm.ErrUnknownEngine):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *Handle) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	resp, err := h.pipe.Generate(ctx, req)
	if err != nil {
		h.log.Warn("generate", zap.Error(err))
		writeError(w, status(err), "generate error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handle) ParseIR(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	res, err := h.pipe.ParseCNN(ctx, req)
	var de *pipeline.DomainError
	switch {
	case errors.As(err, &de):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":           de.Error(),
			"detected_domain": string(de.Detected),
		})
		return
	case err != nil:
		h.log.Warn("parse_ir", zap.Error(err))
		writeError(w, status(err), "parse error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"engines": h.pipe.Engines().Available(),
	})
}
