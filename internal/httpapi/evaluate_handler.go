package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/heimdall-evaluator/internal/client"
	"github.com/rafaeljc/heimdall-evaluator/internal/logger"
	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
)

// handleEvaluate processes the POST /api/v1/evaluate request.
func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !a.decode(w, r, &req) {
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	r = r.WithContext(logger.With(r.Context(), slog.String("flag", req.Flag)))
	res, err := a.evaluator.Treatment(r.Context(), keyOf(req.Key, req.BucketingKey), req.Flag, ruleengine.AttributesFrom(req.Attributes))
	if err != nil {
		a.renderEvalError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, res)
}

// handleEvaluateBatch processes the POST /api/v1/evaluate/batch request.
func (a *API) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchEvaluateRequest
	if !a.decode(w, r, &req) {
		return
	}

	req.Sanitize()
	if errResp := req.Validate(a.config.MaxBatchSize); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	r = r.WithContext(logger.With(r.Context(), slog.Int("flags", len(req.Flags))))
	results, err := a.evaluator.Treatments(r.Context(), keyOf(req.Key, req.BucketingKey), req.Flags, ruleengine.AttributesFrom(req.Attributes))
	if err != nil {
		a.renderEvalError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, BatchResponse{Results: results})
}

// handleEvaluateSet processes the POST /api/v1/evaluate/sets/{set} request.
func (a *API) handleEvaluateSet(w http.ResponseWriter, r *http.Request) {
	var req SetEvaluateRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.Sanitize()

	set := strings.TrimSpace(chi.URLParam(r, "set"))
	r = r.WithContext(logger.With(r.Context(), slog.String("flag_set", set)))
	results, err := a.evaluator.TreatmentsByFlagSet(r.Context(), keyOf(req.Key, req.BucketingKey), set, ruleengine.AttributesFrom(req.Attributes))
	if err != nil {
		a.renderEvalError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, BatchResponse{Results: results})
}

// handleListFlags processes the GET /api/v1/flags request.
func (a *API) handleListFlags(w http.ResponseWriter, r *http.Request) {
	names, version, ok := a.evaluator.FlagNames()
	if !ok {
		// Lost a race with requireReady; should not happen once loaded.
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{Code: codeNotReady, Message: "Flag definitions have not been loaded yet"})
		return
	}
	if names == nil {
		names = []string{}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, FlagListResponse{Flags: names, Version: version})
}

// --- Private Helpers ---

// decode reads a size-limited JSON body into dst. Numbers are kept as
// json.Number so integer attributes (epoch milliseconds) keep full precision.
// It writes the error response itself and reports whether decoding succeeded.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	log := logger.FromContext(r.Context())

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.config.MaxBodyBytes))
	dec.UseNumber()

	err := dec.Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		render.Status(r, http.StatusRequestEntityTooLarge)
		render.JSON(w, r, ErrorResponse{
			Code:    codeTooLarge,
			Message: fmt.Sprintf("Request body exceeds %d bytes", a.config.MaxBodyBytes),
		})
	case errors.Is(err, io.EOF):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: codeInvalidJSON, Message: "Request body is empty"})
	default:
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    codeInvalidJSON,
			Message: "Invalid JSON payload: " + err.Error(),
		})
	}
	return false
}

// renderEvalError maps client errors onto HTTP responses.
func (a *API) renderEvalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, client.ErrInvalidKey), errors.Is(err, client.ErrInvalidFlagName):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Code: codeInvalidInput, Message: err.Error()})
	default:
		logger.FromContext(r.Context()).Error("evaluation failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: codeInternal, Message: "Failed to evaluate flags"})
	}
}
