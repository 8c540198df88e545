package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"Pylon/internal/calc/baseplate"
	"Pylon/internal/calc/calcerr"
	"Pylon/internal/calc/constants"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/foundation"
	"Pylon/internal/calc/loads"
	"Pylon/internal/calc/members"
	"Pylon/internal/calc/report"
	"Pylon/internal/engine"
)

const maxBody = 1 << 20

// Handler exposes the engine over HTTP. Every calculation response, success
// or failure, is an envelope.
type Handler struct {
	Engine *engine.Engine
	Log    *slog.Logger
	Now    func() time.Time
}

func (h *Handler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return h.Log
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now().UTC()
	}
	return h.Now()
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &calcerr.Error{
			Op:     "api.decode",
			Kind:   calcerr.KindInvalidInput,
			Fields: []calcerr.FieldError{{Path: "body", Message: err.Error()}},
		}
	}
	return nil
}

// engineFor honors ?pack=name@version and ?catalog=name@version so a caller
// can replay a calculation against the reference data it was first run with.
func (h *Handler) engineFor(r *http.Request) (*engine.Engine, error) {
	e := h.Engine
	q := r.URL.Query()
	if ref := q.Get("pack"); ref != "" {
		name, version, ok := strings.Cut(ref, "@")
		if !ok {
			return nil, fmt.Errorf("%w: pack must be name@version, got %q", constants.ErrUnknownPack, ref)
		}
		pinned, err := e.WithPack(name, version)
		if err != nil {
			return nil, err
		}
		e = pinned
	}
	if ref := q.Get("catalog"); ref != "" {
		name, version, ok := strings.Cut(ref, "@")
		if !ok {
			return nil, fmt.Errorf("%w: catalog must be name@version, got %q", engine.ErrUnknownCatalog, ref)
		}
		pinned, err := e.WithCatalog(name, version)
		if err != nil {
			return nil, err
		}
		e = pinned
	}
	return e, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrCatalogConflict):
		return http.StatusConflict
	case errors.Is(err, calcerr.ErrInvalidInput), errors.Is(err, constants.ErrUnknownPack),
		errors.Is(err, engine.ErrUnknownCatalog):
		return http.StatusBadRequest
	case errors.Is(err, calcerr.ErrNonConvergence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, calcerr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("api.encode_failed", "err", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusOf(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger().Log(r.Context(), level, "api.request_failed",
		"op", op, "path", r.URL.Path, "status", status, "err", err)
	writeJSON(w, status, h.Engine.Failure(op, err))
}

// run is the shared decode, compute, encode sequence.
func run[T any](h *Handler, op string, calc func(context.Context, *engine.Engine, T) (envelope.Envelope, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in T
		if err := decode(r, &in); err != nil {
			h.fail(w, r, op, err)
			return
		}
		e, err := h.engineFor(r)
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		env, err := calc(r.Context(), e, in)
		if err != nil {
			h.fail(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusOK, env)
	}
}

func (h *Handler) Loads() http.HandlerFunc {
	return run(h, engine.OpLoads, func(_ context.Context, e *engine.Engine, in loads.Input) (envelope.Envelope, error) {
		return e.DeriveLoads(in)
	})
}

func (h *Handler) Members() http.HandlerFunc {
	return run(h, engine.OpMembers, func(ctx context.Context, e *engine.Engine, in members.Request) (envelope.Envelope, error) {
		return e.SelectMembers(ctx, in)
	})
}

func (h *Handler) Footing() http.HandlerFunc {
	return run(h, engine.OpFooting, func(_ context.Context, e *engine.Engine, in foundation.Input) (envelope.Envelope, error) {
		return e.SolveFooting(in)
	})
}

func (h *Handler) Baseplate() http.HandlerFunc {
	return run(h, engine.OpBaseplate, func(_ context.Context, e *engine.Engine, in baseplate.Input) (envelope.Envelope, error) {
		return e.CheckBaseplate(in)
	})
}

func (h *Handler) Autosize() http.HandlerFunc {
	return run(h, engine.OpAutosize, func(ctx context.Context, e *engine.Engine, in baseplate.Input) (envelope.Envelope, error) {
		return e.AutoSizeBaseplate(ctx, in)
	})
}

func (h *Handler) Weld() http.HandlerFunc {
	return run(h, engine.OpWeld, func(_ context.Context, e *engine.Engine, in baseplate.WeldInput) (envelope.Envelope, error) {
		return e.RecommendWeld(in)
	})
}

func (h *Handler) Design() http.HandlerFunc {
	return run(h, engine.OpDesign, func(ctx context.Context, e *engine.Engine, in engine.DesignRequest) (envelope.Envelope, error) {
		return e.Design(ctx, in)
	})
}

type BatchRequest struct {
	Items []engine.DesignRequest `json:"items"`
}

type BatchResponse struct {
	Results []envelope.Envelope `json:"results"`
}

// Batch answers 200 even when some items failed; those items carry their
// own failure envelopes.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var in BatchRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, engine.OpDesign, err)
		return
	}
	e, err := h.engineFor(r)
	if err != nil {
		h.fail(w, r, engine.OpDesign, err)
		return
	}
	out, err := e.Batch(r.Context(), in.Items)
	if err != nil {
		h.fail(w, r, engine.OpDesign, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Results: out})
}

func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Versions())
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	var doc report.Document
	if err := decode(r, &doc); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, doc, h.now()); err != nil {
		if errors.Is(err, report.ErrNoResult) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger().Error("api.report_failed", "err", err)
		http.Error(w, "Report generation error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"report-"+shortHash(doc.Envelope.ContentHash)+".pdf\"")
	if _, err := buf.WriteTo(w); err != nil {
		h.logger().Warn("api.report_write_failed", "err", err)
	}
}

func shortHash(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
