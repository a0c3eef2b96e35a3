package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/printquote/internal/adjust"
	"github.com/Simplici0/printquote/internal/catalog"
	"github.com/Simplici0/printquote/internal/pricing"
)

const (
	maxBodyBytes       = 1 << 20
	pricingUnavailable = "pricing unavailable, please contact us"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

var errBadBody = errors.New("request body must be a JSON object")

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "email and password are required"})
		return
	}

	ok, err := s.auth.validateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}

	s.auth.setSessionCookie(w, req.Email)
	writeJSON(w, http.StatusOK, map[string]string{"email": req.Email})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	raw := map[string]any{}
	if err := decodeJSON(w, r, &raw, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	q, err := s.quotes.Quote(r.Context(), chi.URLParam(r, "id"), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	d, err := s.quotes.Defaults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *server) handleRecomputeMinPrice(w http.ResponseWriter, r *http.Request) {
	n, err := s.quotes.RecomputeMinPrice(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

type formulaRequest struct {
	Model  pricing.Model   `json:"model"`
	Config json.RawMessage `json:"config"`
}

func (s *server) handleUpdateFormula(w http.ResponseWriter, r *http.Request) {
	var req formulaRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	key := chi.URLParam(r, "key")
	logID, err := s.adjust.UpdateFormula(r.Context(), adjust.FormulaUpdate{
		PresetKey: key,
		Model:     req.Model,
		Config:    req.Config,
		Actor:     actorFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.quotes.RecomputeMinPrice(r.Context(), key); err != nil {
		s.logger.Warn("min price recompute after formula update failed", zap.String("preset", key), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"logId": logID})
}

type bulkRequest struct {
	Category string  `json:"category"`
	Percent  float64 `json:"percent"`
}

func (s *server) handleBulkAdjust(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.adjust.ApplyBulkAdjustment(r.Context(), adjust.BulkAdjustment{
		Category: req.Category,
		Percent:  req.Percent,
		Actor:    actorFrom(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type rollbackRequest struct {
	LogID string `json:"logId"`
}

func (s *server) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.adjust.Rollback(r.Context(), adjust.RollbackRequest{LogID: req.LogID, Actor: actorFrom(r.Context())})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleActivity(w http.ResponseWriter, r *http.Request) {
	query := adjust.ActivityQuery{Search: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer", Field: "limit"})
			return
		}
		query.Limit = limit
	}

	entries, err := s.adjust.ListActivity(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type pruneRequest struct {
	OlderThanDays *int `json:"olderThanDays"`
}

// handlePruneSnapshots drops captured preset configs older than the given age.
// Rollback of the affected entries fails afterwards.
func (s *server) handlePruneSnapshots(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.OlderThanDays == nil || *req.OlderThanDays < 0 {
		s.writeError(w, r, &pricing.ValidationError{Field: "olderThanDays", Reason: "must be a non-negative number of days"})
		return
	}

	cutoff := time.Now().AddDate(0, 0, -*req.OlderThanDays)
	removed, err := s.adjust.PruneSnapshots(r.Context(), cutoff)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func (s *server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	stats, err := s.quotes.Backfill(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeError maps domain errors to status codes. Configuration problems are
// logged in full and shown to the caller only generically.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *pricing.ValidationError
		matErr *pricing.MaterialNotFoundError
	)
	switch {
	case errors.Is(err, errBadBody):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &matErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: matErr.Error(), Field: "material"})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrPresetNotFound),
		errors.Is(err, adjust.ErrLogNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, adjust.ErrAlreadyRolledBack):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, adjust.ErrSnapshotUnavailable):
		writeJSON(w, http.StatusGone, errorBody{Error: err.Error()})
	case errors.Is(err, pricing.ErrConfiguration):
		s.logger.Error("pricing configuration error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: pricingUnavailable})
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeJSON reads one JSON object from the body. An empty body is accepted
// only when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return errBadBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
