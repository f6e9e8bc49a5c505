package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/freeeve/battleodds/internal/dispatch"
	"github.com/freeeve/battleodds/internal/logger"
	"github.com/freeeve/battleodds/internal/model"
	"github.com/freeeve/battleodds/internal/repository"
	"github.com/freeeve/battleodds/pkg/odds"
)

const (
	defaultEvaluationLimit = 50
	maxEvaluationLimit     = 500
)

// Computer evaluates battles. *dispatch.Pool implements it.
type Computer interface {
	Compute(ctx context.Context, req odds.Request) (*odds.Result, error)
	Stats() dispatch.Stats
}

// CacheSizer reports how many hit distributions are cached.
type CacheSizer interface {
	Len() int
}

// OddsHandler serves battle odds over REST.
type OddsHandler struct {
	computer    Computer
	cache       CacheSizer
	evaluations repository.EvaluationRepository
}

// NewOddsHandler creates an OddsHandler. evaluations may be nil when no
// evaluation log is configured.
func NewOddsHandler(computer Computer, cache CacheSizer, evaluations repository.EvaluationRepository) *OddsHandler {
	return &OddsHandler{computer: computer, cache: cache, evaluations: evaluations}
}

// Compute handles POST /api/v1/odds
func (h *OddsHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req odds.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.computer.Compute(r.Context(), req)
	if err != nil {
		status := computeStatus(err)
		if status == http.StatusInternalServerError {
			l := logger.ForRequest(r.Context())
			l.Error().Err(err).Str("battle", dispatch.Describe(req)).Msg("Odds computation failed")
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func computeStatus(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, odds.ErrBusy), errors.Is(err, odds.ErrCancelled),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type statsResponse struct {
	dispatch.Stats
	CachedDistributions int `json:"cached_distributions"`
}

// Stats handles GET /api/v1/stats
func (h *OddsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Stats: h.computer.Stats()}
	if h.cache != nil {
		resp.CachedDistributions = h.cache.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListEvaluations handles GET /api/v1/evaluations?limit=
func (h *OddsHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	if h.evaluations == nil {
		writeError(w, http.StatusServiceUnavailable, "evaluation log disabled")
		return
	}
	limit := defaultEvaluationLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEvaluationLimit)
	}

	evals, err := h.evaluations.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	mismatches, err := h.evaluations.CountMismatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if evals == nil {
		evals = []model.Evaluation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"evaluations": evals,
		"mismatches":  mismatches,
	})
}
