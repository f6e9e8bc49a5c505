package repository

import (
	"context"

	"github.com/freeeve/battleodds/internal/model"
	"github.com/freeeve/battleodds/pkg/odds"
)

// ResultCache memoizes battle results by request fingerprint (Redis).
type ResultCache interface {
	// GetResult returns nil, nil on a miss.
	GetResult(ctx context.Context, fingerprint string) (*odds.Result, error)
	SetResult(ctx context.Context, fingerprint string, res *odds.Result) error
}

// EvaluationRepository stores engine comparison records (Postgres).
type EvaluationRepository interface {
	Create(ctx context.Context, e *model.Evaluation) error
	ListRecent(ctx context.Context, limit int) ([]model.Evaluation, error)
	CountMismatches(ctx context.Context) (int64, error)
}
