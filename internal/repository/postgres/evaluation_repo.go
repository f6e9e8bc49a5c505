package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/battleodds/internal/model"
)

// EvaluationRepo stores analytic versus simulated comparisons.
type EvaluationRepo struct {
	db *sql.DB
}

// NewEvaluationRepo creates an EvaluationRepo.
func NewEvaluationRepo(db *sql.DB) *EvaluationRepo {
	return &EvaluationRepo{db: db}
}

const evaluationColumns = `id, fingerprint, attacker, defender, territory,
	analytic_attacker_win, analytic_defender_win, analytic_draw, analytic_tuv_swing,
	simulated_attacker_win, simulated_defender_win, simulated_draw, simulated_tuv_swing,
	mismatch, analytic_ms, fallback_ms, created_at`

// Create inserts e and fills in its ID and creation time.
func (r *EvaluationRepo) Create(ctx context.Context, e *model.Evaluation) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO evaluations (fingerprint, attacker, defender, territory,
			analytic_attacker_win, analytic_defender_win, analytic_draw, analytic_tuv_swing,
			simulated_attacker_win, simulated_defender_win, simulated_draw, simulated_tuv_swing,
			mismatch, analytic_ms, fallback_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id, created_at`,
		e.Fingerprint, e.Attacker, e.Defender, e.Territory,
		e.AnalyticAttackerWin, e.AnalyticDefenderWin, e.AnalyticDraw, e.AnalyticTUVSwing,
		e.SimulatedAttackerWin, e.SimulatedDefenderWin, e.SimulatedDraw, e.SimulatedTUVSwing,
		e.Mismatch, e.AnalyticMs, e.FallbackMs,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

// ListRecent returns up to limit evaluations, newest first.
func (r *EvaluationRepo) ListRecent(ctx context.Context, limit int) ([]model.Evaluation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+evaluationColumns+`
		 FROM evaluations
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []model.Evaluation
	for rows.Next() {
		var e model.Evaluation
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.Attacker, &e.Defender, &e.Territory,
			&e.AnalyticAttackerWin, &e.AnalyticDefenderWin, &e.AnalyticDraw, &e.AnalyticTUVSwing,
			&e.SimulatedAttackerWin, &e.SimulatedDefenderWin, &e.SimulatedDraw, &e.SimulatedTUVSwing,
			&e.Mismatch, &e.AnalyticMs, &e.FallbackMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

// CountMismatches counts evaluations whose engines disagreed.
func (r *EvaluationRepo) CountMismatches(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluations WHERE mismatch`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mismatches: %w", err)
	}
	return n, nil
}
