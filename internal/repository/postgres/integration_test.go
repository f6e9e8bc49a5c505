//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/freeeve/battleodds/internal/model"
	"github.com/freeeve/battleodds/internal/testutil"
)

var testDB *sql.DB

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.ResetEvaluations(t, testDB)
}

func TestEvaluationCreateAndList(t *testing.T) {
	setup(t)
	repo := NewEvaluationRepo(testDB)
	ctx := context.Background()

	for i, mismatch := range []bool{false, true, false} {
		e := &model.Evaluation{
			Fingerprint:          "fp",
			Attacker:             "Germany",
			Defender:             "Russia",
			Territory:            "Karelia",
			AnalyticAttackerWin:  0.5 + float64(i)/10,
			SimulatedAttackerWin: 0.5,
			AnalyticTUVSwing:     2,
			SimulatedTUVSwing:    6,
			Mismatch:             mismatch,
			AnalyticMs:           3,
			FallbackMs:           40,
		}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
		if e.ID == 0 || e.CreatedAt.IsZero() {
			t.Fatalf("create did not fill id/created_at: %+v", e)
		}
	}

	evals, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evals) != 2 {
		t.Fatalf("len = %d, want 2", len(evals))
	}
	if evals[0].AnalyticAttackerWin != 0.7 {
		t.Errorf("newest first: got %v", evals[0].AnalyticAttackerWin)
	}
	if evals[0].Territory != "Karelia" || evals[0].FallbackMs != 40 {
		t.Errorf("round trip lost fields: %+v", evals[0])
	}

	if total, mismatches := testutil.CountEvaluations(t, testDB); total != 3 || mismatches != 1 {
		t.Errorf("stored %d evaluations with %d mismatches, want 3 and 1", total, mismatches)
	}

	n, err := repo.CountMismatches(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("mismatches = %d, want 1", n)
	}
}

func TestEvaluationListEmpty(t *testing.T) {
	setup(t)
	evals, err := NewEvaluationRepo(testDB).ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evals) != 0 {
		t.Errorf("expected none, got %d", len(evals))
	}
}
