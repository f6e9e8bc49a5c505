package dispatch

import (
	"context"
	"sync"

	"github.com/freeeve/battleodds/internal/model"
	"github.com/freeeve/battleodds/pkg/odds"
)

type mockCalculator struct {
	name     string
	result   *odds.Result
	err      error
	panicMsg string
	calls    int
	cancels  int
}

func newMockCalculator(name string, attackerWin, tuv float64) *mockCalculator {
	return &mockCalculator{
		name: name,
		result: &odds.Result{
			AttackerWin: attackerWin,
			DefenderWin: 1 - attackerWin,
			TUVSwing:    tuv,
			Engine:      name,
		},
	}
}

func (m *mockCalculator) Calculate(_ context.Context, _ odds.Request) (*odds.Result, error) {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return nil, m.err
	}
	cp := *m.result
	return &cp, nil
}

func (m *mockCalculator) Cancel()      { m.cancels++ }
func (m *mockCalculator) Name() string { return m.name }

type mockCache struct {
	mu      sync.Mutex
	results map[string]*odds.Result
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{results: make(map[string]*odds.Result)}
}

func (m *mockCache) GetResult(_ context.Context, fingerprint string) (*odds.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.results[fingerprint], nil
}

func (m *mockCache) SetResult(_ context.Context, fingerprint string, res *odds.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[fingerprint] = res
	return nil
}

type mockEvaluations struct {
	created []model.Evaluation
}

func (m *mockEvaluations) Create(_ context.Context, e *model.Evaluation) error {
	e.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *e)
	return nil
}

func (m *mockEvaluations) ListRecent(_ context.Context, limit int) ([]model.Evaluation, error) {
	if limit > len(m.created) {
		limit = len(m.created)
	}
	return m.created[len(m.created)-limit:], nil
}

func (m *mockEvaluations) CountMismatches(_ context.Context) (int64, error) {
	var n int64
	for _, e := range m.created {
		if e.Mismatch {
			n++
		}
	}
	return n, nil
}

type mockMonitor struct {
	timings []odds.Timing
}

func (m *mockMonitor) ObserveGrid(int, *odds.Grid) {}
func (m *mockMonitor) ObserveTiming(t odds.Timing) { m.timings = append(m.timings, t) }
