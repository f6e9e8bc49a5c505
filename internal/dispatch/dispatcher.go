// Package dispatch routes battle requests between the analytic engine and the
// fallback simulator, and keeps score of how often each one is needed.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/freeeve/battleodds/internal/logger"
	"github.com/freeeve/battleodds/internal/model"
	"github.com/freeeve/battleodds/internal/repository"
	"github.com/freeeve/battleodds/pkg/odds"
)

var tracer = otel.Tracer("github.com/freeeve/battleodds/internal/dispatch")

// Calculator evaluates a battle. *odds.Engine and *simulate.Simulator both
// implement it.
type Calculator interface {
	Calculate(ctx context.Context, req odds.Request) (*odds.Result, error)
	Cancel()
	Name() string
}

// DiceSource reports the current dice configuration.
type DiceSource interface {
	DiceSides() int
}

// Counters are shared by every dispatcher of a pool.
type Counters struct {
	total      atomic.Int64
	handled    atomic.Int64
	fallbacks  atomic.Int64
	failures   atomic.Int64
	mismatches atomic.Int64
	cacheHits  atomic.Int64
}

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Total      int64 `json:"total"`
	Handled    int64 `json:"handled"`
	Fallbacks  int64 `json:"fallbacks"`
	Failures   int64 `json:"failures"`
	Mismatches int64 `json:"mismatches"`
	CacheHits  int64 `json:"cache_hits"`
}

// Snapshot reads all counters.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Total:      c.total.Load(),
		Handled:    c.handled.Load(),
		Fallbacks:  c.fallbacks.Load(),
		Failures:   c.failures.Load(),
		Mismatches: c.mismatches.Load(),
		CacheHits:  c.cacheHits.Load(),
	}
}

// Options configures a Dispatcher. Everything but Policy is optional.
type Options struct {
	Policy Policy
	// SampleEvery is N for the Sometimes policy.
	SampleEvery int
	Dice        DiceSource
	Cache       repository.ResultCache
	Evaluations repository.EvaluationRepository
	Monitor     odds.Monitor
	Counters    *Counters
}

// Dispatcher runs one request at a time.
type Dispatcher struct {
	analytic Calculator
	fallback Calculator
	opts     Options
	counters *Counters
	running  atomic.Bool
}

// New creates a dispatcher over an analytic engine and a fallback.
func New(analytic, fallback Calculator, opts Options) *Dispatcher {
	if opts.SampleEvery < 1 {
		opts.SampleEvery = 10
	}
	if opts.Counters == nil {
		opts.Counters = &Counters{}
	}
	return &Dispatcher{
		analytic: analytic,
		fallback: fallback,
		opts:     opts,
		counters: opts.Counters,
	}
}

// Stats returns the dispatcher's counters.
func (d *Dispatcher) Stats() Stats { return d.counters.Snapshot() }

// Cancel stops whichever calculation is running.
func (d *Dispatcher) Cancel() {
	d.analytic.Cancel()
	d.fallback.Cancel()
}

// Compute evaluates req with the analytic engine when it can and the policy
// allows, and with the fallback when the policy asks for it or the analytic
// engine could not produce a result.
func (d *Dispatcher) Compute(ctx context.Context, req odds.Request) (*odds.Result, error) {
	if !d.running.CompareAndSwap(false, true) {
		return nil, odds.ErrBusy
	}
	defer d.running.Store(false)

	ctx, span := tracer.Start(ctx, "dispatch.Compute")
	defer span.End()

	res, err := d.compute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("odds.engine", res.Engine),
		attribute.Float64("odds.attacker_win", res.AttackerWin),
	)
	return res, nil
}

func (d *Dispatcher) compute(ctx context.Context, req odds.Request) (*odds.Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	l := logger.ForRequest(ctx)
	n := d.counters.total.Add(1)

	sides := 0
	if d.opts.Dice != nil {
		sides = d.opts.Dice.DiceSides()
	}
	fingerprint, err := Fingerprint(req, sides)
	if err != nil {
		return nil, err
	}
	if res := d.cached(ctx, fingerprint); res != nil {
		d.counters.cacheHits.Add(1)
		l.Debug().Str("fingerprint", fingerprint[:12]).Msg("Result cache hit")
		return res, nil
	}

	start := time.Now()
	var primary *odds.Result
	eligible, reason := Eligible(req)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("odds.eligible", eligible))
	if !eligible {
		l.Info().Str("battle", Describe(req)).Str("reason", reason).Msg("Analytic engine cannot handle battle")
	}
	if eligible && d.opts.Policy != FallbackOnly {
		primary, err = d.runAnalytic(ctx, req)
		switch {
		case err == nil:
			d.counters.handled.Add(1)
		case errors.Is(err, odds.ErrCancelled):
			return nil, err
		default:
			d.counters.failures.Add(1)
			l.Error().Err(err).Msg("Analytic engine failed, falling back")
		}
	}
	analyticDone := time.Now()

	var backup *odds.Result
	if d.needFallback(n, primary) {
		backup, err = d.fallback.Calculate(ctx, req)
		if err != nil {
			if primary == nil {
				return nil, fmt.Errorf("fallback: %w", err)
			}
			l.Warn().Err(err).Msg("Fallback failed, keeping analytic result")
		} else {
			d.counters.fallbacks.Add(1)
		}
	}
	fallbackDone := time.Now()

	if d.opts.Monitor != nil {
		d.opts.Monitor.ObserveTiming(odds.Timing{
			Analytic: analyticDone.Sub(start),
			Fallback: fallbackDone.Sub(analyticDone),
			Handled:  d.counters.handled.Load(),
			Total:    n,
		})
	}

	res := primary
	if res == nil {
		res = backup
	}
	// The dice may have changed since the lookup; file the result under the
	// die it was computed with.
	if res.DiceSides > 0 && res.DiceSides != sides {
		if fingerprint, err = Fingerprint(req, res.DiceSides); err != nil {
			return nil, err
		}
	}

	if primary != nil && backup != nil {
		d.reconcile(ctx, req, fingerprint, primary, backup, analyticDone.Sub(start), fallbackDone.Sub(analyticDone))
	}

	if d.opts.Cache != nil {
		if err := d.opts.Cache.SetResult(ctx, fingerprint, res); err != nil {
			l.Warn().Err(err).Msg("Failed to cache result")
		}
	}
	return res, nil
}

func (d *Dispatcher) cached(ctx context.Context, fingerprint string) *odds.Result {
	if d.opts.Cache == nil {
		return nil
	}
	res, err := d.opts.Cache.GetResult(ctx, fingerprint)
	if err != nil {
		l := logger.ForRequest(ctx)
		l.Warn().Err(err).Msg("Result cache lookup failed")
		return nil
	}
	return res
}

// runAnalytic turns a panic in the engine into an error so the fallback can
// take over.
func (d *Dispatcher) runAnalytic(ctx context.Context, req odds.Request) (res *odds.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("analytic engine panic: %v", r)
		}
	}()
	return d.analytic.Calculate(ctx, req)
}

func (d *Dispatcher) needFallback(n int64, primary *odds.Result) bool {
	if primary == nil {
		return true
	}
	switch d.opts.Policy {
	case Always, FallbackOnly:
		return true
	case Sometimes:
		return n%int64(d.opts.SampleEvery) == 0
	default:
		return false
	}
}

// Disagree reports whether two TUV swings differ by more than the analytic
// value itself and by more than 1.5.
func Disagree(analytic, simulated float64) bool {
	diff := analytic - simulated
	return math.Abs(diff/analytic) > 1 && math.Abs(diff) > 1.5
}

func (d *Dispatcher) reconcile(ctx context.Context, req odds.Request, fingerprint string, primary, backup *odds.Result, analytic, fallback time.Duration) {
	l := logger.ForRequest(ctx)
	l.Info().
		Str("analytic", summaryLine(primary)).
		Str("simulated", summaryLine(backup)).
		Msg("Engine comparison")

	mismatch := false
	if req.Territory.Water && hasLooseLandUnits(req.Attacking) {
		l.Debug().Msg("Land units outside transports attacking on water")
	} else if Disagree(primary.TUVSwing, backup.TUVSwing) {
		mismatch = true
		d.counters.mismatches.Add(1)
		l.Debug().
			Str("attacker", req.Attacker).
			Strs("attacking", unitTypes(req.Attacking)).
			Str("defender", req.Defender).
			Strs("defending", unitTypes(req.Defending)).
			Msg("Differing TUV result")
	}

	if d.opts.Evaluations == nil {
		return
	}
	e := &model.Evaluation{
		Fingerprint:          fingerprint,
		Attacker:             req.Attacker,
		Defender:             req.Defender,
		Territory:            req.Territory.Name,
		AnalyticAttackerWin:  primary.AttackerWin,
		AnalyticDefenderWin:  primary.DefenderWin,
		AnalyticDraw:         primary.Draw,
		AnalyticTUVSwing:     primary.TUVSwing,
		SimulatedAttackerWin: backup.AttackerWin,
		SimulatedDefenderWin: backup.DefenderWin,
		SimulatedDraw:        backup.Draw,
		SimulatedTUVSwing:    backup.TUVSwing,
		Mismatch:             mismatch,
		AnalyticMs:           analytic.Milliseconds(),
		FallbackMs:           fallback.Milliseconds(),
	}
	if err := d.opts.Evaluations.Create(ctx, e); err != nil {
		l.Warn().Err(err).Msg("Failed to record evaluation")
	}
}

func summaryLine(r *odds.Result) string {
	return fmt.Sprintf("%.0f/%.0f/%.0f %.2f", r.AttackerWin*100, r.Draw*100, r.DefenderWin*100, r.TUVSwing)
}

func hasLooseLandUnits(units []odds.Unit) bool {
	for i := range units {
		if units[i].IsLand() && !units[i].Infrastructure && units[i].TransportedBy == "" {
			return true
		}
	}
	return false
}

func unitTypes(units []odds.Unit) []string {
	ret := make([]string, len(units))
	for i := range units {
		ret[i] = units[i].Type
	}
	return ret
}

// Describe renders a request in one line for logs.
func Describe(req odds.Request) string {
	return fmt.Sprintf("%s [%s] vs %s [%s] at %s",
		req.Attacker, strings.Join(unitTypes(req.Attacking), ","),
		req.Defender, strings.Join(unitTypes(req.Defending), ","),
		req.Territory.Name)
}
