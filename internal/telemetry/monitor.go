package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/freeeve/battleodds/pkg/odds"
)

// TraceMonitor records request timings and final grids as spans.
type TraceMonitor struct {
	tracer trace.Tracer
}

func NewTraceMonitor(tracer trace.Tracer) *TraceMonitor {
	return &TraceMonitor{tracer: tracer}
}

// ObserveGrid records the final grid of every evaluation. Intermediate rounds
// are too frequent to trace.
func (m *TraceMonitor) ObserveGrid(round int, g *odds.Grid) {
	if round != odds.FinalRound {
		return
	}
	_, span := m.tracer.Start(context.Background(), "odds.final_grid")
	span.SetAttributes(
		attribute.Int("odds.attacker_receptors", g.Attackers()),
		attribute.Int("odds.defender_receptors", g.Defenders()),
		attribute.Float64("odds.attacker_win", g.AttackerWins()),
		attribute.Float64("odds.defender_win", g.DefenderWins()),
		attribute.Float64("odds.undecided", g.StillFighting()),
	)
	span.End()
}

// ObserveTiming emits one span covering both engines of a request.
func (m *TraceMonitor) ObserveTiming(t odds.Timing) {
	end := time.Now()
	start := end.Add(-(t.Analytic + t.Fallback))
	_, span := m.tracer.Start(context.Background(), "odds.compute", trace.WithTimestamp(start))
	span.SetAttributes(
		attribute.Int64("odds.analytic_ms", t.Analytic.Milliseconds()),
		attribute.Int64("odds.fallback_ms", t.Fallback.Milliseconds()),
		attribute.Int64("odds.handled", t.Handled),
		attribute.Int64("odds.total", t.Total),
	)
	span.End(trace.WithTimestamp(end))
}

// LogMonitor writes instrumentation to a zerolog logger at debug level.
type LogMonitor struct {
	log zerolog.Logger
}

func NewLogMonitor(log zerolog.Logger) *LogMonitor {
	return &LogMonitor{log: log}
}

func (m *LogMonitor) ObserveGrid(round int, g *odds.Grid) {
	if e := m.log.Trace(); e.Enabled() {
		e.Int("round", round).Msg("Grid\n" + g.String())
		return
	}
	if round == odds.FinalRound {
		m.log.Debug().
			Float64("attackerWin", g.AttackerWins()).
			Float64("defenderWin", g.DefenderWins()).
			Float64("draw", g.Draw()+g.StillFighting()).
			Msg("Final grid")
	}
}

func (m *LogMonitor) ObserveTiming(t odds.Timing) {
	handledPct := 0.0
	if t.Total > 0 {
		handledPct = float64(t.Handled) / float64(t.Total) * 100
	}
	m.log.Debug().
		Dur("analytic", t.Analytic).
		Dur("fallback", t.Fallback).
		Int64("handled", t.Handled).
		Int64("total", t.Total).
		Float64("handledPct", handledPct).
		Msg("Odds timing")
}

// Monitors fans instrumentation out to several monitors.
type Monitors []odds.Monitor

func (ms Monitors) ObserveGrid(round int, g *odds.Grid) {
	for _, m := range ms {
		m.ObserveGrid(round, g)
	}
}

func (ms Monitors) ObserveTiming(t odds.Timing) {
	for _, m := range ms {
		m.ObserveTiming(t)
	}
}
