package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/freeeve/battleodds/pkg/odds"
)

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test-service", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	// Non-routable address: nothing is exported before shutdown.
	shutdown, err := Setup(context.Background(), "test-service", "http://192.0.2.1:4318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func finalGrid() *odds.Grid {
	g := odds.NewGrid(1, 1)
	g.Set(1, 0, 0.75)
	g.Set(0, 1, 0.25)
	return g
}

func TestTraceMonitor(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m := NewTraceMonitor(tp.Tracer("test"))

	m.ObserveGrid(3, finalGrid())
	m.ObserveGrid(odds.FinalRound, finalGrid())
	m.ObserveTiming(odds.Timing{Analytic: 20 * time.Millisecond, Fallback: 5 * time.Millisecond, Handled: 4, Total: 5})

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "odds.final_grid" || spans[1].Name() != "odds.compute" {
		t.Errorf("span names = %s, %s", spans[0].Name(), spans[1].Name())
	}
	if d := spans[1].EndTime().Sub(spans[1].StartTime()); d != 25*time.Millisecond {
		t.Errorf("compute span lasted %v, want 25ms", d)
	}
	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "odds.attacker_win" && kv.Value.AsFloat64() == 0.75 {
			found = true
		}
	}
	if !found {
		t.Errorf("attacker win attribute missing: %v", spans[0].Attributes())
	}
}

func TestLogMonitor(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMonitor(zerolog.New(&buf).Level(zerolog.DebugLevel))

	Monitors{m}.ObserveGrid(odds.FinalRound, finalGrid())
	Monitors{m}.ObserveTiming(odds.Timing{Handled: 1, Total: 2})

	out := buf.String()
	if !strings.Contains(out, `"attackerWin":0.75`) {
		t.Errorf("missing final grid line: %s", out)
	}
	if !strings.Contains(out, `"handledPct":50`) {
		t.Errorf("missing timing line: %s", out)
	}
}
