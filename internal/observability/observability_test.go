package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestInstrumentFormats(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name   string
		format string
		check  func(t *testing.T, out string)
	}{
		{
			name:   "text",
			format: "text",
			check: func(t *testing.T, out string) {
				if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "key=value") {
					t.Errorf("unexpected text output: %q", out)
				}
			},
		},
		{
			name:   "json",
			format: "json",
			check: func(t *testing.T, out string) {
				var rec map[string]any
				if err := json.Unmarshal([]byte(out), &rec); err != nil {
					t.Fatalf("output is not JSON: %v (%q)", err, out)
				}
				if rec["msg"] != "hello" || rec["key"] != "value" {
					t.Errorf("unexpected record: %v", rec)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelInfo, Format: tt.format, Output: &buf})
			if err != nil {
				t.Fatalf("Instrument: %v", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			slog.Debug("filtered")
			slog.Info("hello", "key", "value")
			tt.check(t, strings.TrimSpace(buf.String()))
		})
	}
}

func TestInstrumentRejectsUnknownSettings(t *testing.T) {
	if _, err := Instrument(context.Background(), Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := Instrument(context.Background(), Options{Exporter: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestInstrumentWithStdoutExporter(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelWarn, Exporter: ExporterStdout, Output: &buf})
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}

	slog.Warn("bridged")
	if !strings.Contains(buf.String(), "bridged") {
		t.Errorf("local handler did not receive record: %q", buf.String())
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestTraceHandlerAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(traceHandler{slog.NewTextHandler(&buf, nil)})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "traced")
	if !strings.Contains(buf.String(), "trace_id="+sc.TraceID().String()) {
		t.Errorf("missing trace id: %q", buf.String())
	}

	buf.Reset()
	logger.Info("untraced")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("unexpected trace id: %q", buf.String())
	}
}

func TestSeverityMapping(t *testing.T) {
	if got := severity(slog.LevelDebug); got.Severity() >= severity(slog.LevelInfo).Severity() {
		t.Errorf("debug severity %v not below info", got)
	}
	if got := severity(slog.LevelError + 4); got != severity(slog.LevelError) {
		t.Errorf("levels above error should clamp, got %v", got)
	}
}
