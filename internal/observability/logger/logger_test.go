package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/estatebook/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextOmitsMissingIDs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithOrgID(context.Background(), "42")
	ctx = obscontext.WithCorrelationID(ctx, "01HX")
	WithContext(ctx, base).Info("recalc")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "42", fields["org_id"])
	assert.Equal(t, "01HX", fields["correlation_id"])
	assert.NotContains(t, fields, "request_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextAddsActor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := obscontext.WithActor(context.Background(), "cli", "estatectl")

	WithContext(ctx, zap.New(core)).Info("status")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "cli", fields["actor_type"])
	assert.Equal(t, "estatectl", fields["actor_id"])
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Format: "text"}.withDefaults()
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "estatebook", cfg.ServiceName)
	assert.Equal(t, 100, cfg.SamplingInitial)
}
