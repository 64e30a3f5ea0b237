package aerobasic

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "test")
	require.NoError(t, err)
	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown", "value", 42)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=warn")
	assert.Contains(t, buf.String(), "subsys=test")
	assert.Contains(t, buf.String(), "value=42")

	buf.Reset()
	logger, err = NewLogger(&buf, "none", "test")
	require.NoError(t, err)
	level.Error(logger).Log("msg", "hidden")
	assert.Empty(t, buf.String())

	_, err = NewLogger(&buf, "verbose", "test")
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestIntegratorLogs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", "test")
	require.NoError(t, err)
	in, err := NewIntegrator(DefaultIntegratorConfig(), logger)
	require.NoError(t, err)
	grav := GravityField{Body: Earth}
	cond := NewStoppingCondition(ZCoordinate, 0)
	cond.Direction = Decreasing
	_, err = in.PropagateToEvent(context.Background(), grav.Func, 0, circularState(0.7), cond, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "subsys=integrator")
	assert.Contains(t, buf.String(), "phase=event-search")
	assert.Contains(t, buf.String(), "phase=terminated")
}
