package health

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRunAll(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("a", func(context.Context) Status { return StatusOK })
	c.Register("b", func(context.Context) Status { return StatusDegraded })

	results := c.RunAll(context.Background())

	assert.Equal(t, StatusOK, results["a"])
	assert.Equal(t, StatusDegraded, results["b"])
}

func TestIsReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("ok", func(context.Context) Status { return StatusOK })
	assert.True(t, c.IsReady(context.Background()))

	// Degraded is still ready.
	c.Register("slow", func(context.Context) Status { return StatusDegraded })
	assert.True(t, c.IsReady(context.Background()))

	c.Register("dead", func(context.Context) Status { return StatusDown })
	assert.False(t, c.IsReady(context.Background()))
}

func TestNoChecksIsReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
}
