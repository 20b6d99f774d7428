package slogpretty_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/linemk/parfume-shop/internal/lib/logger/handlers/slogpretty"
)

func TestPrettyHandler_WritesMessageAndAttrs(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	opts := slogpretty.PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug}}
	log := slog.New(opts.NewPrettyHandler(&buf)).With(slog.String("op", "test.op"))

	log.Error("order failed", slog.Any("error", errors.New("boom")), slog.Int64("order_id", 7))

	out := buf.String()
	assert.Contains(t, out, "ERROR:")
	assert.Contains(t, out, "order failed")
	assert.Contains(t, out, `"op": "test.op"`)
	assert.Contains(t, out, `"error": "boom"`)
	assert.Contains(t, out, `"order_id": 7`)
}

func TestPrettyHandler_RespectsLevel(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	opts := slogpretty.PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo}}
	log := slog.New(opts.NewPrettyHandler(&buf))

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
