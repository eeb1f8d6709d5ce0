package main

import (
	"testing"

	"github.com/foomo/notion-mcp/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestRunReturnsConfigErrors(t *testing.T) {
	err := run(config.Default(), zaptest.NewLogger(t))
	assert.ErrorIs(t, err, config.ErrNoPages)
}
