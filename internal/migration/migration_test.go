package migration

import (
	"context"
	"strings"
	"testing"

	"goencode/internal/config"
	"goencode/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepsAreIdempotent(t *testing.T) {
	runner := NewRunner()
	assert.Equal(t, "1.0.0", runner.Version())

	for _, s := range runner.steps() {
		assert.True(t, strings.Contains(s.sql, "IF NOT EXISTS"), s.name)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), config.DatabaseConfig{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
