package domain_test

import (
	"strings"
	"testing"

	"github.com/aelexs/shmport/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceName(t *testing.T) {
	t.Run("valid name", func(t *testing.T) {
		name, err := domain.NewServiceName("calculator")
		require.NoError(t, err)
		assert.Equal(t, "calculator", name.String())
		assert.False(t, name.IsZero())
	})

	t.Run("empty string returns error", func(t *testing.T) {
		_, err := domain.NewServiceName("")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmptyID)
	})

	t.Run("path separator returns error", func(t *testing.T) {
		_, err := domain.NewServiceName("a/b")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidServiceName)
	})

	t.Run("NUL byte returns error", func(t *testing.T) {
		_, err := domain.NewServiceName("a\x00b")
		assert.ErrorIs(t, err, domain.ErrInvalidServiceName)
	})

	t.Run("too long returns error", func(t *testing.T) {
		_, err := domain.NewServiceName(strings.Repeat("x", domain.MaxServiceNameLength+1))
		assert.ErrorIs(t, err, domain.ErrInvalidServiceName)
	})

	t.Run("max length accepted", func(t *testing.T) {
		_, err := domain.NewServiceName(strings.Repeat("x", domain.MaxServiceNameLength))
		assert.NoError(t, err)
	})

	t.Run("MustServiceName panics on invalid", func(t *testing.T) {
		assert.Panics(t, func() {
			domain.MustServiceName("")
		})
	})
}

func TestServerID(t *testing.T) {
	validUUID := "550e8400-e29b-41d4-a716-446655440000"

	t.Run("valid UUID", func(t *testing.T) {
		id, err := domain.NewServerID(validUUID)
		require.NoError(t, err)
		assert.Equal(t, validUUID, id.String())
		assert.False(t, id.IsZero())
	})

	t.Run("empty string returns error", func(t *testing.T) {
		_, err := domain.NewServerID("")
		assert.ErrorIs(t, err, domain.ErrEmptyID)
	})

	t.Run("invalid format returns error", func(t *testing.T) {
		_, err := domain.NewServerID("not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("zero value is zero", func(t *testing.T) {
		var id domain.ServerID
		assert.True(t, id.IsZero())
		assert.Empty(t, id.String())
	})

	t.Run("generate creates valid ID", func(t *testing.T) {
		id := domain.GenerateServerID()
		_, err := domain.NewServerID(id.String())
		require.NoError(t, err)
	})

	t.Run("generated IDs are unique", func(t *testing.T) {
		assert.NotEqual(t, domain.GenerateServerID(), domain.GenerateServerID())
	})

	t.Run("MustServerID panics on invalid", func(t *testing.T) {
		assert.Panics(t, func() {
			domain.MustServerID("invalid")
		})
	})
}
