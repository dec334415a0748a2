package userService_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spreadsheet-service/internal/repository/memoryRepo"
	"spreadsheet-service/internal/service/userService"
	"spreadsheet-service/pkg/apperr"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with hashed password", func(t *testing.T) {
		store := memoryRepo.New()
		svc := userService.New(store)

		u, err := svc.Register(ctx, "alice", "alice@example.com", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
		assert.NotEqual(t, "s3cret", u.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("s3cret")))
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		svc := userService.New(memoryRepo.New())
		_, err := svc.Register(ctx, "", "a@b.co", "pw")
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		svc := userService.New(memoryRepo.New())
		_, err := svc.Register(ctx, "bob", "not-an-email", "pw")
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
	})

	t.Run("rejects duplicate email and username", func(t *testing.T) {
		svc := userService.New(memoryRepo.New())
		_, err := svc.Register(ctx, "carol", "carol@example.com", "pw")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "other", "carol@example.com", "pw")
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

		_, err = svc.Register(ctx, "carol", "other@example.com", "pw")
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := userService.New(memoryRepo.New())

	registered, err := svc.Register(ctx, "dave", "dave@example.com", "correct")
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		u, err := svc.Authenticate(ctx, "dave", "correct")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, u.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "dave", "wrong")
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody", "whatever")
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	svc := userService.New(memoryRepo.New())

	_, err := svc.GetByID(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
