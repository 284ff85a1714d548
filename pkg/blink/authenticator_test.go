package blink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blinksync/internal/blinktest"
	errs "blinksync/pkg/errors"
	"blinksync/pkg/logger"
	"blinksync/pkg/prompt"
)

type countingPins struct {
	pin   string
	calls int
}

func (c *countingPins) ReadPIN(ctx context.Context) (string, error) {
	c.calls++
	return c.pin, nil
}

func TestAuthenticate(t *testing.T) {
	fake := blinktest.NewServer()
	defer fake.Close()
	log := logger.NewTestLogger()
	auth := NewAuthenticator(newTestClient(t, fake, log), log)

	pins := &countingPins{pin: "123456"}
	s, err := auth.Authenticate(context.Background(), Credentials{Email: fake.Email, Password: fake.Password}, pins)
	require.NoError(t, err)

	assert.Equal(t, fakeSession(fake), s)
	assert.Equal(t, 1, pins.calls)
	assert.True(t, log.HasMessage("PIN verified"))
	assert.Equal(t, 1, fake.Count("/api/v4/account/123/client/456/pin/verify"))
}

func TestAuthenticateLoginFailureIsFatal(t *testing.T) {
	fake := blinktest.NewServer()
	defer fake.Close()
	auth := NewAuthenticator(newTestClient(t, fake, logger.NewTestLogger()), logger.NewTestLogger())

	pins := &countingPins{pin: "123456"}
	_, err := auth.Authenticate(context.Background(), Credentials{Email: "nobody@example.com", Password: "x"}, pins)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Equal(t, 0, pins.calls)
}

func TestAuthenticateLoginTransportFailureIsFatal(t *testing.T) {
	fake := blinktest.NewServer()
	c := newTestClient(t, fake, logger.NewTestLogger())
	fake.Close()

	_, err := NewAuthenticator(c, logger.NewTestLogger()).Authenticate(context.Background(), Credentials{Email: "a", Password: "b"}, prompt.Static("1"))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
}

func TestAuthenticateWrongPinIsNotRetried(t *testing.T) {
	fake := blinktest.NewServer()
	defer fake.Close()
	auth := NewAuthenticator(newTestClient(t, fake, logger.NewTestLogger()), logger.NewTestLogger())

	pins := &countingPins{pin: "000000"}
	_, err := auth.Authenticate(context.Background(), Credentials{Email: fake.Email, Password: fake.Password}, pins)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Contains(t, err.Error(), "PIN verification failed")
	assert.Equal(t, 1, pins.calls)
	assert.Equal(t, 1, fake.Count("/api/v4/account/123/client/456/pin/verify"))
}

func TestAuthenticateEmptyPin(t *testing.T) {
	fake := blinktest.NewServer()
	defer fake.Close()
	auth := NewAuthenticator(newTestClient(t, fake, logger.NewTestLogger()), logger.NewTestLogger())

	_, err := auth.Authenticate(context.Background(), Credentials{Email: fake.Email, Password: fake.Password}, prompt.Static(""))
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
	assert.Equal(t, 0, fake.Count("/api/v4/account/123/client/456/pin/verify"))
}

func TestAuthenticateCancelled(t *testing.T) {
	fake := blinktest.NewServer()
	defer fake.Close()
	auth := NewAuthenticator(newTestClient(t, fake, logger.NewTestLogger()), logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := auth.Authenticate(ctx, Credentials{Email: fake.Email, Password: fake.Password}, prompt.Static("123456"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errs.IsFatal(err))
}
