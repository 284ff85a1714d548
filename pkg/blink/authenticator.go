package blink

import (
	"context"
	"errors"

	errs "blinksync/pkg/errors"
	"blinksync/pkg/logger"
	"blinksync/pkg/prompt"
)

// Authenticator performs the one-time login and PIN exchange
type Authenticator struct {
	client *Client
	logger logger.Logger
}

// NewAuthenticator creates an Authenticator on top of client
func NewAuthenticator(client *Client, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Authenticator{client: client, logger: log}
}

// Authenticate logs in, asks pins for the PIN once and verifies it.
// Every failure is returned as an auth error; the PIN is never re-prompted.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials, pins prompt.PinReader) (Session, error) {
	a.logger.Info("Authenticating with Blink API...")

	resp, err := a.client.Login(ctx, creds)
	if err != nil {
		if isCancelled(ctx, err) {
			return Session{}, err
		}
		a.logger.WithError(err).Error("login failed")
		return Session{}, asAuthError(err, "login failed")
	}

	session := a.client.NewSession(resp)
	a.logger.InfoWithFields("login succeeded", map[string]interface{}{
		"account_id": session.AccountID,
		"tier":       session.Tier,
	})

	pin, err := pins.ReadPIN(ctx)
	if err != nil {
		if isCancelled(ctx, err) {
			return Session{}, err
		}
		return Session{}, errs.New(errs.ErrorTypeAuth, 0, "PIN entry failed: %v", err)
	}

	if err := a.client.VerifyPin(ctx, session, pin); err != nil {
		if isCancelled(ctx, err) {
			return Session{}, err
		}
		a.logger.WithError(err).Error("PIN verification failed")
		return Session{}, asAuthError(err, "PIN verification failed")
	}

	a.logger.Info("PIN verified")
	return session, nil
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// asAuthError keeps the status code of a typed error and retypes it as auth
func asAuthError(err error, what string) *errs.Error {
	code := 0
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	return errs.New(errs.ErrorTypeAuth, code, "%s: %v", what, err)
}
