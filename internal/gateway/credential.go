package gateway

import (
	"context"
	"errors"
)

// ErrNoCredential is returned when a CredentialSource has nothing to offer.
var ErrNoCredential = errors.New("no credential available")

// CredentialSource yields the bearer token for the current student. The
// gateway asks on every request so a refreshed token is picked up.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(ctx context.Context) (string, error)

func (f CredentialFunc) Credential(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticCredential is a fixed token, e.g. one typed into the terminal client.
type StaticCredential string

func (c StaticCredential) Credential(context.Context) (string, error) {
	if c == "" {
		return "", ErrNoCredential
	}
	return string(c), nil
}

type credentialKey struct{}

// WithCredential returns a context carrying a bearer token for
// ContextCredential to pick up.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, token)
}

// ContextCredential reads the token stored by WithCredential. The WebSocket
// handler uses it to forward the token the student connected with.
var ContextCredential = CredentialFunc(func(ctx context.Context) (string, error) {
	token, _ := ctx.Value(credentialKey{}).(string)
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
})
