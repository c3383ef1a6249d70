package network

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// TokenSource supplies the bearer token for outgoing requests. An empty
// token means the request is sent without credentials.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// MemoryTokenStore is a mutable TokenSource, the stand-in for the app's
// persisted auth token.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// Token implements TokenSource.
func (m *MemoryTokenStore) Token(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// Set replaces the token.
func (m *MemoryTokenStore) Set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// Clear removes the token.
func (m *MemoryTokenStore) Clear() { m.Set("") }

// AuthInterceptor is the first pipeline stage. It sets the JSON content type
// and bearer token, and calls OnUnauthorized when the server answers 401.
type AuthInterceptor struct {
	Tokens         TokenSource
	OnUnauthorized func(ctx context.Context)
}

// Intercept implements Interceptor.
func (a *AuthInterceptor) Intercept(ctx context.Context, req *Request, next Handler) (*Response, error) {
	if req.Headers.Get("Content-Type") == "" {
		req.Headers.Set("Content-Type", "application/json")
	}
	if a.Tokens != nil && req.Headers.Get("Authorization") == "" {
		token, err := a.Tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading auth token: %w", err)
		}
		if token != "" {
			req.Headers.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := next.Handle(ctx, req)
	if err == nil && resp.Status == http.StatusUnauthorized && a.OnUnauthorized != nil {
		a.OnUnauthorized(ctx)
	}
	return resp, err
}
