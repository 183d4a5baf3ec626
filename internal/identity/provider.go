// Package identity issues the signed bearer credentials attached to
// authenticated requests.
package identity

import (
	"context"
	"errors"
)

var (
	ErrNoUser       = errors.New("identity: no user")
	ErrNoSigningKey = errors.New("identity: signing key is required")
	ErrInvalidToken = errors.New("identity: invalid token")
	ErrTokenExpired = errors.New("identity: token expired")
	ErrTokenRevoked = errors.New("identity: token revoked")
)

// User is an authenticated user on whose behalf requests are signed.
type User struct {
	ID   string
	Name string
}

// RefreshPolicy tells the provider whether a cached credential may be reused.
type RefreshPolicy int

const (
	UseCached RefreshPolicy = iota
	ForceRefresh
)

func (p RefreshPolicy) String() string {
	switch p {
	case UseCached:
		return "use-cached"
	case ForceRefresh:
		return "force-refresh"
	default:
		return "unknown"
	}
}

// Header is a request header as seen by the provider when computing a
// request signature.
type Header struct {
	Name  string
	Value string
}

// TokenRequest describes the request a credential is being issued for.
type TokenRequest struct {
	User    *User
	Policy  RefreshPolicy
	Method  string
	URL     string
	Headers []Header
	Body    []byte
}

// Credential is a signed bearer token plus an optional request signature.
type Credential struct {
	Token     string
	Signature string
}

// Result is the outcome of one asynchronous token request.
type Result struct {
	Credential Credential
	Err        error
}

// Provider issues credentials asynchronously.
//
// A non-nil error means the request was rejected synchronously and nothing
// will be delivered. Otherwise exactly one Result is sent on the returned
// channel.
type Provider interface {
	GetTokenAndSignature(ctx context.Context, req TokenRequest) (<-chan Result, error)
}
