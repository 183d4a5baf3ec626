package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// IssuerConfig configures a local token issuer.
type IssuerConfig struct {
	// SigningKey is the HMAC key for tokens and request signatures (required).
	SigningKey []byte

	// Name is written to the "iss" claim (default: "asynchttp").
	Name string

	// TokenTTL is the lifetime of an issued token (default: 1h).
	TokenTTL time.Duration

	// SignRequests adds a request signature to every credential.
	SignRequests bool

	// Store caches issued tokens (default: in-memory).
	Store TokenStore

	// Now overrides the clock.
	Now func() time.Time
}

func (c *IssuerConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "asynchttp"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = time.Hour
	}
	if c.Store == nil {
		c.Store = NewMemoryStore()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Claims are the verified contents of a token.
type Claims struct {
	Subject   string
	Issuer    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer is a Provider that mints HMAC-signed bearer tokens locally.
//
// Tokens are cached per user and handed out again under UseCached until they
// expire. Revoke invalidates every token issued so far for Verify, but
// cached copies keep being handed out until a ForceRefresh, the same way a
// remote identity service would keep serving its cache until told otherwise.
type Issuer struct {
	config IssuerConfig

	mu          sync.RWMutex
	generations map[string]int64 // user ID -> revocation count

	minted atomic.Int64
}

// NewIssuer creates an issuer. Default values are applied to zero-valued
// config fields.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrNoSigningKey
	}
	cfg.setDefaults()
	return &Issuer{
		config:      cfg,
		generations: make(map[string]int64),
	}, nil
}

// GetTokenAndSignature implements Provider.
func (i *Issuer) GetTokenAndSignature(ctx context.Context, req TokenRequest) (<-chan Result, error) {
	if req.User == nil || req.User.ID == "" {
		return nil, ErrNoUser
	}

	ch := make(chan Result, 1)
	go func() {
		ch <- i.issue(ctx, req)
	}()
	return ch, nil
}

func (i *Issuer) issue(ctx context.Context, req TokenRequest) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	token, err := i.token(req.User.ID, req.Policy)
	if err != nil {
		return Result{Err: err}
	}

	cred := Credential{Token: "Bearer " + token}
	if i.config.SignRequests {
		cred.Signature = i.Sign(req)
	}
	return Result{Credential: cred}
}

func (i *Issuer) token(userID string, policy RefreshPolicy) (string, error) {
	now := i.config.Now()

	if policy == UseCached {
		cached, ok, err := i.config.Store.Load(userID)
		if err != nil {
			return "", err
		}
		if ok && now.Before(cached.ExpiresAt) {
			return cached.Token, nil
		}
	}

	expires := now.Add(i.config.TokenTTL)
	token, err := i.mint(userID, now, expires)
	if err != nil {
		return "", err
	}
	if err := i.config.Store.Save(userID, CachedToken{Token: token, ExpiresAt: expires}); err != nil {
		return "", err
	}
	return token, nil
}

func (i *Issuer) mint(userID string, now, expires time.Time) (string, error) {
	i.mu.RLock()
	gen := i.generations[userID]
	i.mu.RUnlock()

	claims := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"sub", userID},
		{"iss", i.config.Name},
		{"jti", uuid.NewString()},
		{"iat", now.UnixNano()},
		{"exp", expires.UnixNano()},
		{"gen", gen},
	} {
		claims, err = sjson.SetBytes(claims, kv.path, kv.value)
		if err != nil {
			return "", fmt.Errorf("failed to build claims: %w", err)
		}
	}

	i.minted.Add(1)
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return payload + "." + i.mac(payload), nil
}

// Minted returns how many tokens have been minted.
func (i *Issuer) Minted() int64 {
	return i.minted.Load()
}

// Verify checks a token, with or without its "Bearer " prefix.
func (i *Issuer) Verify(token string) (*Claims, error) {
	token = strings.TrimPrefix(token, "Bearer ")

	payload, mac, ok := strings.Cut(token, ".")
	if !ok || !hmac.Equal([]byte(mac), []byte(i.mac(payload))) {
		return nil, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil || !gjson.ValidBytes(raw) {
		return nil, ErrInvalidToken
	}

	parsed := gjson.ParseBytes(raw)
	claims := &Claims{
		Subject:   parsed.Get("sub").String(),
		Issuer:    parsed.Get("iss").String(),
		ID:        parsed.Get("jti").String(),
		IssuedAt:  time.Unix(0, parsed.Get("iat").Int()),
		ExpiresAt: time.Unix(0, parsed.Get("exp").Int()),
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	if !i.config.Now().Before(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	i.mu.RLock()
	gen := i.generations[claims.Subject]
	i.mu.RUnlock()
	if parsed.Get("gen").Int() < gen {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Revoke invalidates every token minted for userID before the call. Tokens
// carry the user's revocation count in their "gen" claim.
func (i *Issuer) Revoke(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.generations[userID]++
}

// Sign computes the request signature for req.
func (i *Issuer) Sign(req TokenRequest) string {
	h := hmac.New(sha256.New, i.config.SigningKey)
	h.Write([]byte(req.Method + "\n" + req.URL + "\n"))
	for _, hdr := range req.Headers {
		h.Write([]byte(hdr.Name + ":" + hdr.Value + "\n"))
	}
	h.Write(req.Body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (i *Issuer) mac(payload string) string {
	h := hmac.New(sha256.New, i.config.SigningKey)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
