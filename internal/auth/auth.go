// Package auth verifies player autographs: the signed agreement a player
// submits once before their account is created.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

var (
	// ErrInvalidAutograph indicates the signature is definitively invalid.
	ErrInvalidAutograph = errors.New("auth: invalid autograph")

	// ErrUnavailable indicates the verification service is unreachable.
	ErrUnavailable = errors.New("auth: unavailable")
)

// Player ids are Ethereum-style addresses; autographs are 65-byte signatures.
var (
	playerIDPattern  = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	autographPattern = regexp.MustCompile(`^0x[0-9a-f]{130}$`)
)

// ValidPlayerID reports whether id is a well-formed player address.
func ValidPlayerID(id string) bool {
	return playerIDPattern.MatchString(id)
}

// Verifier checks that an autograph was signed by the player it claims.
type Verifier interface {
	// Verify returns nil for a valid autograph, ErrInvalidAutograph for a
	// definitive rejection, or ErrUnavailable when no decision was possible.
	Verify(ctx context.Context, playerID, autograph string) error
}

// HTTPVerifier delegates signature recovery to an external service.
type HTTPVerifier struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPVerifier creates a verifier that calls an external HTTP endpoint.
func NewHTTPVerifier(url, secret string) *HTTPVerifier {
	return &HTTPVerifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 500 * time.Millisecond,
		},
	}
}

type verifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, playerID, autograph string) error {
	if !ValidPlayerID(playerID) || !autographPattern.MatchString(autograph) {
		return ErrInvalidAutograph
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	reqBody, err := json.Marshal(verifyRequest{Address: playerID, Signature: autograph})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.secret != "" {
		req.Header.Set("X-Admin-Secret", v.secret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidAutograph
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	// Limit response body to 1MB to avoid pathological responses
	var verdict verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&verdict); err != nil {
		return fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}
	if !verdict.Valid {
		return ErrInvalidAutograph
	}
	return nil
}

// NoopVerifier accepts any well-formed autograph without signature recovery
// (dev mode).
type NoopVerifier struct{}

// NewNoopVerifier creates a verifier that only checks formats.
func NewNoopVerifier() *NoopVerifier {
	return &NoopVerifier{}
}

func (v *NoopVerifier) Verify(ctx context.Context, playerID, autograph string) error {
	if !ValidPlayerID(playerID) || !autographPattern.MatchString(autograph) {
		return ErrInvalidAutograph
	}
	return nil
}
