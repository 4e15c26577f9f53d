// Package settle talks to the cash-out gateway that converts chips into an
// on-chain transfer. The engine never touches a wallet; it only consumes the
// receipt returned here.
package settle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/quartz"
)

// ErrGateway indicates the settlement gateway failed to produce a receipt.
// Callers must not debit chips on this error.
var ErrGateway = errors.New("settle: gateway failure")

// Receipt confirms a completed transfer. CashedChips of zero means the
// gateway had no funds; no chips were moved.
type Receipt struct {
	CashedChips int    `json:"chipsCashed"`
	TxHash      string `json:"txHash"`
}

// Gateway requests cash-outs on behalf of a player.
type Gateway interface {
	RequestCashout(ctx context.Context, playerID string, chips int) (Receipt, error)
}

// HTTPGateway is a Gateway over an HTTP settlement service. Transient
// failures are retried a bounded number of times; the delay between
// attempts comes from the injected clock so tests control time.
type HTTPGateway struct {
	url     string
	secret  string
	client  *http.Client
	clock   quartz.Clock
	retries int
	backoff time.Duration
}

// NewHTTPGateway creates a gateway client for the given endpoint.
func NewHTTPGateway(url, secret string, clock quartz.Clock) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		clock:   clock,
		retries: 3,
		backoff: time.Second,
	}
}

type cashoutRequest struct {
	Address string `json:"address"`
	Chips   int    `json:"chips"`
}

func (g *HTTPGateway) RequestCashout(ctx context.Context, playerID string, chips int) (Receipt, error) {
	var lastErr error
	for attempt := 0; attempt < g.retries; attempt++ {
		if attempt > 0 {
			wait := make(chan struct{})
			timer := g.clock.AfterFunc(g.backoff*time.Duration(attempt), func() {
				close(wait)
			})
			select {
			case <-ctx.Done():
				timer.Stop()
				return Receipt{}, fmt.Errorf("%w: %v", ErrGateway, ctx.Err())
			case <-wait:
			}
		}

		receipt, retryable, err := g.request(ctx, playerID, chips)
		if err == nil {
			return receipt, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Receipt{}, lastErr
}

func (g *HTTPGateway) request(ctx context.Context, playerID string, chips int) (Receipt, bool, error) {
	reqBody, err := json.Marshal(cashoutRequest{Address: playerID, Chips: chips})
	if err != nil {
		return Receipt{}, false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(reqBody))
	if err != nil {
		return Receipt{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.secret != "" {
		req.Header.Set("X-Admin-Secret", g.secret)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Receipt{}, true, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return Receipt{}, true, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	default:
		return Receipt{}, false, fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode)
	}

	var receipt Receipt
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&receipt); err != nil {
		return Receipt{}, false, fmt.Errorf("%w: decode error: %v", ErrGateway, err)
	}
	if receipt.CashedChips < 0 || receipt.CashedChips > chips {
		return Receipt{}, false, fmt.Errorf("%w: receipt for %d chips against request for %d", ErrGateway, receipt.CashedChips, chips)
	}
	return receipt, false, nil
}

// NoopGateway confirms every cash-out without moving funds (dev mode).
type NoopGateway struct{}

// NewNoopGateway creates a gateway that echoes the requested amount.
func NewNoopGateway() *NoopGateway {
	return &NoopGateway{}
}

func (g *NoopGateway) RequestCashout(ctx context.Context, playerID string, chips int) (Receipt, error) {
	return Receipt{CashedChips: chips, TxHash: "0xdev"}, nil
}
