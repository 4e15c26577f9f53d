// Package client talks to a bjtj server over its HTTP API and view stream.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/bjtj/bjtj/internal/game"
)

// APIError is the decoded error body of a non-200 response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client drives a single player's session against a bjtj server.
type Client struct {
	serverURL string
	playerID  string
	autograph string
	http      *http.Client
	logger    *log.Logger
}

// NewClient creates a client for one player identity.
func NewClient(serverURL, playerID, autograph string, logger *log.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		playerID:  playerID,
		autograph: autograph,
		http:      &http.Client{Timeout: 10 * time.Second},
		logger:    logger.WithPrefix("client"),
	}
}

// PlayerID returns the identity this client plays as.
func (c *Client) PlayerID() string {
	return c.playerID
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*game.PublicView, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	u.Path = path
	query.Set("id", c.playerID)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = string(body)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	var view game.PublicView
	if err := json.Unmarshal(body, &view); err != nil {
		return nil, fmt.Errorf("decoding view: %w", err)
	}
	return &view, nil
}

// Autograph signs the player up (idempotent on the server side).
func (c *Client) Autograph(ctx context.Context) (*game.PublicView, error) {
	q := url.Values{}
	q.Set("ag", c.autograph)
	return c.get(ctx, "/api/autograph", q)
}

// Refresh fetches the current view without changing state.
func (c *Client) Refresh(ctx context.Context) (*game.PublicView, error) {
	return c.get(ctx, "/api/refresh", url.Values{})
}

// Deal stakes a bet and starts a round. A zero bet uses the table default.
func (c *Client) Deal(ctx context.Context, bet int) (*game.PublicView, error) {
	q := url.Values{}
	if bet > 0 {
		q.Set("bet", fmt.Sprintf("%d", bet))
	}
	return c.get(ctx, "/api/deal", q)
}

// Hit draws a card for the active hand.
func (c *Client) Hit(ctx context.Context) (*game.PublicView, error) {
	return c.get(ctx, "/api/hit", url.Values{})
}

// Stand ends the active hand's turn.
func (c *Client) Stand(ctx context.Context) (*game.PublicView, error) {
	return c.get(ctx, "/api/stand", url.Values{})
}

// Double doubles the active hand's bet for exactly one more card.
func (c *Client) Double(ctx context.Context) (*game.PublicView, error) {
	return c.get(ctx, "/api/double", url.Values{})
}

// Split splits the active pair into two hands.
func (c *Client) Split(ctx context.Context) (*game.PublicView, error) {
	return c.get(ctx, "/api/split", url.Values{})
}

// Cashout converts the balance through the settlement gateway.
func (c *Client) Cashout(ctx context.Context) (*game.PublicView, error) {
	return c.get(ctx, "/api/cashout", url.Values{})
}

// ViewStream subscribes to the server's WebSocket push channel. Frames arrive
// on the returned channel until the context is cancelled or the stream drops.
func (c *Client) ViewStream(ctx context.Context) (<-chan *game.PublicView, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := url.Values{}
	q.Set("id", c.playerID)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	views := make(chan *game.PublicView, 16)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(views)
		defer func() { _ = conn.Close() }()
		for {
			var frame struct {
				Type string           `json:"type"`
				View *game.PublicView `json:"view"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				if !errors.Is(ctx.Err(), context.Canceled) &&
					websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Error("View stream error", "error", err)
				}
				return
			}
			if frame.Type != "view" || frame.View == nil {
				continue
			}
			select {
			case views <- frame.View:
			case <-ctx.Done():
				return
			}
		}
	}()
	return views, nil
}
