package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rosenkoenig/internal/game"
)

// TokenSource supplies the bearer credential for one call
type TokenSource func() (string, error)

// StaticToken always returns token
func StaticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

// Remote calls a play-turn function hosted elsewhere over HTTP. Calls are
// never retried.
type Remote struct {
	url    string
	token  TokenSource
	client *http.Client
}

// NewRemote creates a client for the play-turn endpoint at url. token is
// asked for a credential before every call; it may be nil.
func NewRemote(url string, token TokenSource, timeout time.Duration) *Remote {
	return &Remote{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// PlayTurn posts req and decodes the persisted result
func (r *Remote) PlayTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode turn: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build turn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.token != nil {
		token, err := r.token()
		if err != nil {
			return nil, fmt.Errorf("play-turn: credential: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("play-turn: %v: %w", err, game.ErrTransport)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("play-turn: reading response: %v: %w", err, game.ErrTransport)
	}

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			return nil, game.FromCode(eb.Error, eb.Message)
		}
		return nil, fmt.Errorf("play-turn: status %d: %w", resp.StatusCode, game.ErrTransport)
	}

	var result TurnResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("play-turn: decoding response: %v: %w", err, game.ErrTransport)
	}
	if result.Session == nil {
		return nil, fmt.Errorf("play-turn: response without session: %w", game.ErrTransport)
	}
	return &result, nil
}
