// Package client is the player side of the game: an HTTP API client, the
// session synchronizer and the Game that ties them to the interaction
// controller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rosenkoenig/internal/game"
	"rosenkoenig/internal/models"
	"rosenkoenig/internal/rules"
	"rosenkoenig/internal/security"
)

// API talks to the game server's JSON endpoints
type API struct {
	base   string
	token  string
	client *http.Client
}

// NewAPI creates a client for the server at baseURL. token may be empty
// until a guest identity has been issued.
func NewAPI(baseURL, token string, timeout time.Duration) (*API, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	return &API{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the server address
func (a *API) BaseURL() string {
	return a.base
}

// Token returns the bearer token in use
func (a *API) Token() string {
	return a.token
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, game.ErrTransport)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %v: %w", method, path, err, game.ErrTransport)
	}

	if resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, game.ErrTransport)
		}
		if e.Error == "validation" {
			field := e.Field
			if field == "" {
				field = "request"
			}
			return game.ValidationError{Field: field, Message: e.Message}
		}
		return game.FromCode(e.Error, e.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %v: %w", method, path, err, game.ErrTransport)
	}
	return nil
}

func sessionPath(id string, rest ...string) string {
	p := "/api/sessions/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Guest asks the server for a new guest identity and starts using its token
func (a *API) Guest(ctx context.Context, name string) (*security.Guest, error) {
	var g security.Guest
	if err := a.do(ctx, http.MethodPost, "/api/guests", map[string]string{"name": name}, &g); err != nil {
		return nil, err
	}
	a.token = g.Token
	return &g, nil
}

// CreateSession opens a session with the caller in seat A
func (a *API) CreateSession(ctx context.Context) (*models.Session, error) {
	var s models.Session
	if err := a.do(ctx, http.MethodPost, "/api/sessions", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// JoinSession takes seat B of session id
func (a *API) JoinSession(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, game.Invalid("session", "session id is required")
	}
	var s models.Session
	if err := a.do(ctx, http.MethodPost, sessionPath(id, "join"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// OpenSessions lists sessions waiting for an opponent
func (a *API) OpenSessions(ctx context.Context, limit int) ([]models.Session, error) {
	var out []models.Session
	path := "/api/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type moveBody struct {
	CardID      string        `json:"card_id"`
	Destination models.Coord  `json:"destination"`
	Origin      *models.Coord `json:"origin,omitempty"`
}

// SubmitMove plays cardID towards destination. origin may be nil to play
// from the crown.
func (a *API) SubmitMove(ctx context.Context, sessionID, cardID string, destination models.Coord, origin *models.Coord) (*rules.TurnResult, error) {
	if sessionID == "" {
		return nil, game.Invalid("session", "session id is required")
	}
	var res rules.TurnResult
	body := moveBody{CardID: cardID, Destination: destination, Origin: origin}
	if err := a.do(ctx, http.MethodPost, sessionPath(sessionID, "moves"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Forfeit concedes session id
func (a *API) Forfeit(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, game.Invalid("session", "session id is required")
	}
	var s models.Session
	if err := a.do(ctx, http.MethodPost, sessionPath(id, "forfeit"), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FetchSession loads the session row
func (a *API) FetchSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := a.do(ctx, http.MethodGet, sessionPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FetchCells loads the board
func (a *API) FetchCells(ctx context.Context, id string) ([]models.Cell, error) {
	var out []models.Cell
	if err := a.do(ctx, http.MethodGet, sessionPath(id, "cells"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCards loads both decks
func (a *API) FetchCards(ctx context.Context, id string) ([]models.Card, error) {
	var out []models.Card
	if err := a.do(ctx, http.MethodGet, sessionPath(id, "cards"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchMoves loads the move log
func (a *API) FetchMoves(ctx context.Context, id string) ([]models.Move, error) {
	var out []models.Move
	if err := a.do(ctx, http.MethodGet, sessionPath(id, "moves"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
