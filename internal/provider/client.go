// internal/provider/client.go

// Package provider is a client for the game-server rental API.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/matchhost/internal/models"
)

var (
	// ErrUnauthorized is returned for rejected credentials. It is always fatal
	// for the operation in flight.
	ErrUnauthorized = errors.New("provider rejected credentials")
	ErrNotFound     = errors.New("provider resource not found")
)

// APIError is any other non-success response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	// Game filters the server list, cs2 when empty.
	Game    string
	Timeout time.Duration
}

// Client talks to the provider REST API with basic auth.
type Client struct {
	http   *resty.Client
	game   string
	logger *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.Game == "" {
		cfg.Game = "cs2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.Email, cfg.Password).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: hc, game: cfg.Game, logger: logger}
}

func (c *Client) ListGameServers(ctx context.Context) ([]GameServer, error) {
	var all []GameServer
	if err := c.do(ctx, http.MethodGet, "/api/0.1/game-servers", nil, nil, &all); err != nil {
		return nil, err
	}
	servers := make([]GameServer, 0, len(all))
	for _, s := range all {
		if s.Game == c.game {
			servers = append(servers, s)
		}
	}
	return servers, nil
}

func (c *Client) GetGameServer(ctx context.Context, id string) (GameServer, error) {
	var s GameServer
	err := c.do(ctx, http.MethodGet, "/api/0.1/game-servers/"+id, nil, nil, &s)
	return s, err
}

// UpdateGameServer switches a server's game mode and hosting location.
func (c *Client) UpdateGameServer(ctx context.Context, id string, mode models.GameMode, location string) error {
	form := map[string]string{
		"cs2_settings.game_mode": string(mode),
		"location":               location,
	}
	return c.do(ctx, http.MethodPut, "/api/0.1/game-servers/"+id, form, nil, nil)
}

func (c *Client) StopGameServer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/0.1/game-servers/"+id+"/stop", nil, nil, nil)
}

func (c *Client) CreateMatch(ctx context.Context, req CreateMatchRequest) (Match, error) {
	var m Match
	err := c.do(ctx, http.MethodPost, "/api/0.1/cs2-matches", nil, req, &m)
	return m, err
}

func (c *Client) GetMatch(ctx context.Context, id string) (Match, error) {
	var m Match
	err := c.do(ctx, http.MethodGet, "/api/0.1/cs2-matches/"+id, nil, nil, &m)
	return m, err
}

func (c *Client) CancelMatch(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/0.1/cs2-matches/"+id+"/cancel", nil, nil, nil)
}

// AddMatchPlayer adds a player to a running match.
func (c *Client) AddMatchPlayer(ctx context.Context, matchID string, p MatchPlayer) error {
	return c.do(ctx, http.MethodPut, "/api/0.1/cs2-matches/"+matchID+"/players", nil, p, nil)
}

// do executes one request. form and body are mutually exclusive; out is
// decoded from a successful response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, form map[string]string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if form != nil {
		req.SetFormData(form)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("provider %s %s: %w", method, path, err)
	}
	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode(),
	}).Debug("provider request")

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case code < 200 || code > 299:
		return &APIError{Method: method, Path: path, StatusCode: code, Body: string(resp.Body())}
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode provider %s %s: %w", method, path, err)
	}
	return nil
}
