// internal/provider/providertest/fake.go

// Package providertest provides an in-memory game-server provider.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
)

// Provider keeps servers and matches in memory and records every call.
type Provider struct {
	mu      sync.Mutex
	seq     int
	servers map[string]provider.GameServer
	order   []string
	matches map[string]provider.Match

	// ReachableAfter is the number of GetGameServer calls a claimed server
	// needs before it reports an address. Zero means immediately.
	ReachableAfter int
	// CreateErr fails CreateMatch when set.
	CreateErr error
	// GetMatchErr fails GetMatch when set.
	GetMatchErr error

	Created  []provider.CreateMatchRequest
	Updated  []string
	Stopped  []string
	Canceled []string
	Added    []provider.MatchPlayer
	Polls    int
}

func New() *Provider {
	return &Provider{
		servers: make(map[string]provider.GameServer),
		matches: make(map[string]provider.Match),
	}
}

// AddServer registers a server. Its address is withheld until claimed and
// polled according to ReachableAfter.
func (p *Provider) AddServer(s provider.GameServer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Game == "" {
		s.Game = "cs2"
	}
	p.servers[s.ID] = s
	p.order = append(p.order, s.ID)
}

// SetMatch replaces the snapshot returned by GetMatch.
func (p *Provider) SetMatch(m provider.Match) {
	p.mu.Lock()
	p.matches[m.ID] = m
	p.mu.Unlock()
}

func (p *Provider) Match(id string) (provider.Match, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.matches[id]
	return m, ok
}

func (p *Provider) ListGameServers(context.Context) ([]provider.GameServer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.GameServer, 0, len(p.order))
	for _, id := range p.order {
		s := p.servers[id]
		s.IP = ""
		out = append(out, s)
	}
	return out, nil
}

func (p *Provider) GetGameServer(_ context.Context, id string) (provider.GameServer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[id]
	if !ok {
		return provider.GameServer{}, provider.ErrNotFound
	}
	p.Polls++
	if p.Polls <= p.ReachableAfter {
		s.IP = ""
	}
	return s, nil
}

func (p *Provider) UpdateGameServer(_ context.Context, id string, mode models.GameMode, location string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[id]
	if !ok {
		return provider.ErrNotFound
	}
	s.Location = location
	s.CS2Settings.GameMode = string(mode)
	p.servers[id] = s
	p.Updated = append(p.Updated, id)
	return nil
}

func (p *Provider) StopGameServer(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.servers[id]
	if !ok {
		return provider.ErrNotFound
	}
	s.MatchID = ""
	s.On = false
	p.servers[id] = s
	p.Stopped = append(p.Stopped, id)
	return nil
}

func (p *Provider) CreateMatch(_ context.Context, req provider.CreateMatchRequest) (provider.Match, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return provider.Match{}, p.CreateErr
	}
	p.seq++
	m := provider.Match{
		ID:           fmt.Sprintf("match-%d", p.seq),
		GameServerID: req.GameServerID,
		Team1:        provider.MatchTeam{Name: req.Team1.Name},
		Team2:        provider.MatchTeam{Name: req.Team2.Name},
		Settings:     req.Settings,
		Players:      append([]provider.MatchPlayer(nil), req.Players...),
	}
	p.matches[m.ID] = m
	p.Created = append(p.Created, req)
	if s, ok := p.servers[req.GameServerID]; ok {
		s.MatchID = m.ID
		s.On = true
		p.servers[s.ID] = s
	}
	return m, nil
}

func (p *Provider) GetMatch(_ context.Context, id string) (provider.Match, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.GetMatchErr != nil {
		return provider.Match{}, p.GetMatchErr
	}
	m, ok := p.matches[id]
	if !ok {
		return provider.Match{}, provider.ErrNotFound
	}
	return m, nil
}

func (p *Provider) CancelMatch(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.matches[id]
	if !ok {
		return provider.ErrNotFound
	}
	reason := "canceled"
	m.CancelReason = &reason
	p.matches[id] = m
	p.Canceled = append(p.Canceled, id)
	return nil
}

func (p *Provider) AddMatchPlayer(_ context.Context, matchID string, mp provider.MatchPlayer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.matches[matchID]
	if !ok {
		return provider.ErrNotFound
	}
	m.Players = append(m.Players, mp)
	p.matches[matchID] = m
	mp.MatchID = matchID
	p.Added = append(p.Added, mp)
	return nil
}
