// internal/match/negotiate.go
package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/elliotchance/pie/v2"

	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/rating"
	"github.com/jason-s-yu/matchhost/internal/setup"
	"github.com/jason-s-yu/matchhost/internal/teams"
)

// VolunteerValue is the action value of the captain volunteer button.
const VolunteerValue = "volunteer"

// roster is the outcome of team formation.
type roster struct {
	captains [2]string
	teams    [2][]string
}

func (r roster) team(user string) models.Team {
	switch {
	case pie.Contains(r.teams[0], user):
		return models.Team1
	case pie.Contains(r.teams[1], user):
		return models.Team2
	}
	return models.TeamNone
}

// setup runs the negotiations and provisions the match.
func (lc *Lifecycle) setup(ctx context.Context, req SetupRequest, board *interaction.Board) (models.Match, error) {
	users := pie.Map(req.Participants, func(p models.Participant) string { return p.UserID })
	names := make(map[string]string, len(users))
	for _, p := range req.Participants {
		names[p.UserID] = p.Name
	}

	players, err := lc.linkedPlayers(ctx, users)
	if err != nil {
		return models.Match{}, err
	}

	r, err := lc.formTeams(ctx, req, board, users, names)
	if err != nil {
		return models.Match{}, err
	}

	mapName, err := lc.resolveMap(ctx, req, board, r, names)
	if err != nil {
		return models.Match{}, err
	}

	region, err := lc.selectRegion(ctx, req, board, r, names)
	if err != nil {
		return models.Match{}, err
	}

	return lc.provision(ctx, req, board, plan{
		roster:  r,
		mapName: mapName,
		region:  region,
		players: players,
		names:   names,
	})
}

// linkedPlayers loads the external identities of the roster.
func (lc *Lifecycle) linkedPlayers(ctx context.Context, users []string) (map[string]models.Player, error) {
	list, err := lc.store.GetPlayers(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	players := make(map[string]models.Player, len(list))
	for _, p := range list {
		players[p.UserID] = p
	}
	for _, u := range users {
		if _, ok := players[u]; !ok {
			return nil, &SetupError{
				Kind:   KindNotLinked,
				Reason: fmt.Sprintf("User %s is not linked", interaction.Mention(u)),
				Err:    ErrNotLinked,
			}
		}
	}
	return players, nil
}

func (lc *Lifecycle) ratings(ctx context.Context, users []string) map[string]float64 {
	stats, err := lc.store.GetPlayerStats(ctx, users)
	if err != nil {
		lc.logger.WithError(err).Warn("failed to load player stats, rating everyone equally")
		return map[string]float64{}
	}
	return rating.ByUser(stats)
}

// formTeams applies the lobby team method. Drafts and autobalance need at
// least teams.MinCaptainsRoster players and fall back to random below that.
func (lc *Lifecycle) formTeams(ctx context.Context, req SetupRequest, board *interaction.Board, users []string, names map[string]string) (roster, error) {
	enough := len(users) >= teams.MinCaptainsRoster
	var split teams.Split
	switch {
	case req.Lobby.TeamMethod == models.TeamMethodCaptains && enough:
		return lc.draft(ctx, req, board, users, names)
	case req.Lobby.TeamMethod == models.TeamMethodAutobalance && enough:
		split = teams.Autobalance(users, lc.ratings(ctx, users))
	default:
		split = teams.Random(users, lc.newRand())
	}
	if len(split.Team1) == 0 || len(split.Team2) == 0 {
		return roster{}, fmt.Errorf("cannot form two teams from %d players", len(users))
	}
	return roster{
		captains: [2]string{split.Team1[0], split.Team2[0]},
		teams:    [2][]string{split.Team1, split.Team2},
	}, nil
}

func (lc *Lifecycle) draft(ctx context.Context, req SetupRequest, board *interaction.Board, users []string, names map[string]string) (roster, error) {
	var ratings map[string]float64
	if req.Lobby.CaptainMethod == models.CaptainMethodRank {
		ratings = lc.ratings(ctx, users)
	}
	d, err := setup.NewDraft(setup.DraftConfig{
		Users:   users,
		Method:  req.Lobby.CaptainMethod,
		Ratings: ratings,
		Timeout: lc.cfg.DraftTimeout,
		Rand:    lc.newRand(),
	})
	if err != nil {
		return roster{}, fmt.Errorf("failed to create draft: %w", err)
	}

	promptID := req.SetupID + ":draft"
	stage := board.Stage()
	d.OnUpdate = func(ev setup.DraftEvent) {
		lc.show(ctx, stage, ev.Seq, renderDraft(ev, promptID, names))
	}
	unregister := lc.router.Register(promptID, func(_ context.Context, a interaction.Action) error {
		if a.Value == VolunteerValue {
			return d.Volunteer(a.UserID)
		}
		return d.Pick(a.UserID, a.Value)
	})
	defer unregister()

	d.Start()
	res := d.Wait(ctx)
	if res.Outcome != setup.Completed {
		return roster{}, abandoned("draft", res.Reason)
	}
	return roster{captains: res.Captains, teams: res.Teams}, nil
}

func (lc *Lifecycle) resolveMap(ctx context.Context, req SetupRequest, board *interaction.Board, r roster, names map[string]string) (string, error) {
	pool := lc.cfg.MapPool
	if len(pool) == 0 {
		return "", errors.New("map pool is empty")
	}
	if req.Lobby.MapMethod != models.MapMethodVeto {
		return pool[lc.newRand().Intn(len(pool))], nil
	}

	v, err := setup.NewVeto(pool, r.captains, lc.cfg.VetoTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to create veto: %w", err)
	}
	promptID := req.SetupID + ":veto"
	stage := board.Stage()
	v.OnUpdate = func(ev setup.VetoEvent) {
		lc.show(ctx, stage, ev.Seq, renderVeto(ev, promptID, names))
	}
	unregister := lc.router.Register(promptID, func(_ context.Context, a interaction.Action) error {
		return v.Ban(a.UserID, a.Value)
	})
	defer unregister()

	v.Start()
	res := v.Wait(ctx)
	if res.Outcome != setup.Completed {
		return "", abandoned("veto", res.Reason)
	}
	return res.Map, nil
}

func (lc *Lifecycle) selectRegion(ctx context.Context, req SetupRequest, board *interaction.Board, r roster, names map[string]string) (string, error) {
	rs := setup.NewRegionSelect(r.captains, lc.cfg.Regions, lc.cfg.RegionTimeout, lc.newRand())
	promptID := req.SetupID + ":region"
	stage := board.Stage()
	rs.OnUpdate = func(ev setup.RegionEvent) {
		lc.show(ctx, stage, ev.Seq, renderRegion(ev, promptID, r.captains, lc.cfg.Regions, names))
	}
	unregister := lc.router.Register(promptID, func(_ context.Context, a interaction.Action) error {
		return rs.Select(a.UserID, a.Value)
	})
	defer unregister()

	rs.Start()
	res := rs.Wait(ctx)
	if res.Outcome != setup.Completed {
		return "", abandoned("region select", res.Reason)
	}
	return res.Region, nil
}

func (lc *Lifecycle) show(ctx context.Context, stage *interaction.Stage, seq int, st interaction.Status) {
	if err := stage.Show(context.WithoutCancel(ctx), seq, st); err != nil {
		lc.logger.WithError(err).Warn("failed to update setup status")
	}
}

func abandoned(step, reason string) *SetupError {
	if reason == setup.ReasonTimeout {
		return &SetupError{Kind: KindTimeout, Reason: "Setup took too long!", Err: fmt.Errorf("%s: %w", step, ErrSetupTimeout)}
	}
	return &SetupError{Kind: KindCanceled, Reason: "Setup was canceled", Err: fmt.Errorf("%s abandoned: %s", step, reason)}
}
