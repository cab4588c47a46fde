package match

import (
	"fmt"
	"strings"

	"github.com/elliotchance/pie/v2"

	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/provider"
	"github.com/jason-s-yu/matchhost/internal/rating"
	"github.com/jason-s-yu/matchhost/internal/setup"
)

func renderProgress(text string) interaction.Status {
	return interaction.Status{Description: text, Color: interaction.ColorInfo}
}

func renderFailure(reason string) interaction.Status {
	return interaction.Status{Title: "Match Setup Failed", Description: reason, Color: interaction.ColorFailure}
}

func mentions(users []string) string {
	if len(users) == 0 {
		return "*empty*"
	}
	return strings.Join(pie.Map(users, interaction.Mention), "\n")
}

func renderDraft(ev setup.DraftEvent, promptID string, names map[string]string) interaction.Status {
	label := func(u string) string {
		if n := names[u]; n != "" {
			return n
		}
		return u
	}
	st := interaction.Status{
		Title: "Team selection",
		Color: interaction.ColorInfo,
		Fields: []interaction.Field{
			{Name: "Team 1", Value: mentions(ev.Teams[0]), Inline: true},
			{Name: "Team 2", Value: mentions(ev.Teams[1]), Inline: true},
			{Name: "Players left", Value: mentions(ev.Pool)},
		},
	}
	if ev.Actor != "" && ev.Target != "" {
		st.Description = fmt.Sprintf("%s picked %s", interaction.Mention(ev.Actor), interaction.Mention(ev.Target))
	}

	switch ev.Phase {
	case setup.PhaseSelectingCaptains:
		st.Title = "Captains selection"
		st.Description = "Click the button to become a captain"
		if ev.Captains[0] != "" {
			st.Description += "\nFirst captain: " + interaction.Mention(ev.Captains[0])
		}
		st.Prompt = &interaction.Prompt{
			ID:      promptID,
			Kind:    interaction.PromptButtons,
			Options: []interaction.Option{{Label: "Become captain", Value: VolunteerValue, Style: interaction.StylePrimary}},
		}
	case setup.PhaseDrafting:
		captain := ev.Captains[ev.Turn]
		st.Footer = fmt.Sprintf("Team %d captain (%s) is picking", ev.Turn+1, label(captain))
		st.Mentions = []string{captain}
		st.Prompt = &interaction.Prompt{
			ID:     promptID,
			Kind:   interaction.PromptButtons,
			Actors: []string{captain},
			Options: pie.Map(ev.Pool, func(u string) interaction.Option {
				return interaction.Option{Label: label(u), Value: u, Style: interaction.StyleSecondary}
			}),
		}
	case setup.PhaseComplete:
		st.Title = "Teams are set"
		st.Color = interaction.ColorSuccess
	case setup.PhaseAbandoned:
		st.Title = "Team selection abandoned"
		st.Color = interaction.ColorFailure
	}
	return st
}

func renderVeto(ev setup.VetoEvent, promptID string, names map[string]string) interaction.Status {
	var bans strings.Builder
	for _, b := range ev.Bans {
		fmt.Fprintf(&bans, "~~%s~~ banned by %s\n", models.MapLabel(b.Map), interaction.Mention(b.Captain))
	}
	st := interaction.Status{
		Title: "Map veto",
		Color: interaction.ColorInfo,
		Fields: []interaction.Field{
			{Name: "Maps left", Value: strings.Join(pie.Map(ev.Remaining, models.MapLabel), "\n")},
		},
	}
	if bans.Len() > 0 {
		st.Fields = append(st.Fields, interaction.Field{Name: "Banned", Value: bans.String()})
	}

	switch ev.Outcome {
	case setup.Pending:
		name := names[ev.Captain]
		if name == "" {
			name = ev.Captain
		}
		st.Footer = fmt.Sprintf("%s is banning", name)
		st.Mentions = []string{ev.Captain}
		st.Prompt = &interaction.Prompt{
			ID:     promptID,
			Kind:   interaction.PromptButtons,
			Actors: []string{ev.Captain},
			Options: pie.Map(ev.Remaining, func(m string) interaction.Option {
				return interaction.Option{Label: models.MapLabel(m), Value: m, Style: interaction.StyleDanger}
			}),
		}
	case setup.Completed:
		st.Title = "Map selected"
		st.Description = models.MapLabel(ev.Remaining[0])
		st.Color = interaction.ColorSuccess
	case setup.Abandoned:
		st.Title = "Map veto abandoned"
		st.Color = interaction.ColorFailure
	}
	return st
}

func renderRegion(ev setup.RegionEvent, promptID string, captains [2]string, regions []models.Region, names map[string]string) interaction.Status {
	var lines []string
	for i, c := range captains {
		choice := "*waiting...*"
		if ev.Choices[i] != "" {
			choice = models.RegionLabel(ev.Choices[i])
		}
		lines = append(lines, fmt.Sprintf("%s: %s", interaction.Mention(c), choice))
	}
	st := interaction.Status{
		Title:       "Choose your game server location",
		Description: strings.Join(lines, "\n"),
		Color:       interaction.ColorInfo,
	}
	switch ev.Outcome {
	case setup.Pending:
		var actors []string
		for i, c := range captains {
			if ev.Choices[i] == "" {
				actors = append(actors, c)
			}
		}
		st.Mentions = actors
		st.Prompt = &interaction.Prompt{
			ID:          promptID,
			Kind:        interaction.PromptSelect,
			Placeholder: "Choose your game server location",
			Actors:      actors,
			Options: pie.Map(regions, func(r models.Region) interaction.Option {
				return interaction.Option{Label: r.Label, Value: r.ID}
			}),
		}
	case setup.Completed:
		st.Title = "Server location: " + models.RegionLabel(ev.Region)
		st.Color = interaction.ColorSuccess
	case setup.Abandoned:
		st.Title = "Server location not selected"
		st.Color = interaction.ColorFailure
	}
	return st
}

func teamLists(assignments []models.TeamAssignment) (team1, team2 []string) {
	for _, a := range assignments {
		switch a.Team {
		case models.Team1:
			team1 = append(team1, a.UserID)
		case models.Team2:
			team2 = append(team2, a.UserID)
		}
	}
	return team1, team2
}

func renderLive(m models.Match, server provider.GameServer, assignments []models.TeamAssignment) interaction.Status {
	var desc strings.Builder
	if addr := server.Address(); addr != "" {
		fmt.Fprintf(&desc, "📌 **Server:** `connect %s`\n", addr)
		if server.Ports.GOTV != 0 {
			fmt.Fprintf(&desc, "📺 **GOTV:** `connect %s:%d`\n", server.IP, server.Ports.GOTV)
		}
	}
	if server.CS2Settings.GameMode != "" {
		fmt.Fprintf(&desc, "⚙️ **Game mode:** %s\n", server.CS2Settings.GameMode)
	}
	fmt.Fprintf(&desc, "🗺️ **Map:** %s\n", models.MapLabel(m.MapName))

	team1, team2 := teamLists(assignments)
	return interaction.Status{
		Title:       fmt.Sprintf("Match is live: %s [ %d : %d ] %s", m.Team1Name, m.Team1Score, m.Team2Score, m.Team2Name),
		Description: desc.String(),
		Color:       interaction.ColorSuccess,
		Fields: []interaction.Field{
			{Name: m.Team1Name, Value: mentions(team1), Inline: true},
			{Name: m.Team2Name, Value: mentions(team2), Inline: true},
		},
		Footer: fmt.Sprintf("Match #%s. You'll be moved to your team once the match starts. "+
			"The match is canceled if any player doesn't join within %d seconds.", m.ID, m.ConnectTime),
	}
}

func renderResults(m models.Match, assignments []models.TeamAssignment) interaction.Status {
	line := func(a models.TeamAssignment) string {
		hsp := rating.HSP(models.PlayerStats{Kills: a.Kills, Headshots: a.Headshots})
		return fmt.Sprintf("%s  K/A/D %d/%d/%d  HS %.0f%%  MVP %d",
			interaction.Mention(a.UserID), a.Kills, a.Assists, a.Deaths, hsp, a.MVPs)
	}
	var team1, team2 []string
	for _, a := range assignments {
		switch a.Team {
		case models.Team1:
			team1 = append(team1, line(a))
		case models.Team2:
			team2 = append(team2, line(a))
		}
	}
	winner := "Draw"
	switch m.Winner {
	case models.Team1:
		winner = m.Team1Name
	case models.Team2:
		winner = m.Team2Name
	}
	orEmpty := func(lines []string) string {
		if len(lines) == 0 {
			return "*no players*"
		}
		return strings.Join(lines, "\n")
	}
	return interaction.Status{
		Title:       fmt.Sprintf("%s [ %d : %d ] %s", m.Team1Name, m.Team1Score, m.Team2Score, m.Team2Name),
		Description: fmt.Sprintf("🗺️ **Map:** %s\n🏆 **Winner:** %s\n🔁 **Rounds:** %d", models.MapLabel(m.MapName), winner, m.RoundsPlayed),
		Color:       interaction.ColorInfo,
		Fields: []interaction.Field{
			{Name: m.Team1Name, Value: orEmpty(team1)},
			{Name: m.Team2Name, Value: orEmpty(team2)},
		},
		Footer: "Match #" + m.ID,
	}
}
