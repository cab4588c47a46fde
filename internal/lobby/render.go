package lobby

import (
	"fmt"
	"strings"
	"time"

	"github.com/jason-s-yu/matchhost/internal/interaction"
	"github.com/jason-s-yu/matchhost/internal/models"
	"github.com/jason-s-yu/matchhost/internal/setup"
)

func renderQueue(l models.Lobby, members []models.Participant, title string) interaction.Status {
	if title == "" {
		title = "Lobby queue"
	}
	settings := fmt.Sprintf("Game mode: *%s*\nTeams selection: *%s*\nCaptains selection: *%s*\nMaps selection: *%s*",
		title1(string(l.GameMode)), title1(string(l.TeamMethod)), title1(string(l.CaptainMethod)), title1(string(l.MapMethod)))

	var players strings.Builder
	if len(members) == 0 {
		players.WriteString("*Lobby is empty*")
	}
	for i, m := range members {
		fmt.Fprintf(&players, "%d. %s\n", i+1, interaction.Mention(m.UserID))
	}

	return interaction.Status{
		Title: title,
		Color: interaction.ColorInfo,
		Fields: []interaction.Field{
			{Name: "Settings", Value: settings},
			{Name: fmt.Sprintf("Players (%d/%d)", len(members), l.Capacity), Value: players.String()},
		},
		Footer: "Lobby " + l.ID.String(),
	}
}

func renderReady(ev setup.ReadyEvent, promptID string, timeout time.Duration) interaction.Status {
	lines := make([]string, 0, len(ev.Ready)+len(ev.Pending))
	for _, u := range ev.Ready {
		lines = append(lines, "✅ "+interaction.Mention(u))
	}
	for _, u := range ev.Pending {
		lines = append(lines, "❌ "+interaction.Mention(u))
	}

	st := interaction.Status{
		Title:       "Lobby has filled up!",
		Description: strings.Join(lines, "\n"),
		Color:       interaction.ColorInfo,
		Footer:      fmt.Sprintf("You have %d seconds to ready up", int(timeout.Seconds())),
	}
	switch ev.State {
	case setup.ReadyOpen:
		st.Mentions = ev.Pending
		st.Prompt = &interaction.Prompt{
			ID:      promptID,
			Kind:    interaction.PromptButtons,
			Actors:  ev.Pending,
			Options: []interaction.Option{{Label: "Ready", Value: "ready", Style: interaction.StyleSuccess}},
		}
	case setup.ReadyAll:
		st.Title = "Everyone is ready"
		st.Description = "Starting match setup..."
		st.Color = interaction.ColorSuccess
		st.Footer = ""
	case setup.ReadyTimedOut:
		st.Title = "Not everyone was ready"
		st.Color = interaction.ColorFailure
		st.Footer = "Unready players were moved out of the lobby"
	}
	return st
}

func title1(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
