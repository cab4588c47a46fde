package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSteamID(t *testing.T) {
	assert.True(t, ValidSteamID("76561198000000001"))
	for _, id := range []string{"", "7656119800000000", "765611980000000012", "86561198000000001", "7656119800000000a"} {
		assert.False(t, ValidSteamID(id), id)
	}
}

func TestLobbySettingsDefaults(t *testing.T) {
	s := LobbySettings{}.WithDefaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, 10, s.Capacity)
	assert.Equal(t, TeamMethodAutobalance, s.TeamMethod)
	assert.Equal(t, MapMethodVeto, s.MapMethod)
	assert.Equal(t, GameModeCompetitive, s.GameMode)
	assert.Equal(t, 300, s.ConnectTime)
}

func TestLobbySettingsValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*LobbySettings)
	}{
		{"odd capacity", func(s *LobbySettings) { s.Capacity = 5 }},
		{"too large", func(s *LobbySettings) { s.Capacity = 14 }},
		{"team method", func(s *LobbySettings) { s.TeamMethod = "coinflip" }},
		{"captain method", func(s *LobbySettings) { s.CaptainMethod = "oldest" }},
		{"map method", func(s *LobbySettings) { s.MapMethod = "vote" }},
		{"game mode", func(s *LobbySettings) { s.GameMode = "deathmatch" }},
		{"connect time", func(s *LobbySettings) { s.ConnectTime = 30 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := LobbySettings{}.WithDefaults()
			tc.modify(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestParseTeam(t *testing.T) {
	team, ok := ParseTeam("team2")
	assert.True(t, ok)
	assert.Equal(t, Team2, team)
	_, ok = ParseTeam("none")
	assert.False(t, ok)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Dust II", MapLabel("de_dust2"))
	assert.Equal(t, "Cache", MapLabel("de_cache"))
	assert.Equal(t, "Stockholm", RegionLabel("stockholm"))
	assert.Equal(t, "mars", RegionLabel("mars"))
}
