package models

import "strings"

// Participant is a chat user as seen by the queue.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Player links a chat user to their external game identity (SteamID64).
type Player struct {
	UserID  string `json:"user_id"`
	SteamID string `json:"steam_id"`
}

// PlayerStats are the historical aggregates a Rating is derived from.
type PlayerStats struct {
	UserID       string `json:"user_id"`
	SteamID      string `json:"steam_id"`
	Kills        int    `json:"kills"`
	Deaths       int    `json:"deaths"`
	Assists      int    `json:"assists"`
	MVPs         int    `json:"mvps"`
	Headshots    int    `json:"headshots"`
	K2           int    `json:"k2"`
	K3           int    `json:"k3"`
	K4           int    `json:"k4"`
	K5           int    `json:"k5"`
	Score        int    `json:"score"`
	RoundsPlayed int    `json:"rounds_played"`
	Wins         int    `json:"wins"`
	TotalMatches int    `json:"total_matches"`
}

// steamIDPrefix starts every individual-account SteamID64.
const steamIDPrefix = "7656119"

// ValidSteamID reports whether s looks like an individual SteamID64.
func ValidSteamID(s string) bool {
	if len(s) != 17 || !strings.HasPrefix(s, steamIDPrefix) {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
