package types

import "github.com/mpetrov/avalon-backend/internal/engine"

type ClientMessage struct {
	Type          string   `json:"type"`
	Name          string   `json:"name,omitempty"`
	RoomCode      string   `json:"room_code,omitempty"`
	Target        string   `json:"target,omitempty"`
	Decision      string   `json:"decision,omitempty"` // approve|reject or success|fail
	OptionalRoles []string `json:"optional_roles,omitempty"`
	ChallengeMode bool     `json:"challenge_mode,omitempty"`
}

type ServerMessage struct {
	Type     string               `json:"type"`
	Version  int                  `json:"version,omitempty"`
	RoomCode string               `json:"room_code,omitempty"`
	Message  string               `json:"message,omitempty"`
	Error    string               `json:"error,omitempty"`
	Code     string               `json:"code,omitempty"` // "validation" | "forbidden" | "internal"
	Roster   []engine.PlayerView  `json:"roster,omitempty"`
	Catalog  *engine.Catalog      `json:"catalog,omitempty"`
	Reveal   *engine.RoleReveal   `json:"reveal,omitempty"`
	Quest    *engine.QuestView    `json:"quest,omitempty"`
	Progress *engine.VoteProgress `json:"progress,omitempty"`
	Ballots  *engine.VoteReveal   `json:"ballots,omitempty"`
	Outcome  *engine.QuestOutcome `json:"outcome,omitempty"`
	Over     *engine.GameOver     `json:"game_over,omitempty"`
}
