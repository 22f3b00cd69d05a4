package engine

import "slices"

// PlayerView is one roster entry as a specific viewer is allowed to see it.
type PlayerView struct {
	Name         string    `json:"name"`
	Host         bool      `json:"host"`
	Leader       bool      `json:"leader,omitempty"`
	Disconnected bool      `json:"disconnected,omitempty"`
	OnQuest      bool      `json:"on_quest,omitempty"`
	VotedOnTeam  bool      `json:"voted_on_team,omitempty"`
	Alignment    Alignment `json:"alignment,omitempty"`
	Role         Role      `json:"role,omitempty"`
}

// Catalog is the public breakdown of which identities are in play. It never
// maps a role onto a player.
type Catalog struct {
	Good []Role `json:"good"`
	Evil []Role `json:"evil"`
}

// RoleReveal is a player's private identity plus whatever the ruleset lets
// them see of others. SeesAs says what the listed names look like to them:
// evil players and Merlin see "evil", Percival sees two indistinguishable
// "merlin" candidates.
type RoleReveal struct {
	Role      Role      `json:"role"`
	Alignment Alignment `json:"alignment"`
	Sees      []string  `json:"sees,omitempty"`
	SeesAs    string    `json:"sees_as,omitempty"`
}

type QuestView struct {
	Number        int            `json:"number"`
	Phase         Phase          `json:"phase"`
	Leader        string         `json:"leader,omitempty"`
	TeamSize      int            `json:"team_size"`
	FailsRequired int            `json:"fails_required"`
	Team          []string       `json:"team"`
	PlayersNeeded int            `json:"players_needed"`
	VoteTrack     int            `json:"vote_track"`
	Successes     int            `json:"successes"`
	Fails         int            `json:"fails"`
	History       []QuestSummary `json:"history,omitempty"`
}

type VoteProgress struct {
	Kind   string   `json:"kind"` // "team" | "quest"
	Voted  []string `json:"voted"`
	Needed int      `json:"needed"`
}

type VoteReveal struct {
	Quest     int      `json:"quest"`
	Accepts   []string `json:"accepts"`
	Rejects   []string `json:"rejects"`
	Accepted  bool     `json:"accepted"`
	VoteTrack int      `json:"vote_track"`
}

type QuestOutcome struct {
	Number  int            `json:"number"`
	Result  QuestResult    `json:"result"`
	Fails   int            `json:"fails"` // -1 when hidden by challenge mode
	History []QuestSummary `json:"history"`
}

type PlayerIdentity struct {
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Alignment Alignment `json:"alignment"`
}

type GameOver struct {
	Winner   Alignment        `json:"winner"`
	Reason   string           `json:"reason"`
	Assassin string           `json:"assassin,omitempty"`
	Target   string           `json:"target,omitempty"`
	Merlin   string           `json:"merlin,omitempty"`
	Roles    []PlayerIdentity `json:"roles"`
}

// revealFor computes a player's private identity view per the visibility
// rules: evil players (except Oberon) know each other, Merlin knows the
// evil players except Mordred, Percival sees Merlin and Morgana without
// knowing which is which.
func revealFor(s State, p Player) RoleReveal {
	r := RoleReveal{Role: p.Role, Alignment: p.Alignment}
	switch {
	case p.Alignment == AlignmentEvil && p.Role != RoleOberon:
		for _, other := range s.Players {
			if other.Name == p.Name {
				continue
			}
			if other.Alignment == AlignmentEvil && other.Role != RoleOberon {
				r.Sees = append(r.Sees, other.Name)
			}
		}
		r.SeesAs = "evil"
	case p.Role == RoleMerlin:
		for _, other := range s.Players {
			if other.Alignment == AlignmentEvil && other.Role != RoleMordred {
				r.Sees = append(r.Sees, other.Name)
			}
		}
		r.SeesAs = "evil"
	case p.Role == RolePercival:
		for _, other := range s.Players {
			if other.Role == RoleMerlin || other.Role == RoleMorgana {
				r.Sees = append(r.Sees, other.Name)
			}
		}
		r.SeesAs = "merlin"
	}
	slices.Sort(r.Sees)
	return r
}

// RosterView projects the roster for one viewer. It is computed fresh on
// every roster broadcast; no per-viewer copy is ever stored. An empty or
// unknown viewer gets the fully public projection.
func RosterView(s State, viewer string) []PlayerView {
	var knownEvil map[string]bool
	if vi := s.findPlayer(viewer); vi >= 0 && s.Started {
		if reveal := revealFor(s, s.Players[vi]); reveal.SeesAs == "evil" {
			knownEvil = make(map[string]bool, len(reveal.Sees))
			for _, n := range reveal.Sees {
				knownEvil[n] = true
			}
		}
	}

	out := make([]PlayerView, len(s.Players))
	for i, p := range s.Players {
		pv := PlayerView{
			Name:         p.Name,
			Host:         i == 0,
			Leader:       s.Started && s.Phase != PhaseDone && i == s.LeaderIndex,
			Disconnected: p.Disconnected,
			OnQuest:      p.OnQuest,
			VotedOnTeam:  p.VotedOnTeam,
		}
		switch {
		case s.Phase == PhaseDone || (s.Started && p.Name == viewer):
			pv.Alignment = p.Alignment
			pv.Role = p.Role
		case knownEvil[p.Name]:
			pv.Alignment = AlignmentEvil
		}
		out[i] = pv
	}
	return out
}

func CatalogView(s State) Catalog {
	return Catalog{Good: slices.Clone(s.GoodRoles), Evil: slices.Clone(s.EvilRoles)}
}

// QuestStateView summarizes the current quest for broadcast. Everything in
// it is public knowledge.
func QuestStateView(s State) QuestView {
	successes, fails := Tally(s)
	qv := QuestView{Phase: s.Phase, Successes: successes, Fails: fails, History: s.History}
	if !s.Started || len(s.Quests) == 0 {
		return qv
	}
	q := s.Quests[s.Current]
	qv.Number = q.Number
	qv.Leader = q.Leader
	qv.TeamSize = q.TeamSize
	qv.FailsRequired = q.FailsRequired
	qv.Team = slices.Clone(q.Team)
	qv.PlayersNeeded = q.TeamSize - len(q.Team)
	qv.VoteTrack = q.VoteTrack
	return qv
}

func identities(s State) []PlayerIdentity {
	out := make([]PlayerIdentity, len(s.Players))
	for i, p := range s.Players {
		out[i] = PlayerIdentity{Name: p.Name, Role: p.Role, Alignment: p.Alignment}
	}
	return out
}
