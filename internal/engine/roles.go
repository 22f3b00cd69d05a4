package engine

import (
	"fmt"
	"slices"
)

type Alignment string

const (
	AlignmentGood Alignment = "good"
	AlignmentEvil Alignment = "evil"
)

type Role string

const (
	RoleMerlin   Role = "Merlin"
	RolePercival Role = "Percival"
	RoleServant  Role = "Loyal Servant"
	RoleAssassin Role = "Assassin"
	RoleMorgana  Role = "Morgana"
	RoleMordred  Role = "Mordred"
	RoleOberon   Role = "Oberon"
	RoleMinion   Role = "Minion of Mordred"
)

func (r Role) Alignment() Alignment {
	switch r {
	case RoleAssassin, RoleMorgana, RoleMordred, RoleOberon, RoleMinion:
		return AlignmentEvil
	default:
		return AlignmentGood
	}
}

const (
	MinPlayers   = 5
	MaxPlayers   = 10
	QuestCount   = 5
	MaxVoteTrack = 5
	MaxNameLen   = 20
)

// Evil party size by roster size.
var evilCounts = map[int]int{5: 2, 6: 2, 7: 3, 8: 3, 9: 3, 10: 4}

type QuestRequirement struct {
	TeamSize      int
	FailsRequired int
}

// Quest schedule by roster size. The fourth quest needs two fail votes
// from seven players up.
var questSchedules = map[int][QuestCount]QuestRequirement{
	5:  {{2, 1}, {3, 1}, {2, 1}, {3, 1}, {3, 1}},
	6:  {{2, 1}, {3, 1}, {4, 1}, {3, 1}, {4, 1}},
	7:  {{2, 1}, {3, 1}, {3, 1}, {4, 2}, {4, 1}},
	8:  {{3, 1}, {4, 1}, {4, 1}, {5, 2}, {5, 1}},
	9:  {{3, 1}, {4, 1}, {4, 1}, {5, 2}, {5, 1}},
	10: {{3, 1}, {4, 1}, {4, 1}, {5, 2}, {5, 1}},
}

var optionalRoles = []Role{RolePercival, RoleMorgana, RoleMordred, RoleOberon}

// BuildRoleSet expands Merlin, the Assassin and the opted-in optional
// characters into the full good/evil role lists for a roster of the given
// size, padding with vanilla servants and minions.
func BuildRoleSet(optional []Role, players int) (good, evil []Role, err error) {
	evilSlots, ok := evilCounts[players]
	if !ok {
		return nil, nil, fmt.Errorf("%w: game needs %d-%d players", ErrValidation, MinPlayers, MaxPlayers)
	}
	goodSlots := players - evilSlots

	good = []Role{RoleMerlin}
	evil = []Role{RoleAssassin}

	seen := map[Role]bool{}
	for _, r := range optional {
		if !slices.Contains(optionalRoles, r) {
			return nil, nil, fmt.Errorf("%w: %q is not an optional character", ErrValidation, r)
		}
		if seen[r] {
			return nil, nil, fmt.Errorf("%w: %q selected twice", ErrValidation, r)
		}
		seen[r] = true
		if r.Alignment() == AlignmentGood {
			good = append(good, r)
		} else {
			evil = append(evil, r)
		}
	}

	if seen[RoleMorgana] && !seen[RolePercival] {
		return nil, nil, fmt.Errorf("%w: Morgana requires Percival", ErrValidation)
	}
	if seen[RoleOberon] && players < 7 {
		return nil, nil, fmt.Errorf("%w: Oberon requires at least 7 players", ErrValidation)
	}
	if len(evil) > evilSlots {
		return nil, nil, fmt.Errorf("%w: too many evil characters for %d players (%d slots)", ErrValidation, players, evilSlots)
	}
	if len(good) > goodSlots {
		return nil, nil, fmt.Errorf("%w: too many good characters for %d players (%d slots)", ErrValidation, players, goodSlots)
	}

	for len(good) < goodSlots {
		good = append(good, RoleServant)
	}
	for len(evil) < evilSlots {
		evil = append(evil, RoleMinion)
	}
	return good, evil, nil
}

// ParseRole maps a wire name onto a catalog role.
func ParseRole(name string) (Role, bool) {
	switch Role(name) {
	case RoleMerlin, RolePercival, RoleServant, RoleAssassin, RoleMorgana, RoleMordred, RoleOberon, RoleMinion:
		return Role(name), true
	}
	return "", false
}
