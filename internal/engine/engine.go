// Package engine holds the pure game state machine. Apply takes the current
// session state and one command, and returns the outbound notifications the
// command produced together with the next state. It never blocks and holds
// no locks; serialization is the room actor's job.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"unicode/utf8"
)

// Error categories. ErrValidation covers malformed requests that never touch
// state; ErrForbidden covers protocol violations (acting out of turn or
// without entitlement). Both are reported to the originator only.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("not allowed")
)

var (
	ErrNameLength       = fmt.Errorf("%w: name must be 1-20 characters", ErrValidation)
	ErrNameTaken        = fmt.Errorf("%w: name already taken in this room", ErrValidation)
	ErrRoomFull         = fmt.Errorf("%w: room is full", ErrValidation)
	ErrGameStarted      = fmt.Errorf("%w: game already started", ErrValidation)
	ErrNotEnoughPlayers = fmt.Errorf("%w: at least 5 players are needed", ErrValidation)
	ErrUnknownPlayer    = fmt.Errorf("%w: no such player", ErrValidation)
	ErrTeamFull         = fmt.Errorf("%w: team already has enough players", ErrValidation)
	ErrTeamIncomplete   = fmt.Errorf("%w: team is not complete", ErrValidation)
	ErrAlreadyOnTeam    = fmt.Errorf("%w: player is already on the team", ErrValidation)
	ErrNotOnTeam        = fmt.Errorf("%w: player is not on the team", ErrValidation)

	ErrWrongPhase   = fmt.Errorf("%w: not available in the current phase", ErrForbidden)
	ErrGameOver     = fmt.Errorf("%w: the game is over", ErrForbidden)
	ErrNotHost      = fmt.Errorf("%w: only the host can do that", ErrForbidden)
	ErrNotLeader    = fmt.Errorf("%w: only the quest leader can do that", ErrForbidden)
	ErrNotOnQuest   = fmt.Errorf("%w: only quest members vote on the outcome", ErrForbidden)
	ErrNotAssassin  = fmt.Errorf("%w: only the Assassin can do that", ErrForbidden)
	ErrAlreadyVoted = fmt.Errorf("%w: vote already recorded", ErrForbidden)

	ErrUnsupportedCommand = errors.New("unsupported command")
)

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdDisconnect     CommandType = "Disconnect"
	CmdStartGame      CommandType = "StartGame"
	CmdAddToTeam      CommandType = "AddPlayerToQuest"
	CmdRemoveFromTeam CommandType = "RemovePlayerFromQuest"
	CmdConfirmTeam    CommandType = "ConfirmTeam"
	CmdTeamVote       CommandType = "TeamVote"
	CmdQuestVote      CommandType = "QuestVote"
	CmdAssassinate    CommandType = "Assassinate"
)

type Command struct {
	Type          CommandType
	ConnID        string // originating connection
	Name          string // join: display name
	Target        string // team mutation / assassination target
	Approve       bool   // team vote decision
	Success       bool   // quest vote decision
	OptionalRoles []Role
	ChallengeMode bool
	Seed          int64 // start: role shuffle seed
}

type EventType string

const (
	EvtRoster          EventType = "RosterUpdate"
	EvtHostCanStart    EventType = "HostCanStart"
	EvtRoleCatalog     EventType = "RoleCatalog"
	EvtRoleReveal      EventType = "RoleReveal"
	EvtQuestState      EventType = "QuestState"
	EvtTeamConfirmable EventType = "TeamConfirmable"
	EvtAssassinPrompt  EventType = "AssassinPrompt"
	EvtVoteProgress    EventType = "VoteProgress"
	EvtVoteReveal      EventType = "VoteReveal"
	EvtQuestOutcome    EventType = "QuestOutcome"
	EvtGameOver        EventType = "GameOver"
)

// Event is one outbound notification. To names the unicast recipient by
// player name; empty means broadcast to the room. EvtRoster carries no
// payload because the roster is projected per viewer at fan-out time.
type Event struct {
	Type     EventType
	To       string
	Message  string
	Catalog  *Catalog
	Reveal   *RoleReveal
	Quest    *QuestView
	Progress *VoteProgress
	Ballots  *VoteReveal
	Outcome  *QuestOutcome
	Over     *GameOver
}

// Apply runs one command against the session. On error the returned state
// is the input state, untouched.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdDisconnect:
		return applyDisconnect(s, cmd)
	case CmdStartGame:
		return applyStart(s, cmd)
	case CmdAddToTeam:
		return applyTeamEdit(s, cmd, true)
	case CmdRemoveFromTeam:
		return applyTeamEdit(s, cmd, false)
	case CmdConfirmTeam:
		return applyConfirmTeam(s, cmd)
	case CmdTeamVote:
		return applyTeamVote(s, cmd)
	case CmdQuestVote:
		return applyQuestVote(s, cmd)
	case CmdAssassinate:
		return applyAssassinate(s, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyJoin(s State, cmd Command) ([]Event, State, error) {
	if n := utf8.RuneCountInString(cmd.Name); n < 1 || n > MaxNameLen {
		return nil, s, ErrNameLength
	}
	if i := s.findPlayer(cmd.Name); i >= 0 {
		// Joining a started room under the name of a dropped player is a
		// reconnect, never a fresh roster entry.
		if s.Started && s.Players[i].Disconnected {
			return applyReconnect(s, i, cmd.ConnID)
		}
		return nil, s, ErrNameTaken
	}
	if s.Started {
		return nil, s, ErrGameStarted
	}
	if len(s.Players) >= MaxPlayers {
		return nil, s, ErrRoomFull
	}

	s.Players = append(s.Players, Player{Name: cmd.Name, ConnID: cmd.ConnID})
	events := []Event{{Type: EvtRoster}}
	if len(s.Players) >= MinPlayers {
		events = append(events, Event{
			Type:    EvtHostCanStart,
			To:      s.Players[0].Name,
			Message: fmt.Sprintf("%d players in the room, the game can be started", len(s.Players)),
		})
	}
	return events, s, nil
}

// applyReconnect swaps the connection identity of a dropped player and
// resyncs them. Their vote and quest flags are left exactly as they were.
func applyReconnect(s State, i int, connID string) ([]Event, State, error) {
	s.Players[i].ConnID = connID
	s.Players[i].Disconnected = false

	p := s.Players[i]
	reveal := revealFor(s, p)
	qv := QuestStateView(s)
	return []Event{
		{Type: EvtRoster},
		{Type: EvtRoleReveal, To: p.Name, Reveal: &reveal},
		{Type: EvtQuestState, To: p.Name, Quest: &qv},
	}, s, nil
}

func applyDisconnect(s State, cmd Command) ([]Event, State, error) {
	i := s.findConn(cmd.ConnID)
	if i < 0 {
		return nil, s, nil
	}
	if !s.Started {
		s.Players = slices.Delete(s.Players, i, i+1)
	} else {
		s.Players[i].Disconnected = true
	}
	return []Event{{Type: EvtRoster}}, s, nil
}

func applyStart(s State, cmd Command) ([]Event, State, error) {
	if s.Started {
		return nil, s, ErrGameStarted
	}
	if len(s.Players) == 0 || s.Players[0].ConnID != cmd.ConnID {
		return nil, s, ErrNotHost
	}
	if len(s.Players) < MinPlayers {
		return nil, s, ErrNotEnoughPlayers
	}
	good, evil, err := BuildRoleSet(cmd.OptionalRoles, len(s.Players))
	if err != nil {
		return nil, s, err
	}

	rng := rand.New(rand.NewSource(cmd.Seed))
	deck := append(append(make([]Role, 0, len(good)+len(evil)), good...), evil...)
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	for i := range s.Players {
		s.Players[i].Role = deck[i]
		s.Players[i].Alignment = deck[i].Alignment()
	}

	schedule := questSchedules[len(s.Players)]
	s.Quests = make([]Quest, QuestCount)
	for i, req := range schedule {
		s.Quests[i] = Quest{Number: i + 1, TeamSize: req.TeamSize, FailsRequired: req.FailsRequired}
	}
	s.LeaderIndex = rng.Intn(len(s.Players))
	s.Quests[0].Leader = s.Players[s.LeaderIndex].Name
	s.Current = 0
	s.Started = true
	s.ChallengeMode = cmd.ChallengeMode
	s.GoodRoles, s.EvilRoles = good, evil
	s.History = nil
	s.Phase = PhaseProposing

	catalog := CatalogView(s)
	events := []Event{{Type: EvtRoleCatalog, Catalog: &catalog}}
	for _, p := range s.Players {
		reveal := revealFor(s, p)
		events = append(events, Event{Type: EvtRoleReveal, To: p.Name, Reveal: &reveal})
	}
	qv := QuestStateView(s)
	events = append(events, Event{Type: EvtQuestState, Quest: &qv})
	return events, s, nil
}

func applyTeamEdit(s State, cmd Command, add bool) ([]Event, State, error) {
	if err := s.requirePhase(PhaseProposing); err != nil {
		return nil, s, err
	}
	if s.Players[s.LeaderIndex].ConnID != cmd.ConnID {
		return nil, s, ErrNotLeader
	}
	if s.findPlayer(cmd.Target) < 0 {
		return nil, s, ErrUnknownPlayer
	}

	q := &s.Quests[s.Current]
	if add {
		if slices.Contains(q.Team, cmd.Target) {
			return nil, s, ErrAlreadyOnTeam
		}
		if len(q.Team) >= q.TeamSize {
			return nil, s, ErrTeamFull
		}
		q.Team = append(q.Team, cmd.Target)
	} else {
		i := slices.Index(q.Team, cmd.Target)
		if i < 0 {
			return nil, s, ErrNotOnTeam
		}
		q.Team = slices.Delete(q.Team, i, i+1)
	}

	qv := QuestStateView(s)
	events := []Event{{Type: EvtQuestState, Quest: &qv}}
	if len(q.Team) == q.TeamSize {
		// Confirmation stays a separate, explicit leader action.
		events = append(events, Event{
			Type:    EvtTeamConfirmable,
			To:      q.Leader,
			Message: "team is full, confirm it to start the vote",
		})
	}
	return events, s, nil
}

func applyConfirmTeam(s State, cmd Command) ([]Event, State, error) {
	if err := s.requirePhase(PhaseProposing); err != nil {
		return nil, s, err
	}
	if s.Players[s.LeaderIndex].ConnID != cmd.ConnID {
		return nil, s, ErrNotLeader
	}
	q := &s.Quests[s.Current]
	if len(q.Team) != q.TeamSize {
		return nil, s, ErrTeamIncomplete
	}

	q.TeamVotes = make(map[string]bool, len(s.Players))
	s.Phase = PhaseTeamVote
	qv := QuestStateView(s)
	return []Event{{Type: EvtQuestState, Quest: &qv}}, s, nil
}

func applyTeamVote(s State, cmd Command) ([]Event, State, error) {
	if err := s.requirePhase(PhaseTeamVote); err != nil {
		return nil, s, err
	}
	i := s.findConn(cmd.ConnID)
	if i < 0 {
		return nil, s, ErrUnknownPlayer
	}
	if s.Players[i].VotedOnTeam {
		return nil, s, ErrAlreadyVoted
	}

	q := &s.Quests[s.Current]
	q.TeamVotes[s.Players[i].Name] = cmd.Approve
	s.Players[i].VotedOnTeam = true

	events := []Event{{Type: EvtVoteProgress, Progress: &VoteProgress{
		Kind:   "team",
		Voted:  voterNames(q.TeamVotes),
		Needed: len(s.Players),
	}}}
	if len(q.TeamVotes) < len(s.Players) {
		return events, s, nil
	}

	// Quorum reached: reveal the full tally to everyone.
	accepts, rejects := splitVotes(q.TeamVotes)
	for i := range s.Players {
		s.Players[i].VotedOnTeam = false
	}

	// Ties reject: rejects >= playerCount/2 sinks the proposal.
	if len(rejects) >= len(s.Players)/2 {
		q.VoteTrack++
		events = append(events, Event{Type: EvtVoteReveal, Ballots: &VoteReveal{
			Quest:     q.Number,
			Accepts:   accepts,
			Rejects:   rejects,
			VoteTrack: q.VoteTrack,
		}})
		if q.VoteTrack > MaxVoteTrack {
			return endGame(events, s, AlignmentEvil, "too many rejected team proposals", nil)
		}
		q.Team = nil
		q.TeamVotes = nil
		s.LeaderIndex = s.nextLeader(s.LeaderIndex)
		q.Leader = s.Players[s.LeaderIndex].Name
		s.Phase = PhaseProposing
		qv := QuestStateView(s)
		return append(events, Event{Type: EvtQuestState, Quest: &qv}), s, nil
	}

	events = append(events, Event{Type: EvtVoteReveal, Ballots: &VoteReveal{
		Quest:     q.Number,
		Accepts:   accepts,
		Rejects:   rejects,
		Accepted:  true,
		VoteTrack: q.VoteTrack,
	}})
	for _, name := range q.Team {
		s.Players[s.findPlayer(name)].OnQuest = true
	}
	q.QuestVotes = make(map[string]bool, q.TeamSize)
	s.Phase = PhaseQuestVote
	qv := QuestStateView(s)
	return append(events, Event{Type: EvtQuestState, Quest: &qv}), s, nil
}

func applyQuestVote(s State, cmd Command) ([]Event, State, error) {
	if err := s.requirePhase(PhaseQuestVote); err != nil {
		return nil, s, err
	}
	i := s.findConn(cmd.ConnID)
	if i < 0 {
		return nil, s, ErrUnknownPlayer
	}
	if !s.Players[i].OnQuest {
		return nil, s, ErrNotOnQuest
	}
	if s.Players[i].VotedOnQuest {
		return nil, s, ErrAlreadyVoted
	}

	q := &s.Quests[s.Current]
	q.QuestVotes[s.Players[i].Name] = cmd.Success
	s.Players[i].VotedOnQuest = true

	events := []Event{{Type: EvtVoteProgress, Progress: &VoteProgress{
		Kind:   "quest",
		Voted:  voterNames(q.QuestVotes),
		Needed: q.TeamSize,
	}}}
	if len(q.QuestVotes) < q.TeamSize {
		return events, s, nil
	}

	fails := 0
	for _, success := range q.QuestVotes {
		if !success {
			fails++
		}
	}
	if fails >= q.FailsRequired {
		q.Result = QuestFailed
	} else {
		q.Result = QuestSucceeded
	}
	for i := range s.Players {
		s.Players[i].OnQuest = false
		s.Players[i].VotedOnQuest = false
	}

	shownFails := fails
	if s.ChallengeMode {
		shownFails = -1
	}
	s.History = append(s.History, QuestSummary{
		Number: q.Number,
		Result: q.Result,
		Team:   slices.Clone(q.Team),
		Fails:  shownFails,
	})
	events = append(events, Event{Type: EvtQuestOutcome, Outcome: &QuestOutcome{
		Number:  q.Number,
		Result:  q.Result,
		Fails:   shownFails,
		History: s.History,
	}})

	successes, failures := Tally(s)
	switch {
	case failures >= 3:
		return endGame(events, s, AlignmentEvil, "three quests failed", nil)
	case successes >= 3:
		s.Phase = PhaseAssassination
		qv := QuestStateView(s)
		events = append(events, Event{Type: EvtQuestState, Quest: &qv})
		if a := s.findRole(RoleAssassin); a >= 0 {
			events = append(events, Event{
				Type:    EvtAssassinPrompt,
				To:      s.Players[a].Name,
				Message: "three quests succeeded, pick your target",
			})
		}
		return events, s, nil
	default:
		s.Current++
		s.LeaderIndex = s.nextLeader(s.LeaderIndex)
		s.Quests[s.Current].Leader = s.Players[s.LeaderIndex].Name
		s.Phase = PhaseProposing
		qv := QuestStateView(s)
		return append(events, Event{Type: EvtQuestState, Quest: &qv}), s, nil
	}
}

func applyAssassinate(s State, cmd Command) ([]Event, State, error) {
	if err := s.requirePhase(PhaseAssassination); err != nil {
		return nil, s, err
	}
	i := s.findConn(cmd.ConnID)
	if i < 0 {
		return nil, s, ErrUnknownPlayer
	}
	if s.Players[i].Role != RoleAssassin {
		return nil, s, ErrNotAssassin
	}
	ti := s.findPlayer(cmd.Target)
	if ti < 0 {
		return nil, s, ErrUnknownPlayer
	}

	winner, reason := AlignmentGood, "the Assassin missed Merlin"
	if s.Players[ti].Role == RoleMerlin {
		winner, reason = AlignmentEvil, "the Assassin found Merlin"
	}
	return endGame(nil, s, winner, reason, func(over *GameOver) {
		over.Assassin = s.Players[i].Name
		over.Target = cmd.Target
	})
}

func endGame(events []Event, s State, winner Alignment, reason string, fill func(*GameOver)) ([]Event, State, error) {
	s.Phase = PhaseDone
	s.Winner = winner
	over := GameOver{Winner: winner, Reason: reason, Roles: identities(s)}
	if m := s.findRole(RoleMerlin); m >= 0 {
		over.Merlin = s.Players[m].Name
	}
	if fill != nil {
		fill(&over)
	}
	events = append(events, Event{Type: EvtGameOver, Over: &over})
	// Everyone's identity is public now; refresh the roster views.
	return append(events, Event{Type: EvtRoster}), s, nil
}

func voterNames(votes map[string]bool) []string {
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func splitVotes(votes map[string]bool) (yes, no []string) {
	for name, v := range votes {
		if v {
			yes = append(yes, name)
		} else {
			no = append(no, name)
		}
	}
	slices.Sort(yes)
	slices.Sort(no)
	return yes, no
}
