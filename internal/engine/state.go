package engine

type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhaseProposing     Phase = "proposing_team"
	PhaseTeamVote      Phase = "team_vote"
	PhaseQuestVote     Phase = "quest_vote"
	PhaseAssassination Phase = "assassination"
	PhaseDone          Phase = "done"
)

type QuestResult string

const (
	QuestUnresolved QuestResult = ""
	QuestSucceeded  QuestResult = "succeeded"
	QuestFailed     QuestResult = "failed"
)

type Player struct {
	Name         string
	ConnID       string // swapped on reconnect
	Alignment    Alignment
	Role         Role
	Disconnected bool
	OnQuest      bool
	VotedOnTeam  bool
	VotedOnQuest bool
}

type Quest struct {
	Number        int
	TeamSize      int
	FailsRequired int
	Leader        string
	Team          []string
	TeamVotes     map[string]bool // name -> approve
	QuestVotes    map[string]bool // name -> success
	VoteTrack     int
	Result        QuestResult
}

type QuestSummary struct {
	Number int         `json:"number"`
	Result QuestResult `json:"result"`
	Team   []string    `json:"team"`
	Fails  int         `json:"fails"` // -1 when hidden by challenge mode
}

// State is the full authoritative session state for one room. Players are
// kept in join order; the first entry is the host.
type State struct {
	Code          string
	Players       []Player
	Started       bool
	ChallengeMode bool
	GoodRoles     []Role
	EvilRoles     []Role
	Quests        []Quest
	Current       int // index into Quests
	LeaderIndex   int // index into Players
	Phase         Phase
	History       []QuestSummary
	Winner        Alignment
}

func NewState(code string) State {
	return State{Code: code, Phase: PhaseLobby}
}

func (s State) findPlayer(name string) int {
	for i, p := range s.Players {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (s State) findConn(connID string) int {
	for i, p := range s.Players {
		if p.ConnID == connID {
			return i
		}
	}
	return -1
}

func (s State) findRole(role Role) int {
	for i, p := range s.Players {
		if p.Role == role {
			return i
		}
	}
	return -1
}

// nextLeader returns the next connected player in join order after from,
// wrapping. If everyone is disconnected it still advances by one so the
// rotation stays total.
func (s State) nextLeader(from int) int {
	n := len(s.Players)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if !s.Players[i].Disconnected {
			return i
		}
	}
	return (from + 1) % n
}

func (s State) requirePhase(want Phase) error {
	if s.Phase == PhaseDone {
		return ErrGameOver
	}
	if s.Phase != want {
		return ErrWrongPhase
	}
	return nil
}

// Tally counts resolved quests by outcome.
func Tally(s State) (successes, fails int) {
	for _, q := range s.Quests {
		switch q.Result {
		case QuestSucceeded:
			successes++
		case QuestFailed:
			fails++
		}
	}
	return successes, fails
}

// ConnName resolves a connection ID to a player name, for log and fan-out
// purposes. Empty when the connection has not joined as a player.
func (s State) ConnName(connID string) string {
	if i := s.findConn(connID); i >= 0 {
		return s.Players[i].Name
	}
	return ""
}

// PlayerConn resolves a player name to their live connection ID.
func (s State) PlayerConn(name string) (string, bool) {
	if i := s.findPlayer(name); i >= 0 && !s.Players[i].Disconnected {
		return s.Players[i].ConnID, true
	}
	return "", false
}
