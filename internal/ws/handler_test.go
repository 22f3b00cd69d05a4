package ws

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mpetrov/avalon-backend/internal/engine"
	"github.com/mpetrov/avalon-backend/internal/types"
)

func TestToCommand(t *testing.T) {
	cases := []struct {
		name string
		msg  types.ClientMessage
		want engine.Command
		ok   bool
	}{
		{
			name: "add player",
			msg:  types.ClientMessage{Type: "AddPlayerToQuest", Target: "bob"},
			want: engine.Command{Type: engine.CmdAddToTeam, ConnID: "c1", Target: "bob"},
			ok:   true,
		},
		{
			name: "remove player",
			msg:  types.ClientMessage{Type: "RemovePlayerFromQuest", Target: "bob"},
			want: engine.Command{Type: engine.CmdRemoveFromTeam, ConnID: "c1", Target: "bob"},
			ok:   true,
		},
		{
			name: "confirm team",
			msg:  types.ClientMessage{Type: "ConfirmTeam"},
			want: engine.Command{Type: engine.CmdConfirmTeam, ConnID: "c1"},
			ok:   true,
		},
		{
			name: "approve team",
			msg:  types.ClientMessage{Type: "TeamVote", Decision: "approve"},
			want: engine.Command{Type: engine.CmdTeamVote, ConnID: "c1", Approve: true},
			ok:   true,
		},
		{
			name: "reject team",
			msg:  types.ClientMessage{Type: "TeamVote", Decision: "reject"},
			want: engine.Command{Type: engine.CmdTeamVote, ConnID: "c1"},
			ok:   true,
		},
		{
			name: "fail quest",
			msg:  types.ClientMessage{Type: "QuestVote", Decision: "fail"},
			want: engine.Command{Type: engine.CmdQuestVote, ConnID: "c1"},
			ok:   true,
		},
		{
			name: "assassinate",
			msg:  types.ClientMessage{Type: "Assassinate", Target: "merlin?"},
			want: engine.Command{Type: engine.CmdAssassinate, ConnID: "c1", Target: "merlin?"},
			ok:   true,
		},
		{
			name: "team vote with bogus decision",
			msg:  types.ClientMessage{Type: "TeamVote", Decision: "maybe"},
			ok:   false,
		},
		{
			name: "quest vote with team decision",
			msg:  types.ClientMessage{Type: "QuestVote", Decision: "approve"},
			ok:   false,
		},
		{
			name: "unknown type",
			msg:  types.ClientMessage{Type: "CastFireball"},
			ok:   false,
		},
		{
			name: "handshake types are not commands",
			msg:  types.ClientMessage{Type: "JoinRoom", Name: "bob", RoomCode: "1234"},
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, ok := toCommand(tc.msg, "c1")
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, cmd)
			}
		})
	}
}

func TestToCommandStartGame(t *testing.T) {
	cmd, ok := toCommand(types.ClientMessage{
		Type:          "StartGame",
		OptionalRoles: []string{"Percival", "Morgana"},
		ChallengeMode: true,
	}, "host")

	require.True(t, ok)
	require.Equal(t, engine.CmdStartGame, cmd.Type)
	require.Equal(t, "host", cmd.ConnID)
	require.Equal(t, []engine.Role{engine.RolePercival, engine.RoleMorgana}, cmd.OptionalRoles)
	require.True(t, cmd.ChallengeMode)
	require.NotZero(t, cmd.Seed)
}

func TestParseDecision(t *testing.T) {
	v, ok := parseDecision("approve", "approve", "reject")
	require.True(t, ok)
	require.True(t, v)

	v, ok = parseDecision("reject", "approve", "reject")
	require.True(t, ok)
	require.False(t, v)

	_, ok = parseDecision("", "approve", "reject")
	require.False(t, ok)
}
