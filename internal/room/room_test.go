package room

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mpetrov/avalon-backend/internal/engine"
	"github.com/mpetrov/avalon-backend/internal/types"
)

// recvMsg receives one server message with a timeout so tests never hang.
func recvMsg(t *testing.T, ch <-chan types.ServerMessage, within time.Duration) types.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return types.ServerMessage{} // unreachable
	}
}

// recvType skips messages until one of the wanted type arrives.
func recvType(t *testing.T, ch <-chan types.ServerMessage, msgType string) types.ServerMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRoom(ctx, "1234", zaptest.NewLogger(t))
}

// attachAndJoin wires a client channel into the room and joins as name.
func attachAndJoin(t *testing.T, r *Room, connID, name string) chan types.ServerMessage {
	t.Helper()
	out := make(chan types.ServerMessage, 32)
	r.Inbox() <- Attach{ConnID: connID, Outbox: out}
	if ack := recvMsg(t, out, time.Second); ack.Type != "RoomJoined" || ack.RoomCode != "1234" {
		t.Fatalf("expected RoomJoined ack, got %+v", ack)
	}
	r.Inbox() <- FromClient{ConnID: connID, Cmd: engine.Command{
		Type: engine.CmdJoin, ConnID: connID, Name: name,
	}}
	return out
}

func TestRoom_JoinBroadcastsRoster(t *testing.T) {
	r := newTestRoom(t)

	out1 := attachAndJoin(t, r, "c1", "alice")
	roster := recvType(t, out1, "RosterUpdate")
	if len(roster.Roster) != 1 || roster.Roster[0].Name != "alice" || !roster.Roster[0].Host {
		t.Fatalf("unexpected roster %+v", roster.Roster)
	}
	if roster.Version != 1 {
		t.Fatalf("want version 1, got %d", roster.Version)
	}

	out2 := attachAndJoin(t, r, "c2", "bob")
	roster = recvType(t, out2, "RosterUpdate")
	if len(roster.Roster) != 2 {
		t.Fatalf("bob should see both players, got %+v", roster.Roster)
	}
	// alice also sees the updated roster.
	roster = recvType(t, out1, "RosterUpdate")
	if len(roster.Roster) != 2 || roster.Version != 2 {
		t.Fatalf("broadcast missed alice: %+v", roster)
	}
}

func TestRoom_ValidationErrorIsUnicastAndMutatesNothing(t *testing.T) {
	r := newTestRoom(t)
	out1 := attachAndJoin(t, r, "c1", "alice")
	recvType(t, out1, "RosterUpdate")

	out2 := make(chan types.ServerMessage, 32)
	r.Inbox() <- Attach{ConnID: "c2", Outbox: out2}
	recvMsg(t, out2, time.Second)
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: engine.Command{
		Type: engine.CmdJoin, ConnID: "c2", Name: "alice",
	}}

	errMsg := recvMsg(t, out2, time.Second)
	if errMsg.Type != "Error" || errMsg.Code != "validation" {
		t.Fatalf("expected validation error, got %+v", errMsg)
	}

	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, time.Second)
	if len(view.State.Players) != 1 {
		t.Fatalf("failed join must not mutate the roster: %+v", view.State.Players)
	}
	if view.Version != 1 {
		t.Fatalf("version must not advance on error, got %d", view.Version)
	}
}

func TestRoom_ForbiddenErrorCode(t *testing.T) {
	r := newTestRoom(t)
	outs := make(map[string]chan types.ServerMessage)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("c%d", i)
		outs[id] = attachAndJoin(t, r, id, fmt.Sprintf("p%d", i))
	}
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: engine.Command{
		Type: engine.CmdStartGame, ConnID: "c1", Seed: 1,
	}}
	recvType(t, outs["c1"], "QuestState")

	// Voting during team proposal is acting out of turn.
	r.Inbox() <- FromClient{ConnID: "c2", Cmd: engine.Command{
		Type: engine.CmdTeamVote, ConnID: "c2", Approve: true,
	}}
	errMsg := recvType(t, outs["c2"], "Error")
	if errMsg.Code != "forbidden" {
		t.Fatalf("expected forbidden, got %+v", errMsg)
	}
}

func TestRoom_StartDeliversPrivateReveals(t *testing.T) {
	r := newTestRoom(t)
	outs := make(map[string]chan types.ServerMessage)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("c%d", i)
		outs[id] = attachAndJoin(t, r, id, fmt.Sprintf("p%d", i))
	}

	host := recvType(t, outs["c1"], "HostCanStart")
	if host.Message == "" {
		t.Fatalf("host notice should carry a message")
	}

	r.Inbox() <- FromClient{ConnID: "c1", Cmd: engine.Command{
		Type: engine.CmdStartGame, ConnID: "c1", Seed: 1,
	}}

	evil := 0
	for id, out := range outs {
		catalog := recvType(t, out, "RoleCatalog")
		if catalog.Catalog == nil || len(catalog.Catalog.Good) != 3 || len(catalog.Catalog.Evil) != 2 {
			t.Fatalf("%s: bad catalog %+v", id, catalog.Catalog)
		}
		reveal := recvType(t, out, "RoleReveal")
		if reveal.Reveal == nil || reveal.Reveal.Role == "" {
			t.Fatalf("%s: missing private reveal", id)
		}
		if reveal.Reveal.Alignment == engine.AlignmentEvil {
			evil++
		}
		quest := recvType(t, out, "QuestState")
		if quest.Quest.Phase != engine.PhaseProposing || quest.Quest.Number != 1 {
			t.Fatalf("%s: bad quest state %+v", id, quest.Quest)
		}
	}
	if evil != 2 {
		t.Fatalf("each player gets exactly their own reveal; want 2 evil, saw %d", evil)
	}
}

func TestRoom_DetachBeforeStartRemovesPlayer(t *testing.T) {
	r := newTestRoom(t)
	out1 := attachAndJoin(t, r, "c1", "alice")
	recvType(t, out1, "RosterUpdate")
	out2 := attachAndJoin(t, r, "c2", "bob")
	recvType(t, out2, "RosterUpdate")

	r.Inbox() <- Detach{ConnID: "c2"}
	roster := recvType(t, out1, "RosterUpdate")
	if len(roster.Roster) != 1 {
		t.Fatalf("lobby detach should delete the player, got %+v", roster.Roster)
	}
}

func TestRoom_DropSlowClient(t *testing.T) {
	r := newTestRoom(t)

	out := make(chan types.ServerMessage, 1)
	r.Inbox() <- Attach{ConnID: "c1", Outbox: out}
	// The ack fills the buffer; the roster update cannot be delivered.
	r.Inbox() <- FromClient{ConnID: "c1", Cmd: engine.Command{
		Type: engine.CmdJoin, ConnID: "c1", Name: "alice",
	}}

	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, time.Second)
	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestRoom_Shutdown_ClosesOutboxes(t *testing.T) {
	r := newTestRoom(t)
	out := attachAndJoin(t, r, "c1", "alice")
	recvType(t, out, "RosterUpdate")

	r.Inbox() <- Shutdown{}
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return // closed, as expected
			}
		case <-time.After(time.Second):
			t.Fatalf("outbox was not closed on shutdown")
		}
	}
}
