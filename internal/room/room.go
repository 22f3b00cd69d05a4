// Package room runs one actor goroutine per game room. All session
// mutations for a room pass through its inbox one at a time, so the engine
// needs no locks and a reconnect can never interleave with a vote from the
// stale connection.
package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mpetrov/avalon-backend/internal/engine"
	"github.com/mpetrov/avalon-backend/internal/types"
)

type Msg interface{ isRoomMsg() }

// Attach registers a connection's outbox with the room. It carries no game
// semantics; the gateway follows it with a Join command.
type Attach struct {
	ConnID string
	Outbox chan types.ServerMessage
}

func (Attach) isRoomMsg() {}

// Detach removes a connection and applies the disconnect semantics: players
// of a started game are marked disconnected, lobby players are deleted.
type Detach struct{ ConnID string }

func (Detach) isRoomMsg() {}

type FromClient struct {
	ConnID string
	Cmd    engine.Command
}

func (FromClient) isRoomMsg() {}

// Malformed reports a wire-level decode failure so the error notice flows
// through the same outbox as everything else.
type Malformed struct {
	ConnID string
	Reason string
}

func (Malformed) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

// View reflects internal state for tests without data races.
type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type Room struct {
	code    string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan types.ServerMessage
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

func NewRoom(parent context.Context, code string, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		code:    code,
		inbox:   make(chan Msg, 64),
		state:   engine.NewState(code),
		clients: make(map[string]chan types.ServerMessage),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Attach:
				r.clients[msg.ConnID] = msg.Outbox
				msg.Outbox <- types.ServerMessage{Type: "RoomJoined", Version: r.version, RoomCode: r.code}

			case Detach:
				if ch, ok := r.clients[msg.ConnID]; ok {
					close(ch)
					delete(r.clients, msg.ConnID)
				}
				r.apply(engine.Command{Type: engine.CmdDisconnect, ConnID: msg.ConnID}, msg.ConnID)

			case FromClient:
				r.apply(msg.Cmd, msg.ConnID)

			case Malformed:
				r.sendError(msg.ConnID, msg.Reason, "validation")

			case GetState:
				msg.Reply <- View{Version: r.version, NumClients: len(r.clients), State: r.state}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) apply(cmd engine.Command, origin string) {
	events, next, err := engine.Apply(r.state, cmd)
	if err != nil {
		r.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.String("conn", origin),
			zap.Error(err))
		r.sendError(origin, err.Error(), errCode(err))
		return
	}
	r.state = next
	if len(events) == 0 {
		return
	}
	r.version++
	r.deliver(events)
}

// deliver fans events out. Roster updates are projected per viewer at send
// time; unicasts resolve the target player's live connection; everything
// else is broadcast verbatim.
func (r *Room) deliver(events []engine.Event) {
	for _, e := range events {
		if e.Type == engine.EvtRoster {
			for connID, ch := range r.clients {
				msg := types.ServerMessage{
					Type:    string(e.Type),
					Version: r.version,
					Roster:  engine.RosterView(r.state, r.state.ConnName(connID)),
				}
				r.send(connID, ch, msg)
			}
			continue
		}

		msg := toMessage(e, r.version)
		if e.To != "" {
			connID, ok := r.state.PlayerConn(e.To)
			if !ok {
				continue
			}
			if ch, ok := r.clients[connID]; ok {
				r.send(connID, ch, msg)
			}
			continue
		}
		for connID, ch := range r.clients {
			r.send(connID, ch, msg)
		}
	}
}

func (r *Room) send(connID string, ch chan types.ServerMessage, msg types.ServerMessage) {
	select {
	case ch <- msg:
	default:
		// Slow or stuck client; drop it rather than stall the room.
		close(ch)
		delete(r.clients, connID)
		r.log.Warn("dropped slow client", zap.String("conn", connID))
	}
}

func (r *Room) sendError(connID, reason, code string) {
	if ch, ok := r.clients[connID]; ok {
		r.send(connID, ch, types.ServerMessage{
			Type:    "Error",
			Version: r.version,
			Error:   reason,
			Code:    code,
		})
	}
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}

func toMessage(e engine.Event, version int) types.ServerMessage {
	return types.ServerMessage{
		Type:     string(e.Type),
		Version:  version,
		Message:  e.Message,
		Catalog:  e.Catalog,
		Reveal:   e.Reveal,
		Quest:    e.Quest,
		Progress: e.Progress,
		Ballots:  e.Ballots,
		Outcome:  e.Outcome,
		Over:     e.Over,
	}
}

func errCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return "validation"
	case errors.Is(err, engine.ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
