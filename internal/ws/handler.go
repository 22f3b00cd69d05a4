// Package ws is the protocol gateway: it accepts websocket connections,
// runs the create/join handshake, and translates wire messages into engine
// commands routed through the connection's room actor.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpetrov/avalon-backend/internal/engine"
	"github.com/mpetrov/avalon-backend/internal/hub"
	"github.com/mpetrov/avalon-backend/internal/room"
	"github.com/mpetrov/avalon-backend/internal/types"
)

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		logger := log.With(zap.String("conn", connID))

		rm, name, ok := handshake(r.Context(), conn, h)
		if !ok {
			return
		}
		logger.Info("client joined", zap.String("room", rm.Code()), zap.String("name", name))

		out := make(chan types.ServerMessage, 16)
		rm.Inbox() <- room.Attach{ConnID: connID, Outbox: out}
		defer func() { rm.Inbox() <- room.Detach{ConnID: connID} }()

		// Writer goroutine: the room closes out when it drops or shuts us down.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					logger.Error("marshal outbound", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// The join runs through the room loop so it is ordered with the
		// attach and with everything else in the room.
		rm.Inbox() <- room.FromClient{ConnID: connID, Cmd: engine.Command{
			Type:   engine.CmdJoin,
			ConnID: connID,
			Name:   name,
		}}

		for {
			// No read deadline: gameplay is human-paced and a quiet
			// connection is not an error.
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return // Detach in defer handles disconnect semantics
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				rm.Inbox() <- room.Malformed{ConnID: connID, Reason: "bad json"}
				continue
			}
			cmd, ok := toCommand(cm, connID)
			if !ok {
				rm.Inbox() <- room.Malformed{ConnID: connID, Reason: "unknown or malformed message type"}
				continue
			}
			rm.Inbox() <- room.FromClient{ConnID: connID, Cmd: cmd}
		}
	}
}

// handshake reads messages until the client creates or joins a room.
// Errors are reported on the socket and never close it.
func handshake(ctx context.Context, conn *websocket.Conn, h *hub.Hub) (*room.Room, string, bool) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil, "", false
		}
		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			writeError(ctx, conn, "bad json", "validation")
			continue
		}

		switch cm.Type {
		case "CreateRoom":
			reply := make(chan hub.CreateReply, 1)
			h.Inbox() <- hub.CreateRoom{Reply: reply}
			res := <-reply
			if res.Err != nil {
				writeError(ctx, conn, res.Err.Error(), "internal")
				continue
			}
			return res.Room, cm.Name, true

		case "JoinRoom":
			reply := make(chan *room.Room, 1)
			h.Inbox() <- hub.GetRoom{Code: cm.RoomCode, Reply: reply}
			rm := <-reply
			if rm == nil {
				writeError(ctx, conn, "room not found", "validation")
				continue
			}
			return rm, cm.Name, true

		default:
			writeError(ctx, conn, "create or join a room first", "validation")
		}
	}
}

func toCommand(m types.ClientMessage, connID string) (engine.Command, bool) {
	switch m.Type {
	case "StartGame":
		return engine.Command{
			Type:          engine.CmdStartGame,
			ConnID:        connID,
			OptionalRoles: toRoles(m.OptionalRoles),
			ChallengeMode: m.ChallengeMode,
			Seed:          time.Now().UnixNano(),
		}, true
	case "AddPlayerToQuest":
		return engine.Command{Type: engine.CmdAddToTeam, ConnID: connID, Target: m.Target}, true
	case "RemovePlayerFromQuest":
		return engine.Command{Type: engine.CmdRemoveFromTeam, ConnID: connID, Target: m.Target}, true
	case "ConfirmTeam":
		return engine.Command{Type: engine.CmdConfirmTeam, ConnID: connID}, true
	case "TeamVote":
		approve, ok := parseDecision(m.Decision, "approve", "reject")
		if !ok {
			return engine.Command{}, false
		}
		return engine.Command{Type: engine.CmdTeamVote, ConnID: connID, Approve: approve}, true
	case "QuestVote":
		success, ok := parseDecision(m.Decision, "success", "fail")
		if !ok {
			return engine.Command{}, false
		}
		return engine.Command{Type: engine.CmdQuestVote, ConnID: connID, Success: success}, true
	case "Assassinate":
		return engine.Command{Type: engine.CmdAssassinate, ConnID: connID, Target: m.Target}, true
	default:
		return engine.Command{}, false
	}
}

func parseDecision(decision, positive, negative string) (bool, bool) {
	switch decision {
	case positive:
		return true, true
	case negative:
		return false, true
	default:
		return false, false
	}
}

// toRoles passes role names through unparsed; the engine validates the set.
func toRoles(names []string) []engine.Role {
	roles := make([]engine.Role, len(names))
	for i, n := range names {
		roles[i] = engine.Role(n)
	}
	return roles
}

func writeError(ctx context.Context, conn *websocket.Conn, reason, code string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: reason, Code: code})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
