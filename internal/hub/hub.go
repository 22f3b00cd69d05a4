// Package hub owns the room-code table. It is the sole authority on which
// rooms exist: code generation, collision checks and registration all happen
// inside its loop, so two concurrent creates can never race on a code.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"go.uber.org/zap"

	"github.com/mpetrov/avalon-backend/internal/room"
)

// ErrCodeSpaceExhausted is returned when no free room code can be found.
// Not expected in practice.
var ErrCodeSpaceExhausted = errors.New("no free room codes")

const codeAttempts = 32

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Reply chan CreateReply
}

type CreateReply struct {
	Code string
	Room *room.Room
	Err  error
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				code, err := h.freeCode()
				if err != nil {
					msg.Reply <- CreateReply{Err: err}
					break
				}
				rm := room.NewRoom(h.ctx, code, h.log.Named("room").With(zap.String("code", code)))
				h.rooms[code] = rm
				h.log.Info("room created", zap.String("code", code))
				msg.Reply <- CreateReply{Code: code, Room: rm}

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				if rm, ok := h.rooms[msg.Code]; ok {
					rm.Inbox() <- room.Shutdown{}
					delete(h.rooms, msg.Code)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Inbox() <- room.Shutdown{}
	}
	clear(h.rooms)
	h.cancel()
}

// freeCode draws 4-digit numeric codes until one is unused.
func (h *Hub) freeCode() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func generateCode() (string, error) {
	const digits = "0123456789"

	code := make([]byte, 4)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}
