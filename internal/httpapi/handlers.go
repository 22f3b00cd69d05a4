package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mpetrov/avalon-backend/internal/hub"
)

// CreateRoom mints a fresh room over plain HTTP so a UI can show the code
// before opening the websocket. The hub owns code generation.
func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan hub.CreateReply, 1)
		h.Inbox() <- hub.CreateRoom{Reply: reply}
		res := <-reply
		if res.Err != nil {
			log.Error("create room", zap.Error(res.Err))
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: res.Code})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
