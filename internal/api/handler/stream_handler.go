package handler

import (
	"log"
	"net/http"
	"sync"
	"time"

	"leetclash/internal/app/service"
	"leetclash/internal/common"
	"leetclash/internal/common/security"
	"leetclash/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type streamMessage struct {
	Type  string       `json:"type"` // "snapshot" or "not_found"
	Match *model.Match `json:"match,omitempty"`
}

// stream pushes every snapshot of a duel over a WebSocket. Browsers cannot
// set headers on the upgrade request, so the token comes as ?token=.
func (h *MatchHandler) stream(w http.ResponseWriter, r *http.Request) {
	claims, err := security.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
		return
	}
	userID, err := security.GetUserIDFromClaims(claims)
	if err != nil {
		common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
		return
	}
	id := service.NormalizeMatchID(chi.URLParam(r, "matchID"))
	h.ensureHosted(r.Context(), id)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: ws upgrade for match %s failed: %v", id, err)
		return
	}
	defer conn.Close()
	log.Printf("INFO: ws: %s watching match %s", userID, id)

	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	unsubscribe, err := h.matchService.Subscribe(r.Context(), id, func(m *model.Match) {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if m == nil {
			_ = conn.WriteJSON(streamMessage{Type: "not_found"})
			finish()
			return
		}
		if err := conn.WriteJSON(streamMessage{Type: "snapshot", Match: m}); err != nil {
			finish()
		}
	})
	if err != nil {
		log.Printf("ERROR: ws: subscribing to match %s: %v", id, err)
		return
	}
	defer unsubscribe()

	// Clients only listen; reading is how a closed connection shows up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				finish()
				return
			}
		}
	}()

	<-done
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
	log.Printf("INFO: ws: %s stopped watching match %s", userID, id)
}
