package api

import (
	"net/http"

	"github.com/coder/websocket"

	"github.com/scriptd/scriptd/internal/logger"
)

// handleLogStream upgrades to a WebSocket and tails the script's log file
// (§4.3, §6): the full current contents first, then each subsequent append,
// until the client disconnects.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	err = s.tailer.Stream(ctx, id, func(chunk []byte) error {
		return conn.Write(ctx, websocket.MessageText, chunk)
	})
	if err != nil {
		logger.Debug(r.Context(), "api: log stream ended", "script_id", id, "error", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
