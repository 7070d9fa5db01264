package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/mentorhub/realtime/src/hub"
	"github.com/mentorhub/realtime/src/types"
)

// handleUpgrade authorizes and upgrades a WebSocket connection. The token
// rides the query string; a bad token is refused with 401 before any
// connection state exists. Optional roomId/groupId query parameters join
// the connection to its channel right after registration.
func (s *Server) handleUpgrade(ctx *fasthttp.RequestCtx) {
	if !strings.EqualFold(string(ctx.Request.Header.Peek("Upgrade")), "websocket") {
		ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
		ctx.SetBodyString(`{"error":"upgrade_required"}`)
		return
	}

	token := string(ctx.QueryArgs().Peek("token"))
	userID, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("upgrade refused")
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString(`{"error":"unauthorized"}`)
		return
	}

	if s.cfg.MaxConnections > 0 && s.hub.Count() >= s.cfg.MaxConnections {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetBodyString(`{"error":"connection_limit"}`)
		return
	}

	roomID := string(ctx.QueryArgs().Peek("roomId"))
	groupID := string(ctx.QueryArgs().Peek("groupId"))
	if roomID != "" && groupID != "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"error":"invalid_channel_target"}`)
		return
	}
	channel := ""
	switch {
	case roomID != "":
		channel = types.RoomChannel(roomID)
	case groupID != "":
		channel = types.GroupChannel(groupID)
	}

	connID := uuid.New().String()
	h := s.hub
	writeTimeout := time.Duration(s.cfg.WriteTimeout) * time.Second
	err = s.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		client := hub.NewClient(connID, userID, &wsConn{conn: conn, writeTimeout: writeTimeout}, h)
		h.Register(client)
		s.metrics.incConnection()
		defer s.metrics.decConnection()
		if channel != "" {
			h.Join(client, channel)
		}
		go client.WritePump()
		client.ReadPump()
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
	}
}

// wsConn adapts fasthttp/websocket.Conn to types.Conn. Reads decode the
// raw frame here so a JSON syntax error surfaces as ErrMalformedFrame
// instead of ending the read loop.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (w *wsConn) WriteJSON(v any) error {
	if w.writeTimeout > 0 {
		w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.conn.WriteJSON(v)
}

func (w *wsConn) ReadJSON(v any) error {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedFrame, err)
	}
	return nil
}

func (w *wsConn) Close() error { return w.conn.Close() }
