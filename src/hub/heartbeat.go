package hub

import "github.com/mentorhub/realtime/src/types"

// checkHeartbeats runs once per ping interval on the hub loop. A
// connection that never answered the previous probe is evicted through
// the same cleanup routine a socket close uses; everyone else is marked
// unanswered and probed again.
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.Alive() {
			h.logger.Warn().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("heartbeat missed, evicting")
			h.removeClient(c)
			for _, cb := range h.onEvict {
				cb(c.ID)
			}
			continue
		}
		c.SetAlive(false)
		c.trySend(types.Envelope{Type: types.EnvelopePing})
	}
}
