// Package ws binds websocket connections to room sessions and translates
// wire frames into coordinator operations.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/core"
	"github.com/seeitsmanish/SongCircle/internal/domain"
	"github.com/seeitsmanish/SongCircle/internal/media"
	"github.com/seeitsmanish/SongCircle/pkg/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Coord    *core.SessionCoordinator
	Dispatch *core.BroadcastDispatcher
	Registry *core.ConnectionRegistry
	Media    *media.Service
	Verifier core.TokenVerifier
	Limiter  *FrameLimiter

	ReadLimit  int64
	PingPeriod time.Duration
}

// HandleRoom authenticates and binds an inbound connection, then runs its
// read loop until the socket dies. A malformed room name or a bad token is
// a hard reject before the upgrade ever happens.
func (ctl *Controller) HandleRoom(ctx context.Context, c *gin.Context) {
	room, err := domain.ParseRoomName(c.Param("name"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := c.Query("token")
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	pid, err := ctl.Verifier.Verify(token)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("room", string(room)).Msg("token rejected")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		sock.SetReadLimit(ctl.ReadLimit)
	}

	conn := newConn(sock)
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics.ConnectionsActive.Inc()
	log.Info().Str("module", "ws").Str("room", string(room)).Str("participant", string(pid)).Msg("connection bound")

	go conn.writePump(connCtx, ctl.PingPeriod)
	ctl.readLoop(connCtx, room, pid, conn, sock)

	// Teardown is idempotent; the coordinator tolerates a connection that
	// already left via an explicit close elsewhere. Socket closure must
	// not cancel the cleanup mutation itself.
	res, err := ctl.Coord.Leave(context.WithoutCancel(connCtx), room, pid, conn)
	switch {
	case err != nil:
		log.Error().Err(err).Str("module", "ws").Str("room", string(room)).Msg("leave on disconnect")
	case res.AdminLeft:
		state := core.AdminLeft{RoomState: res.View.RoomState()}
		ctl.fanOut(room, core.OK(core.EventAdminLeave, "Admin has left the room", state))
	}
	// The rate window is shared across a participant's tabs; only reset it
	// once the last one is gone.
	if !ctl.Registry.HasParticipant(pid) {
		ctl.Limiter.Forget(pid)
	}
	conn.Close()
	metrics.ConnectionsActive.Dec()
}

func (ctl *Controller) readLoop(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, conn *Conn, sock *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := sock.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "ws").Str("participant", string(pid)).Msg("read loop closing")
				return
			}
			if closeConn := ctl.handleFrame(ctx, room, pid, conn, data); closeConn {
				return
			}
		}
	}
}
