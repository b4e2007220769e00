package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/core"
	"github.com/seeitsmanish/SongCircle/internal/domain"
	"github.com/seeitsmanish/SongCircle/pkg/metrics"
)

type inboundFrame struct {
	Event core.Event      `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type addToQueueData struct {
	URL string `json:"url"`
}

// handleFrame dispatches one inbound frame. The returned bool tells the
// read loop to drop the connection (protocol violations).
func (ctl *Controller) handleFrame(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, conn *Conn, data []byte) bool {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		ctl.reply(conn, core.Fail("", "Event type is required"))
		return false
	}
	metrics.FramesTotal.WithLabelValues(string(frame.Event)).Inc()

	if !ctl.Limiter.Allow(pid) {
		ctl.reply(conn, core.Fail(frame.Event, "Too many requests, slow down"))
		return false
	}

	switch frame.Event {
	case core.EventJoinRoom:
		return ctl.handleJoin(ctx, room, pid, conn)
	case core.EventAddToQueue:
		return ctl.handleAddToQueue(ctx, room, pid, conn, frame.Data)
	case core.EventPlayNext:
		return ctl.handlePlayNext(ctx, room, pid, conn)
	default:
		log.Warn().Str("module", "ws").Str("event", string(frame.Event)).Msg("unknown event")
		ctl.reply(conn, core.Fail(frame.Event, "Unknown event type"))
		return false
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, conn *Conn) bool {
	res, err := ctl.Coord.Join(ctx, room, pid, conn)
	if err != nil {
		ctl.reply(conn, core.Fail(core.EventJoinRoom, failMessage(err)))
		return errors.Is(err, core.ErrRoomNotRegistered)
	}

	joined := core.JoinedRoom{RoomState: res.View.RoomState()}
	ctl.reply(conn, core.OK(core.EventJoinRoom, "Joined the room", joined.Personalize(res.IsAdmin)))

	if res.IsAdmin {
		// Viewers waiting on an absent admin refresh their queue display
		// now that playback can resume.
		arrived := core.AdminJoined{RoomState: res.View.RoomState()}
		ctl.fanOut(room, core.OK(core.EventAdminJoin, "Admin has joined the room", arrived), pid)
	}
	return false
}

func (ctl *Controller) handleAddToQueue(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, conn *Conn, raw json.RawMessage) bool {
	var data addToQueueData
	if err := json.Unmarshal(raw, &data); err != nil || data.URL == "" {
		ctl.reply(conn, core.Fail(core.EventAddToQueue, "A media url is required"))
		return false
	}

	meta, err := ctl.Media.FetchMetadata(ctx, data.URL)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("url", data.URL).Msg("metadata lookup failed")
		ctl.reply(conn, core.Fail(core.EventAddToQueue, "Could not resolve that url"))
		return false
	}

	track := domain.Track{
		ID:              uuid.NewString(),
		SourceID:        meta.SourceID,
		Title:           meta.Title,
		Artist:          meta.Artist,
		ThumbnailURL:    meta.ThumbnailURL,
		DurationSeconds: meta.DurationSeconds,
		Platform:        meta.Platform,
		MediaURL:        meta.MediaURL,
		AddedBy:         pid,
	}

	view, err := ctl.Coord.AddToQueue(ctx, room, pid, track)
	if err != nil {
		ctl.reply(conn, core.Fail(core.EventAddToQueue, failMessage(err)))
		return isProtocolViolation(err)
	}

	ctl.fanOut(room, core.OK(core.EventAddToQueue, "Queue updated", core.QueueUpdated{RoomState: view.RoomState()}))
	return false
}

func (ctl *Controller) handlePlayNext(ctx context.Context, room domain.RoomName, pid domain.ParticipantID, conn *Conn) bool {
	view, err := ctl.Coord.AdvanceQueue(ctx, room, pid)
	if err != nil {
		ctl.reply(conn, core.Fail(core.EventPlayNext, failMessage(err)))
		return isProtocolViolation(err)
	}

	ctl.fanOut(room, core.OK(core.EventPlayNext, "Playing next track", core.TrackAdvanced{RoomState: view.RoomState()}))
	return false
}

// reply sends an envelope to the sender only.
func (ctl *Controller) reply(conn *Conn, env core.Envelope) {
	frame, err := env.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("encode reply")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("reply dropped")
	}
}

// fanOut broadcasts to the room and kicks connections that could not keep
// up; their read loops then unwind through the normal leave path.
func (ctl *Controller) fanOut(room domain.RoomName, env core.Envelope, exclude ...domain.ParticipantID) {
	res := ctl.Dispatch.Broadcast(room, env, exclude...)
	for _, dropped := range res.Dropped {
		log.Warn().Str("module", "ws").Str("room", string(room)).Str("participant", string(dropped.ParticipantID)).Msg("kicking slow consumer")
		dropped.Conn.Close()
	}
}

// Events from non-members or for unregistered rooms are protocol
// violations: the sender gets a failure reply and then the connection is
// dropped.
func isProtocolViolation(err error) bool {
	return errors.Is(err, core.ErrNotMember) || errors.Is(err, core.ErrRoomNotRegistered)
}

func failMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrRoomNotRegistered):
		return "Room does not exist"
	case errors.Is(err, core.ErrNotMember):
		return "You are not a member of this room"
	default:
		return "Something went wrong, please try again later"
	}
}
