package core

import (
	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/domain"
	"github.com/seeitsmanish/SongCircle/pkg/metrics"
)

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []ConnEntry
}

// BroadcastDispatcher fans one envelope out to a room's live connections.
// Each recipient gets its own copy with its own admin flag; a failed send
// never aborts delivery to the rest.
type BroadcastDispatcher struct {
	registry *ConnectionRegistry
}

func NewBroadcastDispatcher(registry *ConnectionRegistry) *BroadcastDispatcher {
	return &BroadcastDispatcher{registry: registry}
}

func (d *BroadcastDispatcher) Broadcast(room domain.RoomName, env Envelope, exclude ...domain.ParticipantID) PublishResult {
	skip := make(map[domain.ParticipantID]struct{}, len(exclude))
	for _, pid := range exclude {
		skip[pid] = struct{}{}
	}

	res := PublishResult{}
	for _, entry := range d.registry.Snapshot(room) {
		if _, excluded := skip[entry.ParticipantID]; excluded {
			continue
		}
		out := env
		if out.Data != nil {
			out.Data = out.Data.Personalize(entry.IsAdmin)
		}
		frame, err := out.Encode()
		if err != nil {
			log.Error().Err(err).Str("module", "core.dispatch").Str("room", string(room)).Msg("encode envelope")
			continue
		}
		if err := entry.Conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, entry)
			continue
		}
		res.SentTo++
	}

	metrics.BroadcastsTotal.Inc()
	metrics.BroadcastDropsTotal.Add(float64(len(res.Dropped)))
	log.Debug().Str("module", "core.dispatch").Str("room", string(room)).Str("event", string(env.Event)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
