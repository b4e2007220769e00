package core

import (
	"encoding/json"

	"github.com/seeitsmanish/SongCircle/internal/domain"
)

// Event tags every frame on the wire, inbound and outbound.
type Event string

const (
	EventJoinRoom   Event = "JOIN_ROOM"
	EventAddToQueue Event = "ADD_TO_QUEUE"
	EventPlayNext   Event = "PLAY_NEXT_IN_QUEUE"
	EventAdminJoin  Event = "ADMIN_JOIN"
	EventAdminLeave Event = "ADMIN_LEAVE"
)

// Envelope is the single outbound frame shape. Every coordinator result,
// success or failure, renders to one of these.
type Envelope struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    Payload `json:"data"`
	Event   Event   `json:"event"`
}

// Payload is a closed set of outbound message variants. Personalize
// returns the recipient's copy with its own admin flag stamped in, so the
// dispatcher never mutates a shared payload.
type Payload interface {
	Personalize(isAdmin bool) Payload
}

// RoomState is the session view shared by all outbound variants.
// Member lists never go over the wire.
type RoomState struct {
	CurrentTrack *domain.Track  `json:"current_track"`
	Queue        []domain.Track `json:"queue"`
	AdminPresent bool           `json:"admin_present"`
	IsAdmin      bool           `json:"is_admin"`
}

type JoinedRoom struct{ RoomState }

func (p JoinedRoom) Personalize(isAdmin bool) Payload { p.IsAdmin = isAdmin; return p }

type QueueUpdated struct{ RoomState }

func (p QueueUpdated) Personalize(isAdmin bool) Payload { p.IsAdmin = isAdmin; return p }

type TrackAdvanced struct{ RoomState }

func (p TrackAdvanced) Personalize(isAdmin bool) Payload { p.IsAdmin = isAdmin; return p }

type AdminJoined struct{ RoomState }

func (p AdminJoined) Personalize(isAdmin bool) Payload { p.IsAdmin = isAdmin; return p }

type AdminLeft struct{ RoomState }

func (p AdminLeft) Personalize(isAdmin bool) Payload { p.IsAdmin = isAdmin; return p }

func OK(event Event, message string, data Payload) Envelope {
	return Envelope{Success: true, Message: message, Data: data, Event: event}
}

func Fail(event Event, message string) Envelope {
	return Envelope{Success: false, Message: message, Data: nil, Event: event}
}

// Encode marshals the envelope for one recipient.
func (e Envelope) Encode() (Frame, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
