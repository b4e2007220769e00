// Package domain contains entity types without logic, just meta-data.
package domain

import (
	"errors"
	"regexp"
	"strings"
)

const (
	MinRoomNameLen = 3
	MaxRoomNameLen = 30
)

var (
	ErrRoomNameLength = errors.New("room name must be 3-30 characters")
	ErrRoomNameFormat = errors.New("room name allows letters, numbers and single hyphens between segments")
)

// Alphanumeric segments joined by single hyphens; no leading, trailing
// or consecutive hyphens. Length is checked separately.
var roomNamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*$`)

type RoomName string

// ParseRoomName validates a raw room name and lower-cases it, since room
// names are case-insensitive store keys.
func ParseRoomName(raw string) (RoomName, error) {
	if len(raw) < MinRoomNameLen || len(raw) > MaxRoomNameLen {
		return "", ErrRoomNameLength
	}
	if !roomNamePattern.MatchString(raw) {
		return "", ErrRoomNameFormat
	}
	return RoomName(strings.ToLower(raw)), nil
}

// Room is the registry-resident record: name plus the participant who
// created it. The creator is the room's admin for its whole lifetime.
type Room struct {
	Name      RoomName      `json:"name"`
	CreatedBy ParticipantID `json:"created_by"`
}
