// Package http carries the CRUD surface around the room sessions: room
// creation/listing and media metadata lookup.
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/core"
	"github.com/seeitsmanish/SongCircle/internal/domain"
	"github.com/seeitsmanish/SongCircle/internal/media"
	"github.com/seeitsmanish/SongCircle/internal/store"
)

const participantKey = "participant_id"

// RoomStore is the slice of the room registry the handlers need.
type RoomStore interface {
	CreateRoom(ctx context.Context, name domain.RoomName, createdBy domain.ParticipantID) error
	ListRooms(ctx context.Context, p store.ListParams) (store.RoomPage, error)
}

// MetadataFetcher resolves a media URL to track metadata.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (media.Metadata, error)
}

// AuthRequired enforces a bearer token and stashes the participant id for
// downstream handlers.
func AuthRequired(verifier core.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		pid, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Set(participantKey, string(pid))
		c.Next()
	}
}

func participantFrom(c *gin.Context) domain.ParticipantID {
	return domain.ParticipantID(c.GetString(participantKey))
}

type RoomsAPI struct {
	Registry RoomStore
}

type createRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

func (a *RoomsAPI) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Room name is required"})
		return
	}
	name, err := domain.ParseRoomName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	err = a.Registry.CreateRoom(c.Request.Context(), name, participantFrom(c))
	switch {
	case errors.Is(err, store.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"message": "Room name is taken"})
	case err != nil:
		log.Error().Err(err).Str("module", "http").Str("room", string(name)).Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
	default:
		c.JSON(http.StatusCreated, gin.H{"message": "Room created successfully"})
	}
}

func (a *RoomsAPI) ListRooms(c *gin.Context) {
	params := store.ListParams{
		Page:    intQuery(c, "page", 1),
		PerPage: intQuery(c, "per_page", 10),
		Search:  c.Query("search"),
		ForUser: c.Query("for_user") != "",
		UserID:  participantFrom(c),
	}

	page, err := a.Registry.ListRooms(c.Request.Context(), params)
	if err != nil {
		log.Error().Err(err).Str("module", "http").Msg("list rooms")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Our servers are having issues. Please try again later."})
		return
	}
	c.JSON(http.StatusOK, page)
}

type MetadataAPI struct {
	Media MetadataFetcher
}

func (a *MetadataAPI) Lookup(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "URL is required",
			"data":    nil,
		})
		return
	}

	meta, err := a.Media.FetchMetadata(c.Request.Context(), rawURL)
	if err != nil {
		log.Warn().Err(err).Str("module", "http").Str("url", rawURL).Msg("metadata lookup")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Something went wrong, please try again later",
			"data":    nil,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Found your music",
		"data":    meta,
	})
}

func intQuery(c *gin.Context, key string, def int) int {
	if raw := c.Query(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}
