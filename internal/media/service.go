package media

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/seeitsmanish/SongCircle/internal/core"
)

// Service fronts the providers with a keyed-store cache, so repeated adds
// of the same track don't hit the platform API.
type Service struct {
	providers []Provider
	cache     core.KeyedStore
}

func NewService(cache core.KeyedStore, providers ...Provider) *Service {
	return &Service{providers: providers, cache: cache}
}

func cacheKey(platform, id string) string { return "media:" + platform + ":" + id }

// FetchMetadata resolves a URL through the matching provider, consulting
// the cache first. Cache failures are logged and skipped; the cache is
// best-effort around the real fetch.
func (s *Service) FetchMetadata(ctx context.Context, rawURL string) (Metadata, error) {
	provider, err := ForURL(s.providers, rawURL)
	if err != nil {
		return Metadata{}, err
	}
	id, err := provider.ExtractID(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	key := cacheKey(provider.Platform(), id)
	if raw, cerr := s.cache.Get(ctx, key); cerr == nil {
		var meta Metadata
		if uerr := json.Unmarshal([]byte(raw), &meta); uerr == nil {
			log.Debug().Str("module", "media.service").Str("id", id).Msg("metadata cache hit")
			meta.MediaURL = rawURL
			return meta, nil
		}
	} else if !errors.Is(cerr, core.ErrNotFound) {
		log.Warn().Err(cerr).Str("module", "media.service").Msg("metadata cache read")
	}

	meta, err := provider.FetchMetadata(ctx, id)
	if err != nil {
		return Metadata{}, err
	}
	meta.MediaURL = rawURL

	if raw, merr := json.Marshal(meta); merr == nil {
		if serr := s.cache.Set(ctx, key, string(raw)); serr != nil {
			log.Warn().Err(serr).Str("module", "media.service").Msg("metadata cache write")
		}
	}
	return meta, nil
}
