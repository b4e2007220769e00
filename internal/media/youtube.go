package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Captures the 11-char video id from watch, shorts and youtu.be links.
var youtubeURLPattern = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/)|youtu\.be/)([A-Za-z0-9_-]{11})`)

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// YouTube resolves video metadata through the Data API v3.
type YouTube struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewYouTube(endpoint, apiKey string) *YouTube {
	return &YouTube{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (y *YouTube) Platform() string { return "youtube" }

func (y *YouTube) Validate(raw string) bool {
	return youtubeURLPattern.MatchString(raw)
}

func (y *YouTube) ExtractID(raw string) (string, error) {
	m := youtubeURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", ErrUnsupportedURL
	}
	return m[1], nil
}

type ytResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (y *YouTube) FetchMetadata(ctx context.Context, id string) (Metadata, error) {
	q := url.Values{}
	q.Set("id", id)
	q.Set("part", "snippet,contentDetails")
	q.Set("key", y.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Metadata{}, err
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("youtube api status %d", resp.StatusCode)
	}

	var body ytResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Metadata{}, err
	}
	if len(body.Items) == 0 {
		return Metadata{}, ErrNoResult
	}

	item := body.Items[0]
	meta := Metadata{
		SourceID:        id,
		Title:           item.Snippet.Title,
		Artist:          item.Snippet.ChannelTitle,
		ThumbnailURL:    item.Snippet.Thumbnails.Medium.URL,
		DurationSeconds: parseISODuration(item.ContentDetails.Duration),
		Platform:        "youtube",
	}
	log.Debug().Str("module", "media.youtube").Str("id", id).Str("title", meta.Title).Msg("metadata fetched")
	return meta, nil
}

// parseISODuration converts the API's ISO-8601 durations (PT3M12S) to
// seconds. Unparseable input yields zero rather than an error.
func parseISODuration(iso string) int {
	m := isoDurationPattern.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	return hours*3600 + minutes*60 + seconds
}
