package watari

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Streamable is any content entity playback can be negotiated for.
type Streamable interface {
	// StreamID returns the id playback is negotiated with. It can differ
	// from the entity's own id for stub entries that point at another
	// version.
	StreamID() string
	// PremiumOnly reports whether the content needs a premium
	// subscription.
	PremiumOnly() bool
	// Stream negotiates a playback session on the DRM path.
	Stream(ctx context.Context) (*Stream, error)
	// StreamMaybeWithoutDRM negotiates on the path that serves clear-key
	// streams when the service allows it. The result can still be DRM
	// protected; check [Stream.DRM].
	StreamMaybeWithoutDRM(ctx context.Context) (*Stream, error)
}

// media is the part every content entity shares.
type media struct {
	client *Client
}

func (m *media) attachClient(c *Client) {
	m.client = c
}

func (m *media) stream(ctx context.Context, id string) (*Stream, error) {
	return m.client.playback(ctx, id, deviceWeb)
}

func (m *media) streamMaybeWithoutDRM(ctx context.Context, id string) (*Stream, error) {
	return m.client.playback(ctx, id, deviceConsole)
}

type bulkResult[T any] struct {
	Total int `json:"total"`
	Data  []T `json:"data"`
}

// mediaFromID fetches a single entity from a bulk-shaped endpoint and
// attaches the client to it.
func mediaFromID[T any](ctx context.Context, c *Client, endpoint, id string) (*T, error) {
	var result bulkResult[T]
	query := url.Values{"locale": {string(c.locale)}}
	if err := c.request(ctx, http.MethodGet, endpoint, query, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, &RequestError{Operation: http.MethodGet, URL: endpoint, Err: fmt.Errorf("no item for id %s", id)}
	}
	item := &result.Data[0]
	if attacher, ok := any(item).(clientAttacher); ok {
		attacher.attachClient(c)
	}
	return item, nil
}

// Episode is a single episode of a series season.
type Episode struct {
	media

	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	SeriesID        string    `json:"series_id"`
	SeriesTitle     string    `json:"series_title"`
	SeasonID        string    `json:"season_id"`
	SeasonTitle     string    `json:"season_title"`
	SeasonNumber    int       `json:"season_number"`
	EpisodeNumber   int       `json:"episode_number"`
	SequenceNumber  float64   `json:"sequence_number"`
	DurationMS      int64     `json:"duration_ms"`
	AudioLocale     Locale    `json:"audio_locale"`
	SubtitleLocales []Locale  `json:"subtitle_locales"`
	IsPremiumOnly   bool      `json:"is_premium_only"`
	AirDate         time.Time `json:"episode_air_date"`
}

// EpisodeFromID fetches the episode with the given id.
func EpisodeFromID(ctx context.Context, c *Client, id string) (*Episode, error) {
	endpoint := fmt.Sprintf("%s/content/v2/cms/episodes/%s", c.apiBase, id)
	return mediaFromID[Episode](ctx, c, endpoint, id)
}

func (e *Episode) StreamID() string { return e.ID }

func (e *Episode) PremiumOnly() bool { return e.IsPremiumOnly }

// Available reports whether the logged in account can play the episode.
func (e *Episode) Available() bool { return e.client.Premium() || !e.IsPremiumOnly }

func (e *Episode) Stream(ctx context.Context) (*Stream, error) {
	return e.stream(ctx, e.ID)
}

func (e *Episode) StreamMaybeWithoutDRM(ctx context.Context) (*Stream, error) {
	return e.streamMaybeWithoutDRM(ctx, e.ID)
}

// Movie is a standalone feature.
type Movie struct {
	media

	ID                      string `json:"id"`
	Title                   string `json:"title"`
	Description             string `json:"description"`
	MovieListingID          string `json:"listing_id"`
	MovieListingTitle       string `json:"movie_listing_title"`
	DurationMS              int64  `json:"duration_ms"`
	IsPremiumOnly           bool   `json:"is_premium_only"`
	AvailableOffline        bool   `json:"available_offline"`
	ClosedCaptionsAvailable bool   `json:"closed_captions_available"`
}

// MovieFromID fetches the movie with the given id.
func MovieFromID(ctx context.Context, c *Client, id string) (*Movie, error) {
	endpoint := fmt.Sprintf("%s/content/v2/cms/movies/%s", c.apiBase, id)
	return mediaFromID[Movie](ctx, c, endpoint, id)
}

func (m *Movie) StreamID() string { return m.ID }

func (m *Movie) PremiumOnly() bool { return m.IsPremiumOnly }

// Available reports whether the logged in account can play the movie.
func (m *Movie) Available() bool { return m.client.Premium() || !m.IsPremiumOnly }

func (m *Movie) Stream(ctx context.Context) (*Stream, error) {
	return m.stream(ctx, m.ID)
}

func (m *Movie) StreamMaybeWithoutDRM(ctx context.Context) (*Stream, error) {
	return m.streamMaybeWithoutDRM(ctx, m.ID)
}

// Artist names the performer of a music video or concert.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MusicVideo is a single music video.
type MusicVideo struct {
	media

	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Artist        Artist    `json:"artist"`
	DurationMS    int64     `json:"durationMs"`
	IsPremiumOnly bool      `json:"isPremiumOnly"`
	PublishDate   time.Time `json:"originalRelease"`
}

// MusicVideoFromID fetches the music video with the given id.
func MusicVideoFromID(ctx context.Context, c *Client, id string) (*MusicVideo, error) {
	endpoint := fmt.Sprintf("%s/content/v2/music/music_videos/%s", c.apiBase, id)
	return mediaFromID[MusicVideo](ctx, c, endpoint, id)
}

func (v *MusicVideo) StreamID() string { return v.ID }

func (v *MusicVideo) PremiumOnly() bool { return v.IsPremiumOnly }

// Available reports whether the logged in account can play the video.
func (v *MusicVideo) Available() bool { return v.client.Premium() || !v.IsPremiumOnly }

func (v *MusicVideo) Stream(ctx context.Context) (*Stream, error) {
	return v.stream(ctx, v.ID)
}

func (v *MusicVideo) StreamMaybeWithoutDRM(ctx context.Context) (*Stream, error) {
	return v.streamMaybeWithoutDRM(ctx, v.ID)
}

// Concert is a recorded live performance.
type Concert struct {
	media

	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Artist        Artist    `json:"artist"`
	DurationMS    int64     `json:"durationMs"`
	IsPremiumOnly bool      `json:"isPremiumOnly"`
	PublishDate   time.Time `json:"originalRelease"`
}

// ConcertFromID fetches the concert with the given id.
func ConcertFromID(ctx context.Context, c *Client, id string) (*Concert, error) {
	endpoint := fmt.Sprintf("%s/content/v2/music/concerts/%s", c.apiBase, id)
	return mediaFromID[Concert](ctx, c, endpoint, id)
}

func (co *Concert) StreamID() string { return co.ID }

func (co *Concert) PremiumOnly() bool { return co.IsPremiumOnly }

// Available reports whether the logged in account can play the concert.
func (co *Concert) Available() bool { return co.client.Premium() || !co.IsPremiumOnly }

func (co *Concert) Stream(ctx context.Context) (*Stream, error) {
	return co.stream(ctx, co.ID)
}

func (co *Concert) StreamMaybeWithoutDRM(ctx context.Context) (*Stream, error) {
	return co.streamMaybeWithoutDRM(ctx, co.ID)
}
