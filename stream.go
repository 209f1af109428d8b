package watari

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// deviceProfile is the device/platform pair a playback request is
// negotiated for. The pair decides which delivery path the service picks.
type deviceProfile struct {
	device   string
	platform string
}

var (
	// deviceWeb always receives DRM protected streams.
	deviceWeb = deviceProfile{device: "web", platform: "chrome"}
	// deviceConsole may receive clear-key streams, depending on the
	// content and the account's stream limit state.
	deviceConsole = deviceProfile{device: "console", platform: "switch"}
)

// HardSub is one burned-in subtitle rendition of a stream.
type HardSub struct {
	Locale  Locale `json:"hlang"`
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

// Subtitle is a sidecar subtitle track. The blob behind URL is opaque to
// this library; Format names its container (e.g. "ass" or "vtt").
type Subtitle struct {
	client *Client

	Locale Locale `json:"language"`
	URL    string `json:"url"`
	Format string `json:"format"`
}

// WriteTo fetches the subtitle and writes it to w.
func (s Subtitle) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	data, err := s.client.fetchRaw(ctx, s.URL, false)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Version points at an audio sibling of the negotiated content.
type Version struct {
	AudioLocale Locale `json:"audio_locale"`
	GUID        string `json:"guid"`
	MediaGUID   string `json:"media_guid"`
	SeasonGUID  string `json:"season_guid"`
	Original    bool   `json:"original"`
}

type streamSession struct {
	RenewSeconds      int  `json:"renewSeconds"`
	MaximumPause      int  `json:"maximumPauseSeconds"`
	UsesStreamLimits  bool `json:"usesStreamLimits"`
	SessionExpiration int  `json:"sessionExpirationSeconds"`
}

// Stream is an active playback session. It holds the session token the
// service counts against the account's concurrent stream cap, the
// manifest URL per hard-sub rendition and the sidecar subtitle tracks.
//
// The service keeps the session slot occupied until [Stream.Invalidate]
// is called. Holding unreleased handles eventually makes further playback
// requests fail with a "too many active streams" error, so callers must
// invalidate every handle they negotiate, including ones they never
// fetched a single segment from.
type Stream struct {
	client      *Client
	id          string
	drm         bool
	invalidated bool

	AssetID     string              `json:"assetId"`
	AudioLocale Locale              `json:"audioLocale"`
	Burned      Locale              `json:"burnedInLocale"`
	Token       string              `json:"token"`
	URL         string              `json:"url"`
	HardSubs    map[Locale]HardSub  `json:"hardSubs"`
	Subtitles   map[Locale]Subtitle `json:"subtitles"`
	Captions    map[Locale]Subtitle `json:"captions"`
	Versions    []Version           `json:"versions"`
	Session     streamSession       `json:"session"`
}

func (s *Stream) attachClient(c *Client) {
	s.client = c
	for locale, subtitle := range s.Subtitles {
		subtitle.client = c
		s.Subtitles[locale] = subtitle
	}
	for locale, caption := range s.Captions {
		caption.client = c
		s.Captions[locale] = caption
	}
}

// playback negotiates a playback session for the given content id.
func (c *Client) playback(ctx context.Context, id string, profile deviceProfile) (*Stream, error) {
	endpoint := fmt.Sprintf("%s/playback/v2/%s/%s/%s/play", c.playbackBase, id, profile.device, profile.platform)

	var stream Stream
	query := url.Values{"deviceId": {c.deviceID}}
	if err := c.request(ctx, http.MethodGet, endpoint, query, nil, &stream); err != nil {
		return nil, err
	}
	stream.id = id
	stream.drm = profile.device == "web" || stream.Session.UsesStreamLimits
	c.log.Debugf("negotiated playback for %s (%s/%s, drm=%t)", id, profile.device, profile.platform, stream.drm)
	return &stream, nil
}

// DRM reports whether the stream's manifests are DRM protected. Segments
// of a protected stream need an external DRM client; this library only
// hands out the token and pssh data such a client needs.
func (s *Stream) DRM() bool {
	return s.drm
}

// HardSubLocales lists the locales a burned-in rendition exists for.
// [LocaleNone] selects the clean rendition in [Stream.Variants].
func (s *Stream) HardSubLocales() []Locale {
	locales := make([]Locale, 0, len(s.HardSubs)+1)
	locales = append(locales, LocaleNone)
	for locale := range s.HardSubs {
		locales = append(locales, locale)
	}
	return locales
}

// manifestURL resolves the manifest for the requested hard-sub locale.
// LocaleNone selects the rendition without burned-in subtitles.
func (s *Stream) manifestURL(hardSub Locale) (string, error) {
	if hardSub == LocaleNone {
		return s.URL, nil
	}
	entry, ok := s.HardSubs[hardSub]
	if !ok {
		return "", &RequestError{Operation: "manifest", URL: s.URL, Err: fmt.Errorf("no %s hard sub rendition", hardSub)}
	}
	return entry.URL, nil
}

// Invalidate releases the playback session so its slot no longer counts
// against the account's concurrent stream cap. The handle must not be
// used afterwards. Calling it twice is a no-op.
func (s *Stream) Invalidate(ctx context.Context) error {
	if s.invalidated {
		return nil
	}
	endpoint := fmt.Sprintf("%s/playback/v1/token/%s/%s", s.client.playbackBase, s.id, s.Token)
	if err := s.client.request(ctx, http.MethodDelete, endpoint, nil, nil, nil); err != nil {
		return err
	}
	s.invalidated = true
	s.client.log.Debugf("invalidated playback token for %s", s.id)
	return nil
}
