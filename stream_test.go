package watari

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playbackBody(usesStreamLimits bool) string {
	return fmt.Sprintf(`{
		"assetId": "asset-1",
		"audioLocale": "ja-JP",
		"token": "tok-99",
		"url": "https://cdn.example.com/clean/manifest.m3u8",
		"hardSubs": {
			"en-US": {"hlang": "en-US", "url": "https://cdn.example.com/en-US/manifest.m3u8", "quality": "full"}
		},
		"subtitles": {
			"en-US": {"language": "en-US", "url": "https://cdn.example.com/subs/en-US.ass", "format": "ass"}
		},
		"captions": {},
		"session": {"renewSeconds": 300, "usesStreamLimits": %t},
		"versions": [{"audio_locale": "ja-JP", "guid": "g1", "original": true}]
	}`, usesStreamLimits)
}

func TestPlaybackNegotiation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playback/v2/ep-1/console/switch/play", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("deviceId"))
		assert.Equal(t, "Bearer test-access", r.Header.Get("Authorization"))
		w.Write([]byte(playbackBody(false)))
	}))
	defer srv.Close()

	c := testClient(srv)
	stream, err := c.playback(context.Background(), "ep-1", deviceConsole)
	require.NoError(t, err)

	assert.Equal(t, "tok-99", stream.Token)
	assert.Equal(t, LocaleJaJP, stream.AudioLocale)
	assert.Equal(t, "https://cdn.example.com/clean/manifest.m3u8", stream.URL)
	assert.False(t, stream.DRM())

	require.Contains(t, stream.HardSubs, LocaleEnUS)
	assert.Equal(t, "https://cdn.example.com/en-US/manifest.m3u8", stream.HardSubs[LocaleEnUS].URL)

	require.Contains(t, stream.Subtitles, LocaleEnUS)
	assert.Equal(t, "ass", stream.Subtitles[LocaleEnUS].Format)
	assert.Same(t, c, stream.Subtitles[LocaleEnUS].client)

	require.Len(t, stream.Versions, 1)
	assert.True(t, stream.Versions[0].Original)
}

func TestPlaybackDRMFlag(t *testing.T) {
	tests := []struct {
		name             string
		profile          deviceProfile
		usesStreamLimits bool
		want             bool
	}{
		{"web is always drm", deviceWeb, false, true},
		{"console without stream limits is clear", deviceConsole, false, false},
		{"console under stream limits is drm", deviceConsole, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(playbackBody(tt.usesStreamLimits)))
			}))
			defer srv.Close()

			stream, err := testClient(srv).playback(context.Background(), "ep-1", tt.profile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stream.DRM())
		})
	}
}

func TestHardSubLocales(t *testing.T) {
	s := &Stream{HardSubs: map[Locale]HardSub{LocaleEnUS: {}, LocaleDeDE: {}}}
	locales := s.HardSubLocales()
	assert.Len(t, locales, 3)
	assert.Contains(t, locales, LocaleNone)
	assert.Contains(t, locales, LocaleEnUS)
	assert.Contains(t, locales, LocaleDeDE)
}

func TestInvalidate(t *testing.T) {
	var deletes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/playback/v1/token/ep-1/tok-99", r.URL.Path)
		deletes++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv)
	s := &Stream{client: c, id: "ep-1", Token: "tok-99"}

	require.NoError(t, s.Invalidate(context.Background()))
	// A second call must not hit the service again.
	require.NoError(t, s.Invalidate(context.Background()))
	assert.Equal(t, 1, deletes)
}

func TestInvalidateFailureKeepsHandleLive(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv)
	s := &Stream{client: c, id: "ep-1", Token: "tok-99"}

	require.Error(t, s.Invalidate(context.Background()))
	require.NoError(t, s.Invalidate(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestSubtitleWriteTo(t *testing.T) {
	blob := []byte("[Script Info]\nTitle: sample\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subs/en-US.ass", r.URL.Path)
		w.Write(blob)
	}))
	defer srv.Close()

	c := testClient(srv)
	subtitle := Subtitle{client: c, Locale: LocaleEnUS, URL: srv.URL + "/subs/en-US.ass", Format: "ass"}

	var buf bytes.Buffer
	n, err := subtitle.WriteTo(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(blob)), n)
	assert.Equal(t, blob, buf.Bytes())
}
