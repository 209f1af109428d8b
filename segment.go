package watari

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"github.com/ashiyu/watari/internal/aescbc"
)

// SegmentKey is the AES-128 key material a segment is encrypted with.
type SegmentKey struct {
	Key []byte
	IV  []byte
}

// Segment is one downloadable piece of a variant. Segments come back from
// [Variant.Segments] in playback order; concatenating their decrypted
// payloads yields the complete media file.
type Segment struct {
	client *Client

	URL      string
	Duration time.Duration
	// Init marks the DASH initialization segment, always first and
	// zero-duration. HLS playlists have no init sentinel.
	Init bool
	// Key is nil for clear segments. Consecutive segments commonly share
	// one key; the pointer identity reflects that.
	Key *SegmentKey
}

// Segments plans the ordered segment list of the variant. DASH planning
// is pure; HLS planning fetches the media playlist plus any AES keys it
// declares.
func (v *Variant) Segments(ctx context.Context) ([]Segment, error) {
	switch {
	case v.dash != nil:
		return v.dashSegments()
	case v.hls != nil:
		return v.hlsSegments(ctx)
	}
	return nil, fmt.Errorf("variant %s has no segment source", v.ID)
}

func (v *Variant) dashSegments() ([]Segment, error) {
	template := v.dash.template

	if template.StartNumber == "" {
		return nil, &ProtocolError{Field: "startNumber", URL: v.dash.baseURL}
	}
	startNumber, err := strconv.ParseUint(template.StartNumber, 10, 64)
	if err != nil {
		return nil, &ProtocolError{Field: "startNumber", URL: v.dash.baseURL}
	}
	if template.Timeline == nil {
		return nil, &ProtocolError{Field: "SegmentTimeline", URL: v.dash.baseURL}
	}
	if template.Media == "" {
		return nil, &ProtocolError{Field: "media", URL: v.dash.baseURL}
	}
	if template.Initialization == "" {
		return nil, &ProtocolError{Field: "initialization", URL: v.dash.baseURL}
	}
	timescale := template.Timescale
	if timescale == 0 {
		timescale = 1
	}

	durations := template.Timeline.Expand()
	segments := make([]Segment, 0, len(durations)+1)

	segments = append(segments, Segment{
		client: v.client,
		URL:    v.dash.baseURL + expandTemplate(template.Initialization, v.dash.repID, 0),
		Init:   true,
	})
	for i, d := range durations {
		segments = append(segments, Segment{
			client:   v.client,
			URL:      v.dash.baseURL + expandTemplate(template.Media, v.dash.repID, startNumber+uint64(i)),
			Duration: time.Duration(float64(d) / float64(timescale) * float64(time.Second)),
		})
	}
	return segments, nil
}

// expandTemplate substitutes the $RepresentationID$ and $Number$
// identifiers of a segment URL template.
func expandTemplate(template, repID string, number uint64) string {
	out := strings.ReplaceAll(template, "$RepresentationID$", repID)
	return strings.ReplaceAll(out, "$Number$", strconv.FormatUint(number, 10))
}

func (v *Variant) hlsSegments(ctx context.Context) ([]Segment, error) {
	data, err := v.client.fetchRaw(ctx, v.hls.url, false)
	if err != nil {
		return nil, err
	}
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), true)
	if err != nil {
		return nil, &DecodeError{URL: v.hls.url, Raw: data, Err: err}
	}
	if listType != m3u8.MEDIA {
		return nil, &DecodeError{URL: v.hls.url, Raw: data, Err: fmt.Errorf("expected a media playlist, got list type %d", listType)}
	}
	media := playlist.(*m3u8.MediaPlaylist)

	base, err := url.Parse(v.hls.url)
	if err != nil {
		return nil, &RequestError{Operation: "playlist", URL: v.hls.url, Err: err}
	}

	var (
		segments []Segment
		active   *SegmentKey
	)
	for _, entry := range media.Segments {
		if entry == nil {
			continue
		}
		// The parser attaches a key tag to the first segment it covers;
		// it stays in effect until the next tag.
		if entry.Key != nil {
			active, err = v.deriveKey(ctx, base, entry.Key)
			if err != nil {
				return nil, err
			}
		}

		segmentURL, err := base.Parse(entry.URI)
		if err != nil {
			return nil, &DecodeError{URL: v.hls.url, Raw: data, Err: err}
		}
		segments = append(segments, Segment{
			client:   v.client,
			URL:      segmentURL.String(),
			Duration: time.Duration(entry.Duration * float64(time.Second)),
			Key:      active,
		})
	}
	return segments, nil
}

// deriveKey fetches the AES key a key tag points at and derives the IV.
// A declared IV is hex decoded; without one the raw key bytes double as
// the IV, which is what the service's packager actually does.
func (v *Variant) deriveKey(ctx context.Context, base *url.URL, key *m3u8.Key) (*SegmentKey, error) {
	if key.Method == "NONE" || key.URI == "" {
		return nil, nil
	}
	keyURL, err := base.Parse(key.URI)
	if err != nil {
		return nil, &CryptoError{URL: key.URI, Err: err}
	}
	keyData, err := v.client.fetchRaw(ctx, keyURL.String(), false)
	if err != nil {
		return nil, err
	}
	if len(keyData) != 16 {
		return nil, &CryptoError{URL: keyURL.String(), Err: fmt.Errorf("key is %d bytes, want 16", len(keyData))}
	}

	iv := keyData
	if key.IV != "" {
		raw := strings.TrimPrefix(strings.TrimPrefix(key.IV, "0x"), "0X")
		iv, err = hex.DecodeString(raw)
		if err != nil {
			return nil, &CryptoError{URL: keyURL.String(), Err: fmt.Errorf("malformed iv %q: %w", key.IV, err)}
		}
	}
	return &SegmentKey{Key: keyData, IV: iv}, nil
}

// Fetch downloads the segment and returns its raw, still encrypted
// payload.
func (s *Segment) Fetch(ctx context.Context) ([]byte, error) {
	if s.client == nil {
		return nil, &RequestError{Operation: "fetch", URL: s.URL, Err: errors.New("segment has no client attached")}
	}
	return s.client.fetchRaw(ctx, s.URL, false)
}

// WriteTo fetches the segment, decrypts it if a key is attached and
// writes the payload to w.
func (s *Segment) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	data, err := s.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if s.Key != nil {
		data, err = aescbc.Decrypt(s.Key.Key, s.Key.IV, data)
		if err != nil {
			return 0, &CryptoError{URL: s.URL, Err: err}
		}
	}
	n, err := w.Write(data)
	return int64(n), err
}

// DecryptSegment decrypts a fully downloaded segment. A nil key passes
// the data through untouched, so callers can run every segment of a
// mixed clear/encrypted playlist through the same path.
func DecryptSegment(data []byte, key *SegmentKey) ([]byte, error) {
	if key == nil {
		return data, nil
	}
	plain, err := aescbc.Decrypt(key.Key, key.IV, data)
	if err != nil {
		return nil, &CryptoError{Err: err}
	}
	return plain, nil
}
