package watari

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/ashiyu/watari/internal/mpd"
)

// Resolution is a video frame size in pixels. Zero valued for audio
// variants and, in lenient mode, for manifests that omit it.
type Resolution struct {
	Width  uint64
	Height uint64
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Variant is one quality rendition of a stream, ready for segment
// planning via [Variant.Segments].
type Variant struct {
	client *Client

	// ID is the representation id for DASH variants. HLS masters do not
	// name their variants, so it is synthesized from the bandwidth there.
	ID         string
	Bandwidth  uint64
	Codecs     string
	Resolution Resolution
	FPS        float64
	// AudioSamplingRate is set for DASH audio variants only.
	AudioSamplingRate uint64
	// Audio marks DASH audio-only variants. HLS variants are muxed.
	Audio bool
	// PSSH is the base64 DRM initialization data, empty for clear
	// streams. Decrypting DRM content is the caller's business; pair it
	// with the stream token for the license request.
	PSSH string

	hls  *hlsVariant
	dash *dashVariant
}

type hlsVariant struct {
	url string
}

type dashVariant struct {
	baseURL  string
	repID    string
	template *mpd.SegmentTemplate
}

// Variants fetches and parses the manifest negotiated for the given
// hard-sub locale. [LocaleNone] selects the rendition without burned-in
// subtitles.
//
// The service answers manifest URLs of revoked or region-blocked sessions
// with a JSON error body and HTTP 200; that case surfaces as an
// [AuthorizationError].
func (s *Stream) Variants(ctx context.Context, hardSub Locale) ([]Variant, error) {
	manifestURL, err := s.manifestURL(hardSub)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(manifestURL)
	if err != nil {
		return nil, &RequestError{Operation: "manifest", URL: manifestURL, Err: err}
	}
	if strings.HasSuffix(parsed.Path, ".mpd") {
		query := parsed.Query()
		query.Set("accountid", s.client.AccountID())
		query.Set("playbackGuid", s.Token)
		parsed.RawQuery = query.Encode()
		manifestURL = parsed.String()
	}

	data, err := s.client.fetchRaw(ctx, manifestURL, true)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if json.Valid(trimmed) {
		return nil, &AuthorizationError{URL: manifestURL, Message: authMessage(trimmed)}
	}
	if bytes.HasPrefix(trimmed, []byte("#EXTM3U")) {
		return s.variantsFromMaster(manifestURL, data)
	}
	return s.variantsFromMPD(manifestURL, data)
}

// authMessage pulls a readable message out of the JSON error body the
// service serves in place of a manifest.
func authMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return string(data)
}

func (s *Stream) variantsFromMaster(manifestURL string, data []byte) ([]Variant, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), true)
	if err != nil {
		return nil, &DecodeError{URL: manifestURL, Raw: data, Err: err}
	}
	if listType != m3u8.MASTER {
		return nil, &DecodeError{URL: manifestURL, Raw: data, Err: fmt.Errorf("expected a master playlist, got list type %d", listType)}
	}
	master := playlist.(*m3u8.MasterPlaylist)

	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, &RequestError{Operation: "manifest", URL: manifestURL, Err: err}
	}

	variants := make([]Variant, 0, len(master.Variants))
	for _, entry := range master.Variants {
		if entry == nil || entry.Iframe {
			continue
		}
		if entry.URI == "" {
			return nil, &ProtocolError{Field: "URI", URL: manifestURL}
		}
		if entry.Bandwidth == 0 {
			return nil, &ProtocolError{Field: "BANDWIDTH", URL: manifestURL}
		}

		variant := Variant{
			client:    s.client,
			ID:        strconv.FormatUint(uint64(entry.Bandwidth), 10),
			Bandwidth: uint64(entry.Bandwidth),
			Codecs:    entry.Codecs,
			FPS:       entry.FrameRate,
		}
		variant.Resolution, err = parseResolution(entry.Resolution)
		if err != nil && !s.client.lenient {
			return nil, &ProtocolError{Field: "RESOLUTION", URL: manifestURL}
		}
		if !s.client.lenient {
			if entry.FrameRate <= 0 {
				return nil, &ProtocolError{Field: "FRAME-RATE", URL: manifestURL}
			}
			if entry.Codecs == "" {
				return nil, &ProtocolError{Field: "CODECS", URL: manifestURL}
			}
		}

		mediaURL, err := base.Parse(entry.URI)
		if err != nil {
			return nil, &DecodeError{URL: manifestURL, Raw: data, Err: err}
		}
		variant.hls = &hlsVariant{url: mediaURL.String()}
		variants = append(variants, variant)
	}
	return variants, nil
}

func (s *Stream) variantsFromMPD(manifestURL string, data []byte) ([]Variant, error) {
	manifest, err := mpd.Parse(data)
	if err != nil {
		return nil, &DecodeError{URL: manifestURL, Raw: data, Err: err}
	}
	if len(manifest.Periods) == 0 {
		return nil, &ProtocolError{Field: "Period", URL: manifestURL}
	}
	period := manifest.Periods[0]

	var variants []Variant
	for i := range period.Sets {
		set := &period.Sets[i]
		for j := range set.Representations {
			rep := &set.Representations[j]

			if rep.ID == "" {
				return nil, &ProtocolError{Field: "Representation.id", URL: manifestURL}
			}
			if rep.Bandwidth == 0 {
				return nil, &ProtocolError{Field: "bandwidth", URL: manifestURL}
			}
			if len(rep.BaseURLs) == 0 {
				return nil, &ProtocolError{Field: "BaseURL", URL: manifestURL}
			}
			template := rep.Template(set)
			if template == nil {
				return nil, &ProtocolError{Field: "SegmentTemplate", URL: manifestURL}
			}

			variant := Variant{
				client:    s.client,
				ID:        rep.ID,
				Bandwidth: rep.Bandwidth,
				Codecs:    rep.Codecs,
				Audio:     !set.IsVideo(),
				PSSH:      rep.Pssh(set),
				dash: &dashVariant{
					baseURL:  rep.BaseURLs[0],
					repID:    rep.ID,
					template: template,
				},
			}
			if set.IsVideo() {
				variant.Resolution = Resolution{Width: rep.Width, Height: rep.Height}
				variant.FPS, err = parseFrameRate(rep.FrameRate)
				if !s.client.lenient {
					if variant.Resolution.Width == 0 || variant.Resolution.Height == 0 {
						return nil, &ProtocolError{Field: "width/height", URL: manifestURL}
					}
					if err != nil || variant.FPS <= 0 {
						return nil, &ProtocolError{Field: "frameRate", URL: manifestURL}
					}
					if rep.Codecs == "" {
						return nil, &ProtocolError{Field: "codecs", URL: manifestURL}
					}
				}
			} else {
				variant.AudioSamplingRate = rep.AudioSamplingRate
			}
			variants = append(variants, variant)
		}
	}
	return variants, nil
}

// parseResolution parses the WIDTHxHEIGHT form used by master playlists.
func parseResolution(raw string) (Resolution, error) {
	w, h, ok := strings.Cut(raw, "x")
	if !ok {
		return Resolution{}, fmt.Errorf("malformed resolution %q", raw)
	}
	width, err := strconv.ParseUint(w, 10, 64)
	if err != nil {
		return Resolution{}, fmt.Errorf("malformed resolution %q: %w", raw, err)
	}
	height, err := strconv.ParseUint(h, 10, 64)
	if err != nil {
		return Resolution{}, fmt.Errorf("malformed resolution %q: %w", raw, err)
	}
	return Resolution{Width: width, Height: height}, nil
}

// parseFrameRate parses a frame rate attribute, either a plain decimal or
// the num/den fraction form ("24000/1001").
func parseFrameRate(raw string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty frame rate")
	}
	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed frame rate %q: %w", raw, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, fmt.Errorf("malformed frame rate %q", raw)
		}
		return n / d, nil
	}
	fps, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed frame rate %q: %w", raw, err)
	}
	return fps, nil
}
