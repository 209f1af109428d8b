// Package mpd holds the XML model for MPEG-DASH Media Presentation
// Descriptions, reduced to the elements the streaming service actually
// serves.
package mpd

import (
	"encoding/xml"
	"fmt"
)

// MPD is the root element of a Media Presentation Description.
type MPD struct {
	XMLName                   xml.Name `xml:"MPD"`
	Type                      string   `xml:"type,attr"`
	Profiles                  string   `xml:"profiles,attr"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
	MinBufferTime             string   `xml:"minBufferTime,attr"`
	Periods                   []Period `xml:"Period"`
}

// Period represents a media content period. The upstream only ever serves
// single-period manifests; callers take the first one.
type Period struct {
	ID      string          `xml:"id,attr"`
	Start   string          `xml:"start,attr"`
	BaseURL string          `xml:"BaseURL"`
	Sets    []AdaptationSet `xml:"AdaptationSet"`
}

// AdaptationSet represents a set of interchangeable representations.
// Video sets carry maxWidth/maxHeight; audio sets do not.
type AdaptationSet struct {
	ID                 string              `xml:"id,attr"`
	ContentType        string              `xml:"contentType,attr"`
	Lang               string              `xml:"lang,attr"`
	MimeType           string              `xml:"mimeType,attr"`
	SegmentAlignment   bool                `xml:"segmentAlignment,attr"`
	MaxWidth           int                 `xml:"maxWidth,attr"`
	MaxHeight          int                 `xml:"maxHeight,attr"`
	SegmentTemplate    *SegmentTemplate    `xml:"SegmentTemplate"`
	ContentProtections []ContentProtection `xml:"ContentProtection"`
	Representations    []Representation    `xml:"Representation"`
}

// IsVideo classifies the set; everything without a declared maximum frame
// size is treated as audio.
func (as *AdaptationSet) IsVideo() bool {
	return as.MaxWidth > 0 || as.MaxHeight > 0
}

// Representation represents a specific media stream.
type Representation struct {
	ID                 string              `xml:"id,attr"`
	Bandwidth          uint64              `xml:"bandwidth,attr"`
	Codecs             string              `xml:"codecs,attr"`
	Width              uint64              `xml:"width,attr"`
	Height             uint64              `xml:"height,attr"`
	FrameRate          string              `xml:"frameRate,attr"`
	AudioSamplingRate  uint64              `xml:"audioSamplingRate,attr"`
	BaseURLs           []string            `xml:"BaseURL"`
	SegmentTemplate    *SegmentTemplate    `xml:"SegmentTemplate"`
	ContentProtections []ContentProtection `xml:"ContentProtection"`
}

// Template returns the representation's SegmentTemplate, falling back to
// the enclosing AdaptationSet's. Nil when neither declares one.
func (r *Representation) Template(set *AdaptationSet) *SegmentTemplate {
	if r.SegmentTemplate != nil {
		return r.SegmentTemplate
	}
	return set.SegmentTemplate
}

// Pssh returns the nearest-ancestor cenc:pssh payload for the
// representation, preferring its own ContentProtection over the set's.
func (r *Representation) Pssh(set *AdaptationSet) string {
	for _, cp := range r.ContentProtections {
		if cp.Pssh != "" {
			return cp.Pssh
		}
	}
	for _, cp := range set.ContentProtections {
		if cp.Pssh != "" {
			return cp.Pssh
		}
	}
	return ""
}

// ContentProtection signals DRM. The cenc:pssh child carries the
// base64-encoded initialization data handed to an external DRM client.
type ContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
	Pssh        string `xml:"pssh"`
}

// SegmentTemplate defines the URL structure for segments. StartNumber is
// kept as a string so that an absent attribute is distinguishable from an
// explicit zero.
type SegmentTemplate struct {
	Timescale      uint64           `xml:"timescale,attr"`
	StartNumber    string           `xml:"startNumber,attr"`
	Initialization string           `xml:"initialization,attr"`
	Media          string           `xml:"media,attr"`
	Timeline       *SegmentTimeline `xml:"SegmentTimeline"`
}

// SegmentTimeline defines the timeline of segments.
type SegmentTimeline struct {
	Segments []S `xml:"S"`
}

// S represents a run of segments: one of duration D, plus R repeats.
type S struct {
	T uint64 `xml:"t,attr"` // start time
	D uint64 `xml:"d,attr"` // duration, in timescale units
	R int    `xml:"r,attr"` // repeat count
}

// Expand flattens the timeline into one duration per segment: each S
// entry with repeat count r contributes r+1 segments of duration d,
// in declaration order.
func (tl *SegmentTimeline) Expand() []uint64 {
	var durations []uint64
	for _, s := range tl.Segments {
		count := s.R + 1
		if count < 1 {
			count = 1
		}
		for i := 0; i < count; i++ {
			durations = append(durations, s.D)
		}
	}
	return durations
}

// Parse unmarshals an MPD document.
func Parse(data []byte) (*MPD, error) {
	var manifest MPD
	if err := xml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MPD XML: %w", err)
	}
	return &manifest, nil
}
