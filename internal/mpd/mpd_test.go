package mpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMPD = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" xmlns:cenc="urn:mpeg:cenc:2013" type="static" mediaPresentationDuration="PT24M10S" minBufferTime="PT2S">
  <Period id="p0">
    <AdaptationSet id="0" mimeType="video/mp4" segmentAlignment="true" maxWidth="1920" maxHeight="1080">
      <ContentProtection schemeIdUri="urn:uuid:edef8ba9-79d6-4ace-a3c8-27dcd51d21ed">
        <cenc:pssh>AAAAOHBzc2g=</cenc:pssh>
      </ContentProtection>
      <SegmentTemplate timescale="1000" startNumber="1" initialization="init-$RepresentationID$.m4s" media="seg-$RepresentationID$-$Number$.m4s">
        <SegmentTimeline>
          <S t="0" d="4000" r="2"/>
          <S d="2000"/>
        </SegmentTimeline>
      </SegmentTemplate>
      <Representation id="v1" bandwidth="4500000" codecs="avc1.640028" width="1920" height="1080" frameRate="24000/1001">
        <BaseURL>https://cdn.example.com/v1/</BaseURL>
      </Representation>
      <Representation id="v2" bandwidth="1500000" codecs="avc1.4d401f" width="1280" height="720" frameRate="24000/1001">
        <BaseURL>https://cdn.example.com/v2/</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet id="1" mimeType="audio/mp4" segmentAlignment="true" lang="ja-JP">
      <SegmentTemplate timescale="48000" startNumber="1" initialization="init-$RepresentationID$.m4s" media="seg-$RepresentationID$-$Number$.m4s">
        <SegmentTimeline>
          <S t="0" d="96000" r="5"/>
        </SegmentTimeline>
      </SegmentTemplate>
      <Representation id="a1" bandwidth="128000" codecs="mp4a.40.2" audioSamplingRate="48000">
        <BaseURL>https://cdn.example.com/a1/</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

func TestParse(t *testing.T) {
	manifest, err := Parse([]byte(sampleMPD))
	require.NoError(t, err)
	require.Len(t, manifest.Periods, 1)

	period := manifest.Periods[0]
	require.Len(t, period.Sets, 2)

	video := period.Sets[0]
	assert.True(t, video.IsVideo())
	require.Len(t, video.Representations, 2)
	rep := video.Representations[0]
	assert.Equal(t, "v1", rep.ID)
	assert.Equal(t, uint64(4500000), rep.Bandwidth)
	assert.Equal(t, uint64(1920), rep.Width)
	assert.Equal(t, uint64(1080), rep.Height)
	assert.Equal(t, "24000/1001", rep.FrameRate)
	require.Len(t, rep.BaseURLs, 1)
	assert.Equal(t, "https://cdn.example.com/v1/", rep.BaseURLs[0])

	audio := period.Sets[1]
	assert.False(t, audio.IsVideo())
	assert.Equal(t, uint64(48000), audio.Representations[0].AudioSamplingRate)
}

func TestParseInvalidXML(t *testing.T) {
	_, err := Parse([]byte("<MPD><Period></MPD>"))
	assert.Error(t, err)
}

func TestTemplateFallsBackToSet(t *testing.T) {
	manifest, err := Parse([]byte(sampleMPD))
	require.NoError(t, err)

	set := &manifest.Periods[0].Sets[0]
	rep := &set.Representations[0]
	tmpl := rep.Template(set)
	require.NotNil(t, tmpl)
	assert.Equal(t, "1", tmpl.StartNumber)
	assert.Equal(t, uint64(1000), tmpl.Timescale)
}

func TestPsshInheritedFromSet(t *testing.T) {
	manifest, err := Parse([]byte(sampleMPD))
	require.NoError(t, err)

	set := &manifest.Periods[0].Sets[0]
	assert.Equal(t, "AAAAOHBzc2g=", set.Representations[0].Pssh(set))

	audio := &manifest.Periods[0].Sets[1]
	assert.Empty(t, audio.Representations[0].Pssh(audio))
}

func TestStartNumberAbsentStaysEmpty(t *testing.T) {
	doc := `<MPD><Period><AdaptationSet maxWidth="1280" maxHeight="720">
      <SegmentTemplate timescale="1000" media="seg-$Number$.m4s">
        <SegmentTimeline><S d="4000"/></SegmentTimeline>
      </SegmentTemplate>
      <Representation id="v1" bandwidth="1"><BaseURL>u/</BaseURL></Representation>
    </AdaptationSet></Period></MPD>`
	manifest, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "", manifest.Periods[0].Sets[0].SegmentTemplate.StartNumber)
}

func TestTimelineExpand(t *testing.T) {
	tests := []struct {
		name     string
		segments []S
		want     []uint64
	}{
		{
			name:     "repeat zero yields one segment",
			segments: []S{{D: 4000, R: 0}},
			want:     []uint64{4000},
		},
		{
			name:     "repeat one yields two segments",
			segments: []S{{D: 4000, R: 1}},
			want:     []uint64{4000, 4000},
		},
		{
			name:     "repeat five yields six segments",
			segments: []S{{D: 2000, R: 5}},
			want:     []uint64{2000, 2000, 2000, 2000, 2000, 2000},
		},
		{
			name:     "mixed runs keep declaration order",
			segments: []S{{D: 4000, R: 2}, {D: 2000}},
			want:     []uint64{4000, 4000, 4000, 2000},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := &SegmentTimeline{Segments: tt.segments}
			assert.Equal(t, tt.want, tl.Expand())
		})
	}
}

func TestTimelineExpandFromXML(t *testing.T) {
	// An absent r attribute must behave exactly like r="0".
	doc := `<MPD><Period><AdaptationSet>
      <SegmentTemplate><SegmentTimeline><S d="1000"/><S d="2000" r="0"/></SegmentTimeline></SegmentTemplate>
      <Representation id="a"/>
    </AdaptationSet></Period></MPD>`
	manifest, err := Parse([]byte(doc))
	require.NoError(t, err)

	tl := manifest.Periods[0].Sets[0].SegmentTemplate.Timeline
	assert.Equal(t, []uint64{1000, 2000}, tl.Expand())
}
