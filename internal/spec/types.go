package spec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Clip is a base-track element occupying a fixed slot on the output timeline.
type Clip struct {
	File   string   `json:"file"`
	Start  float64  `json:"start"`
	End    float64  `json:"end"`
	TrimIn *float64 `json:"trim_in,omitempty"`
	// TrimOut bounds the source material used for this slot. When set it marks
	// the trim as explicitly authored, which disables automatic trim-to-fit.
	TrimOut *float64 `json:"trim_out,omitempty"`
	GainDB  float64  `json:"gain_db,omitempty"`
}

// SlotDuration returns the length of the timeline interval the clip occupies.
func (c Clip) SlotDuration() float64 {
	return c.End - c.Start
}

// Window is a visibility interval in absolute timeline seconds.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Overlay floats above the base track: a scaled, positioned element visible
// during one or more windows. Position and size are normalized fractions of
// the output frame, matching the avatar contract of the input format.
type Overlay struct {
	File     string     `json:"file"`
	Position [2]float64 `json:"position"`
	Size     [2]float64 `json:"size"`
	Start    *float64   `json:"start,omitempty"`
	End      *float64   `json:"end,omitempty"`
	Windows  []Window   `json:"windows,omitempty"`
	Z        *int       `json:"z,omitempty"`
}

// DeclaredWindows returns the authored visibility windows. A bare start/end
// pair counts as a single window; an overlay with neither is visible from its
// start for the source's native duration, which only the resolver can know, so
// that case is returned as an open-ended window (End < 0).
func (o Overlay) DeclaredWindows() []Window {
	if len(o.Windows) > 0 {
		return o.Windows
	}
	start := 0.0
	if o.Start != nil {
		start = *o.Start
	}
	end := -1.0
	if o.End != nil {
		end = *o.End
	}
	return []Window{{Start: start, End: end}}
}

// Cue is a single subtitle with absolute timing.
type Cue struct {
	Start float64
	End   float64
	Text  string
	Style string
}

// UnmarshalJSON accepts the tolerant key set used by upstream spec producers:
// the text may arrive as "text", "tetx", "content", or "subtitle", and a
// missing end defaults to start + 2 seconds.
func (c *Cue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start    float64  `json:"start"`
		End      *float64 `json:"end"`
		Text     string   `json:"text"`
		Tetx     string   `json:"tetx"`
		Content  string   `json:"content"`
		Subtitle string   `json:"subtitle"`
		Style    string   `json:"style"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Start = raw.Start
	if raw.End != nil {
		c.End = *raw.End
	} else {
		c.End = raw.Start + 2
	}
	for _, text := range []string{raw.Text, raw.Tetx, raw.Content, raw.Subtitle} {
		if text != "" {
			c.Text = text
			break
		}
	}
	c.Style = raw.Style
	return nil
}

// MarshalJSON keeps cue round-trips on the canonical key set.
func (c Cue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Style string  `json:"style,omitempty"`
	}{c.Start, c.End, c.Text, c.Style})
}

// TrackKind classifies an audio track's role in the mix.
type TrackKind string

const (
	KindNarration TrackKind = "narration"
	KindBGM       TrackKind = "bgm"
	KindBase      TrackKind = "base"
)

// AudioTrack is a narration, background music, or supplemental base layer.
type AudioTrack struct {
	ID      string    `json:"id,omitempty"`
	Kind    TrackKind `json:"kind,omitempty"`
	File    string    `json:"file"`
	Start   float64   `json:"start,omitempty"`
	End     *float64  `json:"end,omitempty"`
	GainDB  float64   `json:"gain_db,omitempty"`
	FadeIn  float64   `json:"fade_in,omitempty"`
	FadeOut float64   `json:"fade_out,omitempty"`
}

// EffectiveKind defaults untagged tracks to narration, matching the original
// input contract where the audios list carried the voice track.
func (t AudioTrack) EffectiveKind() TrackKind {
	if t.Kind == "" {
		return KindNarration
	}
	return t.Kind
}

// Output describes the target rendition.
type Output struct {
	Resolution [2]int  `json:"resolution"`
	FPS        float64 `json:"fps"`
}

// Spec is the typed representation of the input document.
type Spec struct {
	Videos    []Clip       `json:"videos"`
	Avatars   []Overlay    `json:"avatars,omitempty"`
	Subtitles []Cue        `json:"subtitles,omitempty"`
	Audios    []AudioTrack `json:"audios,omitempty"`
	Output    Output       `json:"output"`
}

// TotalDuration is the shared timeline length: the latest clip end.
func (s *Spec) TotalDuration() float64 {
	total := 0.0
	for _, clip := range s.Videos {
		if clip.End > total {
			total = clip.End
		}
	}
	return total
}

// AssetRefs returns every referenced media source, deduplicated, in first-use
// order.
func (s *Spec) AssetRefs() []string {
	seen := make(map[string]struct{})
	var refs []string
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	for _, clip := range s.Videos {
		add(clip.File)
	}
	for _, overlay := range s.Avatars {
		add(overlay.File)
	}
	for _, track := range s.Audios {
		add(track.File)
	}
	return refs
}

func entityLabel(kind string, index int) string {
	return fmt.Sprintf("%s[%d]", kind, index)
}
