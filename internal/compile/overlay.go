package compile

import (
	"sort"

	"montage/internal/spec"
)

// OverlayPlacement is one overlay mapped onto the base timeline: a minimal
// set of non-overlapping visibility windows plus its transform and draw rank.
type OverlayPlacement struct {
	Index    int
	Source   string
	Position [2]float64
	Size     [2]float64
	Z        int
	Windows  []spec.Window
}

// ResolveOverlays intersects each overlay's declared windows with the
// timeline bounds, closes open-ended windows at the source's native duration,
// and merges a single overlay's overlapping or touching windows.
//
// Draw order is deterministic: placements are returned bottom-to-top, sorted
// by explicit z-index ascending, with declaration order breaking ties. Two
// overlays with identical windows and no z-index therefore stack in the order
// they were declared.
func ResolveOverlays(s *spec.Spec, resolver *Resolver, total float64, opts Options) ([]OverlayPlacement, error) {
	placements := make([]OverlayPlacement, 0, len(s.Avatars))
	for i, overlay := range s.Avatars {
		info, ok := resolver.Lookup(overlay.File)
		if !ok {
			return nil, Wrap(ErrInternal, "overlays", entity("avatar", i), "asset duration not resolved before compilation", nil)
		}

		windows := make([]spec.Window, 0, len(overlay.Windows)+1)
		for _, window := range overlay.DeclaredWindows() {
			if window.End < 0 {
				window.End = window.Start + info.Duration
			}
			if window.Start < 0 {
				window.Start = 0
			}
			if window.End > total {
				window.End = total
			}
			if window.End-window.Start <= opts.GapTolerance {
				continue
			}
			windows = append(windows, window)
		}
		if len(windows) == 0 {
			continue
		}

		sort.Slice(windows, func(a, b int) bool { return windows[a].Start < windows[b].Start })
		merged := windows[:1]
		for _, window := range windows[1:] {
			last := &merged[len(merged)-1]
			if window.Start <= last.End+opts.GapTolerance {
				if window.End > last.End {
					last.End = window.End
				}
				continue
			}
			merged = append(merged, window)
		}

		z := 0
		if overlay.Z != nil {
			z = *overlay.Z
		}
		placements = append(placements, OverlayPlacement{
			Index:    i,
			Source:   overlay.File,
			Position: overlay.Position,
			Size:     overlay.Size,
			Z:        z,
			Windows:  append([]spec.Window(nil), merged...),
		})
	}

	sort.SliceStable(placements, func(a, b int) bool {
		if placements[a].Z != placements[b].Z {
			return placements[a].Z < placements[b].Z
		}
		return placements[a].Index < placements[b].Index
	})
	return placements, nil
}

// VisibleAt returns the ordered stack (bottom to top) of placements whose
// windows cover the instant t.
func VisibleAt(placements []OverlayPlacement, t float64) []OverlayPlacement {
	var stack []OverlayPlacement
	for _, placement := range placements {
		for _, window := range placement.Windows {
			if t >= window.Start && t < window.End {
				stack = append(stack, placement)
				break
			}
		}
	}
	return stack
}
