// Package compile implements the timeline compiler: it resolves a validated
// spec's absolutely-timed clips, overlays, subtitles, and audio tracks into a
// deterministic CompositionPlan for the external encoder.
//
// The stages run in a fixed order. The duration resolver probes every unique
// asset once (concurrently, bounded, cached for the run). The timeline
// compiler fits each clip to its slot, stretching short sources into slow
// motion and trimming or compressing long ones. The overlay resolver clips
// visibility windows to the timeline and fixes a deterministic draw order.
// The audio mix planner layers base, narration, and BGM audio with ducking
// envelopes. The emitter linearizes everything into the plan.
//
// Every failure aborts the run with one of the package's sentinel errors; a
// partial or best-effort plan is never produced.
package compile
