// Package spec defines the typed model of the declarative video description
// and its validator.
//
// A spec carries base-track clips ("videos"), floating overlays ("avatars"),
// subtitle cues, audio tracks, and output settings, all anchored to a single
// absolute timeline clock. Parse tolerates the loose key variants emitted by
// upstream producers; Validate then rejects any spec that violates the
// timeline invariants, reporting every issue at once rather than the first.
package spec
