// Package subtitles renders subtitle cues as SubRip documents for burn-in.
package subtitles
