// Package encode renders composition plans with ffmpeg: segment passes,
// a stream-copy concat, and a final compositing pass for overlays, subtitle
// burn-in, and the audio mix.
package encode
