// Package probe wraps ffprobe inspection of media assets and adapts it to
// the compiler's Prober contract.
package probe
