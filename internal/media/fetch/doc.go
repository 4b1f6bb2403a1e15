// Package fetch resolves remote asset references to local files ahead of
// probing and encoding. Local paths pass through untouched; downloads land
// in the run workspace under collision-free names.
package fetch
