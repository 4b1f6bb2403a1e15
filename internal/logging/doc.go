// Package logging centralizes slog construction for the montage CLI.
//
// It offers a human-oriented console handler (with ANSI color when writing to
// a terminal) and a JSON handler for machine consumption, selected via
// configuration. Log output can be teed into the configured log directory.
package logging
