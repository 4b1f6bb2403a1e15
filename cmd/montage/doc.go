// Package main hosts the montage CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into spec
// validation, plan compilation, rendering, run history queries, and
// configuration scaffolding. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
