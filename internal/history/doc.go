// Package history records render runs in a local SQLite journal so past
// outputs can be audited by spec, plan digest, and outcome.
package history
