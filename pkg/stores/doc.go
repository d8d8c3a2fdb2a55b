// Package stores provides the run history persistence layer. It includes
// SQLite-based storage with WAL mode and embedded migrations for runs,
// per-resource outcomes, and progress events, plus a Recorder adapter that
// plugs directly into the engine.
package stores
