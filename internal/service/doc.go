// Package service contains the application layer between the delivery
// mechanisms (HTTP API, CLI) and the curriculum engine.
//
// WorkspaceManager owns one curriculum.QueueService per workspace. Services
// are created on first use with the shared generators, retry settings and
// stores, and are re-seeded from the last persisted snapshot so a restarted
// process picks up where it left off. Items that were mid-call when the
// snapshot was taken are rolled back to their last stable status.
//
// The adapters in this package connect the engine's NoteSink and
// SnapshotSaver ports to the store interfaces.
package service
