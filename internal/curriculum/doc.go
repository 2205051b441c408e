// Package curriculum implements the batch curriculum-generation engine.
//
// A QueueService drives an ordered list of topics through two generation
// phases: phase 1 drafts an outline for each topic, and phase 2 expands an
// approved outline into a note. A single scheduler goroutine issues one
// generation call at a time, scanning the queue for phase 1 work before any
// phase 2 work. Failures are handled in two tiers. The RetryPolicy re-attempts
// an item with capped exponential backoff until its budget is spent, and the
// CircuitBreaker halts the whole run after a number of consecutive items fail
// terminally. With auto-approve disabled, drafted outlines wait in
// paused_for_review until UpdateItemStructure approves them; the scheduler
// keeps working on other items meanwhile.
//
// The engine is in-memory. Every state change is pushed to an optional
// SnapshotSaver and published to subscribers as an events.QueueEvent, and a
// restarted process re-seeds a queue with SetQueue.
package curriculum
