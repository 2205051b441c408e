// Package domain contains the core entities of the curriculum engine: queue
// items, their status state machine and the workspace keys that scope a queue.
// It has no dependencies on infrastructure or delivery mechanisms.
package domain
