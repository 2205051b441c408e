// Package events provides the notification side of the curriculum engine.
//
// Every state-affecting queue operation publishes a QueueEvent carrying a full
// snapshot of the queue. Subscribers (WebSocket streams, CLI progress output,
// tests) register an EventHandler and receive events synchronously in
// subscription order. A failing or panicking handler is logged and never
// prevents delivery to the others.
//
// The primary components are:
// - QueueEvent: A point-in-time snapshot of one workspace queue
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can publish events
package events
