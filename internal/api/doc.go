// Package api exposes a curriculum workspace over HTTP. Each authenticated
// user owns any number of workspaces, and each workspace holds one generation
// queue. The handlers translate requests into QueueService operations, map
// engine errors to status codes, and stream queue snapshots over WebSocket.
package api
