package api

import (
	"github.com/go-chi/chi/v5"
)

// RegisterWorkspaceRoutes mounts the workspace listing and the queue
// endpoints under /workspaces/{workspaceID}. Callers apply authentication to
// r beforehand.
func RegisterWorkspaceRoutes(r chi.Router, queue *QueueHandler, stream *StreamHandler) {
	r.Get("/workspaces", queue.ListWorkspaces)

	r.Route("/workspaces/{"+workspaceIDParam+"}/queue", func(r chi.Router) {
		r.Get("/", queue.GetQueue)
		r.Put("/", queue.SetQueue)
		r.Delete("/", queue.ClearQueue)

		r.Post("/start", queue.StartRun)
		r.Post("/stop", queue.StopRun)
		r.Post("/circuit/reset", queue.ResetCircuit)
		r.Put("/order", queue.Reorder)

		if stream != nil {
			r.Get("/stream", stream.Stream)
		}

		r.Route("/items/{"+itemIDParam+"}", func(r chi.Router) {
			r.Get("/", queue.GetItem)
			r.Delete("/", queue.RemoveItem)
			r.Patch("/position", queue.MoveItem)
			r.Put("/structure", queue.UpdateStructure)
			r.Post("/reject", queue.RejectStructure)
			r.Post("/retry", queue.RetryItem)
			r.Get("/note", queue.GetNote)
		})
	})
}
