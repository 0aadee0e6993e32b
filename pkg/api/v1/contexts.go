package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/termgate/termgate/pkg/logger"
)

// ContextLister lists the kubectl contexts available on the host.
type ContextLister interface {
	List(ctx context.Context) ([]string, error)
}

// ContextsRouter sets up the kubectl context listing route.
func ContextsRouter(contexts ContextLister) http.Handler {
	routes := &contextRoutes{contexts: contexts}
	r := chi.NewRouter()
	r.Get("/", routes.listContexts)
	return r
}

type contextRoutes struct {
	contexts ContextLister
}

type contextsResponse struct {
	Contexts []string `json:"contexts"`
}

// listContexts
//
//	@Summary		List kubectl contexts
//	@Description	List the contexts known to the host's kubectl, empty when kubectl is absent
//	@Tags			terminals
//	@Produce		json
//	@Success		200	{object}	contextsResponse
//	@Router			/api/kubectl-contexts [get]
func (c *contextRoutes) listContexts(w http.ResponseWriter, r *http.Request) {
	contexts, err := c.contexts.List(r.Context())
	if err != nil {
		// A broken kubectl install should not break the page that embeds
		// the context picker; serve an empty list instead.
		logger.Warnf("failed to list kubectl contexts: %v", err)
		contexts = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(contextsResponse{Contexts: contexts}); err != nil {
		http.Error(w, "Failed to encode context list", http.StatusInternalServerError)
	}
}
