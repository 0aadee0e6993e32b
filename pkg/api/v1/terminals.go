package v1

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/termgate/termgate/pkg/session"
)

// TerminalLister exposes the public view of live local and sandbox sessions.
type TerminalLister interface {
	List() []session.Info
}

// TerminalsRouter sets up the route listing live local and sandbox sessions.
func TerminalsRouter(terminals TerminalLister) http.Handler {
	routes := &terminalRoutes{terminals: terminals}
	r := chi.NewRouter()
	r.Get("/", routes.listTerminals)
	return r
}

type terminalRoutes struct {
	terminals TerminalLister
}

// listTerminals
//
//	@Summary		List terminals
//	@Description	List all live local and sandbox terminal sessions
//	@Tags			terminals
//	@Produce		json
//	@Success		200	{array}	session.Info
//	@Router			/api/terminals [get]
func (t *terminalRoutes) listTerminals(w http.ResponseWriter, _ *http.Request) {
	infos := t.terminals.List()
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		http.Error(w, "Failed to encode terminal list", http.StatusInternalServerError)
	}
}
