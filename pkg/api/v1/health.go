// Package v1 contains the HTTP handlers of the termgate catalog API.
package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// TerminalCounter reports the number of live terminal sessions.
type TerminalCounter interface {
	Count() int
}

// HealthRouter sets up the health route.
func HealthRouter(terminals TerminalCounter) http.Handler {
	routes := &healthRoutes{terminals: terminals, started: time.Now()}
	r := chi.NewRouter()
	r.Get("/", routes.getHealth)
	return r
}

type healthRoutes struct {
	terminals TerminalCounter
	started   time.Time
}

type healthResponse struct {
	Status    string `json:"status"`
	Terminals int    `json:"terminals"`
	Uptime    int64  `json:"uptime"`
}

//	 getHealth
//		@Summary		Health check
//		@Description	Report daemon health, live session count and uptime in seconds
//		@Tags			system
//		@Produce		json
//		@Success		200	{object}	healthResponse
//		@Router			/health [get]
func (h *healthRoutes) getHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Terminals: h.terminals.Count(),
		Uptime:    int64(time.Since(h.started).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode health response", http.StatusInternalServerError)
	}
}
