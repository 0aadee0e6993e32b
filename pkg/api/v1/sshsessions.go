package v1

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/termgate/termgate/pkg/remote"
)

// SSHSessionLister exposes the credential-stripped view of live SSH sessions.
type SSHSessionLister interface {
	List() []remote.SessionInfo
}

// SSHSessionsRouter sets up the route listing live SSH sessions.
func SSHSessionsRouter(remotes SSHSessionLister) http.Handler {
	routes := &sshSessionRoutes{remotes: remotes}
	r := chi.NewRouter()
	r.Get("/", routes.listSessions)
	return r
}

type sshSessionRoutes struct {
	remotes SSHSessionLister
}

// listSessions
//
//	@Summary		List SSH sessions
//	@Description	List all live SSH sessions; connection parameters are credential-stripped
//	@Tags			ssh
//	@Produce		json
//	@Success		200	{array}	remote.SessionInfo
//	@Router			/api/ssh-sessions [get]
func (s *sshSessionRoutes) listSessions(w http.ResponseWriter, _ *http.Request) {
	infos := s.remotes.List()
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		http.Error(w, "Failed to encode session list", http.StatusInternalServerError)
	}
}
