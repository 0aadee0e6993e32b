package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termgate/termgate/pkg/remote"
)

type stubSSHLister []remote.SessionInfo

func (s stubSSHLister) List() []remote.SessionInfo { return append([]remote.SessionInfo(nil), s...) }

func TestListSSHSessions(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	router := SSHSessionsRouter(stubSSHLister{
		{
			ID:        "later",
			Title:     "bob@db-1",
			Params:    remote.SafeParams{Host: "db-1", Port: 22, Username: "bob"},
			CreatedAt: base.Add(time.Minute),
			Cols:      80,
			Rows:      30,
		},
		{
			ID:        "earlier",
			Title:     "alice@web-1",
			Params:    remote.SafeParams{Host: "web-1", Port: 2222, Username: "alice"},
			CreatedAt: base,
			Cols:      120,
			Rows:      40,
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var infos []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "earlier", infos[0]["id"])
	assert.Equal(t, "later", infos[1]["id"])

	params, ok := infos[0]["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "web-1", params["host"])
	assert.Equal(t, "alice", params["username"])

	// Secrets must not leak through the listing, under any key.
	lower := strings.ToLower(w.Body.String())
	assert.NotContains(t, lower, "password")
	assert.NotContains(t, lower, "passphrase")
	assert.NotContains(t, lower, "privatekey")
}

func TestListSSHSessionsEmpty(t *testing.T) {
	t.Parallel()

	router := SSHSessionsRouter(stubSSHLister{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
