package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termgate/termgate/pkg/session"
)

type stubTerminalLister []session.Info

func (s stubTerminalLister) List() []session.Info { return append([]session.Info(nil), s...) }

func TestListTerminals(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Deliberately out of order: the route sorts by creation time.
	router := TerminalsRouter(stubTerminalLister{
		{ID: "b", Kind: session.KindSandbox, Title: "alpine", Image: "alpine:3.20", CreatedAt: base.Add(time.Minute), Cols: 80, Rows: 30},
		{ID: "a", Kind: session.KindLocal, Title: "Terminal 1", CreatedAt: base, Cols: 120, Rows: 40},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var infos []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0]["id"])
	assert.Equal(t, "local", infos[0]["kind"])
	assert.Equal(t, "b", infos[1]["id"])
	assert.Equal(t, "alpine:3.20", infos[1]["image"])

	// Local sessions carry no image; the field must be omitted, not empty.
	_, hasImage := infos[0]["image"]
	assert.False(t, hasImage)
}

func TestListTerminalsEmpty(t *testing.T) {
	t.Parallel()

	router := TerminalsRouter(stubTerminalLister{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
