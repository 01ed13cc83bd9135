package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouthilx/track/persistence"
	"github.com/bouthilx/track/structure"
)

func seedStorage(t *testing.T) (*persistence.MemoryStorage, *structure.Project, *structure.TrialGroup, *structure.Trial) {
	t.Helper()

	s := persistence.NewMemory()

	project := structure.NewProject("mnist", "digit classification", nil)
	require.NoError(t, s.InsertProject(project))

	group := structure.NewTrialGroup("lr-sweep", "", nil)
	group.ProjectID = project.UID
	require.NoError(t, s.InsertGroup(group))

	trial := structure.NewTrial()
	trial.Version = "deadbeefcafe"
	trial.Parameters["lr"] = 0.1
	trial.ProjectID = project.UID
	trial.GroupID = group.UID
	require.NoError(t, s.InsertTrial(trial))

	return s, project, group, trial
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _, _ := seedStorage(t)
	h := Handler(s)

	rec := get(t, h, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListProjects(t *testing.T) {
	s, project, _, _ := seedStorage(t)
	h := Handler(s)

	rec := get(t, h, "/api/projects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	projects := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, projects, 1)
	assert.Equal(t, project.UID, projects[0]["uid"])
	assert.Equal(t, "mnist", projects[0]["name"])
}

func TestProjectDetailResolvesReferences(t *testing.T) {
	s, project, group, trial := seedStorage(t)
	h := Handler(s)

	rec := get(t, h, "/api/projects/"+project.UID)
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decodeJSON[struct {
		Project map[string]any   `json:"project"`
		Groups  []map[string]any `json:"groups"`
		Trials  []map[string]any `json:"trials"`
	}](t, rec)

	assert.Equal(t, "mnist", detail.Project["name"])
	require.Len(t, detail.Groups, 1)
	assert.Equal(t, group.UID, detail.Groups[0]["uid"])
	require.Len(t, detail.Trials, 1)
	assert.Equal(t, trial.UID, detail.Trials[0]["uid"])
}

func TestProjectGroupsAndTrials(t *testing.T) {
	s, project, group, trial := seedStorage(t)
	h := Handler(s)

	rec := get(t, h, "/api/projects/"+project.UID+"/groups")
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, groups, 1)
	assert.Equal(t, group.UID, groups[0]["uid"])

	rec = get(t, h, "/api/projects/"+project.UID+"/trials")
	require.Equal(t, http.StatusOK, rec.Code)
	trials := decodeJSON[[]map[string]any](t, rec)
	require.Len(t, trials, 1)
	assert.Equal(t, trial.UID, trials[0]["uid"])
}

func TestUnknownUIDsReturnNotFound(t *testing.T) {
	s, _, _, _ := seedStorage(t)
	h := Handler(s)

	for _, path := range []string{
		"/api/projects/nope",
		"/api/projects/nope/groups",
		"/api/projects/nope/trials",
		"/api/groups/nope",
		"/api/trials/nope",
	} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)

		body := decodeJSON[map[string]any](t, rec)
		assert.Equal(t, persistence.ErrNotFound.Error(), body["error"], path)
	}
}

func TestGroupAndTrialEndpoints(t *testing.T) {
	s, _, group, trial := seedStorage(t)
	h := Handler(s)

	rec := get(t, h, "/api/groups/"+group.UID)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "lr-sweep", got["name"])
	assert.Contains(t, got["trials"], trial.UID)

	rec = get(t, h, "/api/trials/"+trial.UID)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeJSON[map[string]any](t, rec)
	assert.Equal(t, trial.UID, got["uid"])
	assert.Equal(t, "trial", got["dtype"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _, _ := seedStorage(t)
	h := Handler(s)

	// Serve one API request so the counter has something to report.
	get(t, h, "/api/projects")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "track_server_requests_total")
}
