package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouthilx/track/structure"
)

func seedGraph(t *testing.T, s Storage) (*structure.Project, *structure.TrialGroup, *structure.Trial) {
	t.Helper()

	p := structure.NewProject("mnist", "digit classification", map[string]string{"team": "vision"})
	require.NoError(t, s.InsertProject(p))

	g := structure.NewTrialGroup("lr-sweep", "learning rate sweep", nil)
	g.ProjectID = p.UID
	require.NoError(t, s.InsertGroup(g))

	trial := structure.NewTrial()
	trial.Name = "baseline"
	trial.Version = "deadbeef"
	trial.Parameters["lr"] = 0.1
	trial.Parameters["epochs"] = 10.0
	trial.Metrics["loss"] = []any{0.9, 0.5, 0.3}
	trial.ProjectID = p.UID
	require.NoError(t, s.InsertTrial(trial))

	g.Trials = append(g.Trials, trial.UID)
	return p, g, trial
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnist.json")

	s, err := OpenFile(path)
	require.NoError(t, err)
	p, g, trial := seedGraph(t, s)
	require.NoError(t, s.Commit(context.Background(), ""))
	require.NoError(t, s.Close())

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	defer reopened.Close()

	gotProject, err := reopened.GetProjectByName("mnist")
	require.NoError(t, err)
	require.NotNil(t, gotProject)
	if diff := cmp.Diff(p, gotProject); diff != "" {
		t.Errorf("project mismatch (-want +got):\n%s", diff)
	}

	gotGroup, err := reopened.GetGroupByName("lr-sweep")
	require.NoError(t, err)
	require.NotNil(t, gotGroup)
	if diff := cmp.Diff(g, gotGroup); diff != "" {
		t.Errorf("group mismatch (-want +got):\n%s", diff)
	}

	gotTrial, err := reopened.GetTrial(trial.UID)
	require.NoError(t, err)
	require.NotNil(t, gotTrial)
	if diff := cmp.Diff(trial, gotTrial); diff != "" {
		t.Errorf("trial mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStorage_CommitWritesRevisionSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	s, err := OpenFile(path)
	require.NoError(t, err)
	seedGraph(t, s)
	require.NoError(t, s.Commit(context.Background(), ""))

	_, err = os.Stat(path)
	require.NoError(t, err)

	rev, err := readRevision(revPath(path))
	require.NoError(t, err)
	assert.Equal(t, 1, rev.Revision)
	assert.False(t, rev.LastUpdated.IsZero())

	require.NoError(t, s.Commit(context.Background(), ""))
	rev, err = readRevision(revPath(path))
	require.NoError(t, err)
	assert.Equal(t, 2, rev.Revision)
}

func TestFileStorage_RefreshPicksUpForeignCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.json")

	writer, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, writer.InsertProject(structure.NewProject("first", "", nil)))
	require.NoError(t, writer.Commit(context.Background(), ""))

	reader, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, writer.InsertProject(structure.NewProject("second", "", nil)))
	require.NoError(t, writer.Commit(context.Background(), ""))

	require.NoError(t, reader.Refresh(context.Background()))
	p, err := reader.GetProjectByName("second")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestFileStorage_RefreshSkipsWhenRevisionUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stable.json")

	writer, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, writer.InsertProject(structure.NewProject("only", "", nil)))
	require.NoError(t, writer.Commit(context.Background(), ""))

	reader, err := OpenFile(path)
	require.NoError(t, err)

	// Unsaved local state must survive a refresh that has nothing to load.
	require.NoError(t, reader.InsertProject(structure.NewProject("local", "", nil)))
	require.NoError(t, reader.Refresh(context.Background()))

	p, err := reader.GetProjectByName("local")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestFileStorage_CommitPathOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.json")
	override := filepath.Join(dir, "copy.json")

	s, err := OpenFile(path)
	require.NoError(t, err)
	seedGraph(t, s)
	require.NoError(t, s.Commit(context.Background(), override))

	_, err = os.Stat(override)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStorage_MissingFileStartsEmpty(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	defer s.Close()

	projects, err := s.FetchProjects(nil)
	require.NoError(t, err)
	assert.Empty(t, projects)
}
