package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouthilx/track/structure"
)

func TestInsertProject_AssignsUIDAndIndexesName(t *testing.T) {
	s := NewMemory()

	p := structure.NewProject("mnist", "digit classification", nil)
	require.NoError(t, s.InsertProject(p))
	assert.NotEmpty(t, p.UID)

	got, err := s.GetProjectByName("mnist")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.UID, got.UID)
}

func TestInsertProject_RejectsDuplicateName(t *testing.T) {
	s := NewMemory()

	require.NoError(t, s.InsertProject(structure.NewProject("mnist", "", nil)))
	err := s.InsertProject(structure.NewProject("mnist", "", nil))
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestInsertProject_RequiresName(t *testing.T) {
	s := NewMemory()
	err := s.InsertProject(structure.NewProject("", "", nil))
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestInsertGroup_RegistersUnderProject(t *testing.T) {
	s := NewMemory()
	p := structure.NewProject("mnist", "", nil)
	require.NoError(t, s.InsertProject(p))

	g := structure.NewTrialGroup("lr-sweep", "", nil)
	g.ProjectID = p.UID
	require.NoError(t, s.InsertGroup(g))

	assert.NotEmpty(t, g.UID)
	assert.Equal(t, []string{g.UID}, p.Groups)

	got, err := s.GetGroupByName("lr-sweep")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, g.UID, got.UID)
}

func TestInsertGroup_RequiresProject(t *testing.T) {
	s := NewMemory()

	g := structure.NewTrialGroup("lr-sweep", "", nil)
	assert.ErrorIs(t, s.InsertGroup(g), ErrNoProject)

	g.ProjectID = "no-such-project"
	assert.ErrorIs(t, s.InsertGroup(g), ErrInconsistent)
}

func TestInsertGroup_RejectsDuplicateName(t *testing.T) {
	s := NewMemory()
	p := structure.NewProject("mnist", "", nil)
	require.NoError(t, s.InsertProject(p))

	g1 := structure.NewTrialGroup("sweep", "", nil)
	g1.ProjectID = p.UID
	require.NoError(t, s.InsertGroup(g1))

	g2 := structure.NewTrialGroup("sweep", "", nil)
	g2.ProjectID = p.UID
	assert.ErrorIs(t, s.InsertGroup(g2), ErrDuplicateName)
}

func TestInsertTrial_DerivesUIDFromHashAndRevision(t *testing.T) {
	s := NewMemory()
	p := structure.NewProject("mnist", "", nil)
	require.NoError(t, s.InsertProject(p))

	trial := structure.NewTrial()
	trial.Parameters["lr"] = 0.1
	trial.Version = "v1"
	trial.ProjectID = p.UID
	require.NoError(t, s.InsertTrial(trial))

	assert.Equal(t, trial.Hash()+"_0", trial.UID)
	assert.Equal(t, []string{trial.UID}, p.Trials)
}

func TestInsertTrial_SamePointerIsIdempotent(t *testing.T) {
	s := NewMemory()
	p := structure.NewProject("mnist", "", nil)
	require.NoError(t, s.InsertProject(p))

	trial := structure.NewTrial()
	trial.Parameters["lr"] = 0.1
	trial.ProjectID = p.UID
	require.NoError(t, s.InsertTrial(trial))
	require.NoError(t, s.InsertTrial(trial))

	assert.Equal(t, 0, trial.Revision)
	assert.Equal(t, []string{trial.UID}, p.Trials)
}

func TestInsertTrial_BumpsRevisionOnCollision(t *testing.T) {
	s := NewMemory()
	p := structure.NewProject("mnist", "", nil)
	require.NoError(t, s.InsertProject(p))

	first := structure.NewTrial()
	first.Parameters["lr"] = 0.1
	first.Version = "v1"
	first.ProjectID = p.UID
	require.NoError(t, s.InsertTrial(first))

	second := structure.NewTrial()
	second.Parameters["lr"] = 0.1
	second.Version = "v1"
	second.ProjectID = p.UID
	require.NoError(t, s.InsertTrial(second))

	assert.Equal(t, 1, second.Revision)
	assert.Equal(t, first.Hash()+"_1", second.UID)
	assert.NotEqual(t, first.UID, second.UID)

	third := structure.NewTrial()
	third.Parameters["lr"] = 0.1
	third.Version = "v1"
	third.ProjectID = p.UID
	require.NoError(t, s.InsertTrial(third))
	assert.Equal(t, 2, third.Revision)
}

func TestInsertTrial_OrphanIsAccepted(t *testing.T) {
	s := NewMemory()

	trial := structure.NewTrial()
	trial.Parameters["lr"] = 0.1
	require.NoError(t, s.InsertTrial(trial))

	got, err := s.GetTrial(trial.UID)
	require.NoError(t, err)
	assert.Same(t, trial, got)
}

func TestInsertTrial_DanglingGroupIsInconsistent(t *testing.T) {
	s := NewMemory()

	trial := structure.NewTrial()
	trial.GroupID = "no-such-group"
	assert.ErrorIs(t, s.InsertTrial(trial), ErrInconsistent)
}

func TestGetProjectByName_MissingObjectIsInconsistent(t *testing.T) {
	s := NewMemory()
	p := structure.NewProject("mnist", "", nil)
	require.NoError(t, s.InsertProject(p))

	// Simulate a corrupted table: index entry without its object.
	s.table.mu.Lock()
	delete(s.table.projects, p.UID)
	s.table.mu.Unlock()

	_, err := s.GetProjectByName("mnist")
	assert.ErrorIs(t, err, ErrInconsistent)
}

func TestGet_MissReturnsNilWithoutError(t *testing.T) {
	s := NewMemory()

	p, err := s.GetProject("nope")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = s.GetProjectByName("nope")
	require.NoError(t, err)
	assert.Nil(t, p)

	g, err := s.GetGroupByName("nope")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestFetchTrials_FiltersByQuery(t *testing.T) {
	s := NewMemory()
	p := structure.NewProject("mnist", "", nil)
	require.NoError(t, s.InsertProject(p))

	for _, lr := range []float64{0.1, 0.01, 0.001} {
		trial := structure.NewTrial()
		trial.Parameters["lr"] = lr
		trial.ProjectID = p.UID
		require.NoError(t, s.InsertTrial(trial))
	}

	all, err := s.FetchTrials(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := s.FetchTrials(Query{"project_id": p.UID})
	require.NoError(t, err)
	assert.Len(t, scoped, 3)

	none, err := s.FetchTrials(Query{"project_id": "other"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFetchProjects_PreservesInsertionOrder(t *testing.T) {
	s := NewMemory()
	for _, name := range []string{"zebra", "alpha", "mango"} {
		require.NoError(t, s.InsertProject(structure.NewProject(name, "", nil)))
	}

	projects, err := s.FetchProjects(nil)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "zebra", projects[0].Name)
	assert.Equal(t, "alpha", projects[1].Name)
	assert.Equal(t, "mango", projects[2].Name)
}
