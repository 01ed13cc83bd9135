package persistence

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bouthilx/track/structure"
)

// table is the in-memory object graph every backend buffers: one map per
// object kind, name indexes for projects and groups, and insertion-ordered
// uid lists so iteration and serialization stay deterministic.
type table struct {
	mu sync.RWMutex

	projects map[string]*structure.Project
	groups   map[string]*structure.TrialGroup
	trials   map[string]*structure.Trial

	projectNames map[string]string
	groupNames   map[string]string

	projectOrder []string
	groupOrder   []string
	trialOrder   []string
}

func newTable() *table {
	return &table{
		projects:     map[string]*structure.Project{},
		groups:       map[string]*structure.TrialGroup{},
		trials:       map[string]*structure.Trial{},
		projectNames: map[string]string{},
		groupNames:   map[string]string{},
	}
}

func (t *table) InsertProject(p *structure.Project) error {
	if p.Name == "" {
		return fmt.Errorf("insert project: %w", ErrNameRequired)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if uid, ok := t.projectNames[p.Name]; ok {
		return fmt.Errorf("insert project %q (uid: %s): %w", p.Name, uid, ErrDuplicateName)
	}
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	if _, ok := t.projects[p.UID]; ok {
		return fmt.Errorf("insert project %q: uid %s already present", p.Name, p.UID)
	}

	t.projects[p.UID] = p
	t.projectNames[p.Name] = p.UID
	t.projectOrder = append(t.projectOrder, p.UID)
	return nil
}

func (t *table) InsertGroup(g *structure.TrialGroup) error {
	if g.Name == "" {
		return fmt.Errorf("insert group: %w", ErrNameRequired)
	}
	if g.ProjectID == "" {
		return fmt.Errorf("insert group %q: %w", g.Name, ErrNoProject)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if uid, ok := t.groupNames[g.Name]; ok {
		return fmt.Errorf("insert group %q (uid: %s): %w", g.Name, uid, ErrDuplicateName)
	}
	project, ok := t.projects[g.ProjectID]
	if !ok {
		return fmt.Errorf("insert group %q: project %s: %w", g.Name, g.ProjectID, ErrInconsistent)
	}
	if g.UID == "" {
		g.UID = uuid.NewString()
	}
	if _, ok := t.groups[g.UID]; ok {
		return fmt.Errorf("insert group %q: uid %s already present", g.Name, g.UID)
	}

	t.groups[g.UID] = g
	t.groupNames[g.Name] = g.UID
	t.groupOrder = append(t.groupOrder, g.UID)
	project.Groups = append(project.Groups, g.UID)
	return nil
}

func (t *table) InsertTrial(trial *structure.Trial) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	hash := trial.Hash()
	uid := trialUID(hash, trial.Revision)

	if existing, ok := t.trials[uid]; ok {
		if existing == trial {
			// Same trial registered twice, nothing to do.
			return nil
		}
		rev := t.maxRevision(hash) + 1
		logrus.Warnf("trial %s already recorded, increasing revision number (rev=%d)", uid, rev)
		trial.Revision = rev
		uid = trialUID(hash, rev)
	}
	trial.UID = uid

	t.trials[uid] = trial
	t.trialOrder = append(t.trialOrder, uid)

	if trial.ProjectID != "" {
		project, ok := t.projects[trial.ProjectID]
		if !ok {
			return fmt.Errorf("insert trial %s: project %s: %w", uid, trial.ProjectID, ErrInconsistent)
		}
		project.Trials = append(project.Trials, uid)
	} else {
		logrus.Warnf("orphan trial %s, no project set", uid)
	}

	if trial.GroupID != "" {
		group, ok := t.groups[trial.GroupID]
		if !ok {
			return fmt.Errorf("insert trial %s: group %s: %w", uid, trial.GroupID, ErrInconsistent)
		}
		group.Trials = append(group.Trials, uid)
	}
	return nil
}

func trialUID(hash string, revision int) string {
	return fmt.Sprintf("%s_%d", hash, revision)
}

// maxRevision scans trials sharing the hash. Callers hold the lock.
func (t *table) maxRevision(hash string) int {
	max := 0
	prefix := hash + "_"
	for uid, trial := range t.trials {
		if strings.HasPrefix(uid, prefix) && trial.Revision > max {
			max = trial.Revision
		}
	}
	return max
}

func (t *table) GetProject(uid string) (*structure.Project, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.projects[uid], nil
}

func (t *table) GetProjectByName(name string) (*structure.Project, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	uid, ok := t.projectNames[name]
	if !ok {
		return nil, nil
	}
	project, ok := t.projects[uid]
	if !ok {
		return nil, fmt.Errorf("project %q (uid: %s) found in index: %w", name, uid, ErrInconsistent)
	}
	return project, nil
}

func (t *table) GetGroup(uid string) (*structure.TrialGroup, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.groups[uid], nil
}

func (t *table) GetGroupByName(name string) (*structure.TrialGroup, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	uid, ok := t.groupNames[name]
	if !ok {
		return nil, nil
	}
	group, ok := t.groups[uid]
	if !ok {
		return nil, fmt.Errorf("group %q (uid: %s) found in index: %w", name, uid, ErrInconsistent)
	}
	return group, nil
}

func (t *table) GetTrial(uid string) (*structure.Trial, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.trials[uid], nil
}

func (t *table) FetchProjects(q Query) ([]*structure.Project, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*structure.Project
	for _, uid := range t.projectOrder {
		project, ok := t.projects[uid]
		if !ok {
			logrus.Warnf("stale project (uid: %s), skipping", uid)
			continue
		}
		selected, err := Match(project, q)
		if err != nil {
			return nil, err
		}
		if selected {
			out = append(out, project)
		}
	}
	return out, nil
}

func (t *table) FetchGroups(q Query) ([]*structure.TrialGroup, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*structure.TrialGroup
	for _, uid := range t.groupOrder {
		group, ok := t.groups[uid]
		if !ok {
			logrus.Warnf("stale group (uid: %s), skipping", uid)
			continue
		}
		selected, err := Match(group, q)
		if err != nil {
			return nil, err
		}
		if selected {
			out = append(out, group)
		}
	}
	return out, nil
}

func (t *table) FetchTrials(q Query) ([]*structure.Trial, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*structure.Trial
	for _, uid := range t.trialOrder {
		trial, ok := t.trials[uid]
		if !ok {
			logrus.Warnf("stale trial (uid: %s), skipping", uid)
			continue
		}
		selected, err := Match(trial, q)
		if err != nil {
			return nil, err
		}
		if selected {
			out = append(out, trial)
		}
	}
	return out, nil
}

// snapshot is the serialized form of the table shared by the file, SQL and
// pebble backends. Ordering follows insertion order.
type snapshot struct {
	Projects []*structure.Project    `json:"projects"`
	Groups   []*structure.TrialGroup `json:"groups"`
	Trials   []*structure.Trial      `json:"trials"`
}

func (t *table) snapshot() snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := snapshot{
		Projects: make([]*structure.Project, 0, len(t.projectOrder)),
		Groups:   make([]*structure.TrialGroup, 0, len(t.groupOrder)),
		Trials:   make([]*structure.Trial, 0, len(t.trialOrder)),
	}
	for _, uid := range t.projectOrder {
		if p, ok := t.projects[uid]; ok {
			snap.Projects = append(snap.Projects, p)
		}
	}
	for _, uid := range t.groupOrder {
		if g, ok := t.groups[uid]; ok {
			snap.Groups = append(snap.Groups, g)
		}
	}
	for _, uid := range t.trialOrder {
		if tr, ok := t.trials[uid]; ok {
			snap.Trials = append(snap.Trials, tr)
		}
	}
	return snap
}

// restore replaces the table content with a loaded snapshot, rebuilding the
// name indexes from the objects themselves.
func (t *table) restore(snap snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.projects = make(map[string]*structure.Project, len(snap.Projects))
	t.groups = make(map[string]*structure.TrialGroup, len(snap.Groups))
	t.trials = make(map[string]*structure.Trial, len(snap.Trials))
	t.projectNames = make(map[string]string, len(snap.Projects))
	t.groupNames = make(map[string]string, len(snap.Groups))
	t.projectOrder = t.projectOrder[:0]
	t.groupOrder = t.groupOrder[:0]
	t.trialOrder = t.trialOrder[:0]

	for _, p := range snap.Projects {
		t.projects[p.UID] = p
		t.projectNames[p.Name] = p.UID
		t.projectOrder = append(t.projectOrder, p.UID)
	}
	for _, g := range snap.Groups {
		t.groups[g.UID] = g
		t.groupNames[g.Name] = g.UID
		t.groupOrder = append(t.groupOrder, g.UID)
	}
	for _, tr := range snap.Trials {
		t.trials[tr.UID] = tr
		t.trialOrder = append(t.trialOrder, tr.UID)
	}
}
