// Package structure defines the entities tracked by the client: a Trial is a
// single experiment run, a Project is a named container of trials, and a
// TrialGroup is a named sub-container within a project.
package structure

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Trial is one experiment run and everything logged against it.
// Fields are mutated by the logger while the run is in flight and only
// persisted when the owning storage commits.
type Trial struct {
	UID         string            `json:"uid"`
	Revision    int               `json:"revision"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Tags        map[string]string `json:"tags"`
	Version     string            `json:"version"`
	ProjectID   string            `json:"project_id"`
	GroupID     string            `json:"group_id"`
	Parameters  map[string]any    `json:"parameters"`
	Metadata    map[string]any    `json:"metadata"`
	Metrics     map[string]any    `json:"metrics"`
	Chronos     map[string]any    `json:"chronos"`
	Errors      []string          `json:"errors"`
	Status      Status            `json:"status"`
}

// NewTrial returns a trial with initialized containers and status "new".
func NewTrial() *Trial {
	return &Trial{
		Tags:       map[string]string{},
		Parameters: map[string]any{},
		Metadata:   map[string]any{},
		Metrics:    map[string]any{},
		Chronos:    map[string]any{},
		Status:     StatusNew,
	}
}

// Hash identifies the trial by content: two trials with the same version and
// parameters hash identically, so re-running the same configuration maps to
// the same trial lineage. encoding/json sorts map keys, which makes the
// digest independent of parameter insertion order.
func (t *Trial) Hash() string {
	h := sha256.New()
	h.Write([]byte(t.Version))
	if params, err := json.Marshal(t.Parameters); err == nil {
		h.Write(params)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Project is a named container of trials. Groups and Trials hold UIDs in
// insertion order; the objects themselves live in the storage table.
type Project struct {
	UID         string            `json:"uid"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Tags        map[string]string `json:"tags"`
	Groups      []string          `json:"groups"`
	Trials      []string          `json:"trials"`
}

// NewProject returns a project with the given identity. The UID is left
// empty; assigning one is the storage's responsibility.
func NewProject(name, description string, tags map[string]string) *Project {
	if tags == nil {
		tags = map[string]string{}
	}
	return &Project{
		Name:        name,
		Description: description,
		Tags:        tags,
		Groups:      []string{},
		Trials:      []string{},
	}
}

// TrialGroup is a named sub-container of trials within a project.
type TrialGroup struct {
	UID         string            `json:"uid"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Tags        map[string]string `json:"tags"`
	ProjectID   string            `json:"project_id"`
	Trials      []string          `json:"trials"`
}

// NewTrialGroup returns a group with the given identity and no owner; the
// storage assigns the UID and the client binds it to a project.
func NewTrialGroup(name, description string, tags map[string]string) *TrialGroup {
	if tags == nil {
		tags = map[string]string{}
	}
	return &TrialGroup{
		Name:        name,
		Description: description,
		Tags:        tags,
		Trials:      []string{},
	}
}
