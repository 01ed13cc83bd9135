// Package persistence stores the experiment object graph. Every backend
// buffers the graph in an in-memory object table and differs only in how the
// table is loaded when the storage is opened and flushed when it is
// committed. Backends register themselves under a URI scheme; Open dispatches
// on the scheme of the storage URI.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bouthilx/track/structure"
)

var (
	// ErrNameRequired is returned when inserting a project or group without
	// a name. Names are the lookup key, unnamed objects would be
	// unreachable.
	ErrNameRequired = errors.New("name is required")

	// ErrDuplicateName is returned when a project or group name is already
	// registered. Names are unique per storage.
	ErrDuplicateName = errors.New("name already registered")

	// ErrNoProject is returned when an operation needs an owning project
	// and none is set.
	ErrNoProject = errors.New("no project set")

	// ErrNotFound is returned by callers resolving an object that does not
	// exist. Lookups themselves report absence with a nil object.
	ErrNotFound = errors.New("not found")

	// ErrInconsistent reports an index entry or reference pointing at an
	// object missing from the table.
	ErrInconsistent = errors.New("object referenced but missing from table")

	// ErrUnknownScheme is returned by Open for unregistered URI schemes.
	ErrUnknownScheme = errors.New("unknown storage scheme")
)

// Storage holds projects, trial groups and trials. Inserts assign UIDs and
// maintain the name indexes and cross references. Lookups return nil without
// an error when the object does not exist. Implementations are safe for
// concurrent use.
type Storage interface {
	InsertProject(p *structure.Project) error
	InsertGroup(g *structure.TrialGroup) error
	InsertTrial(t *structure.Trial) error

	GetProject(uid string) (*structure.Project, error)
	GetProjectByName(name string) (*structure.Project, error)
	GetGroup(uid string) (*structure.TrialGroup, error)
	GetGroupByName(name string) (*structure.TrialGroup, error)
	GetTrial(uid string) (*structure.Trial, error)

	FetchProjects(q Query) ([]*structure.Project, error)
	FetchGroups(q Query) ([]*structure.TrialGroup, error)
	FetchTrials(q Query) ([]*structure.Trial, error)

	// Refresh reloads the table from the underlying medium, discarding
	// unsaved changes when the medium moved on.
	Refresh(ctx context.Context) error

	// Commit persists the table. pathOverride redirects file-like backends
	// to another destination; backends without one ignore it.
	Commit(ctx context.Context, pathOverride string) error

	Close() error
}

// OpenFunc builds a storage from a parsed URI.
type OpenFunc func(ctx context.Context, uri URI) (Storage, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]OpenFunc{}
)

// Register makes a storage backend available under the given URI scheme.
// Backends register themselves in their init.
func Register(scheme string, open OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[scheme]; dup {
		panic(fmt.Sprintf("persistence: scheme %q registered twice", scheme))
	}
	backends[scheme] = open
}

// Schemes reports the registered scheme names, sorted.
func Schemes() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	out := make([]string, 0, len(backends))
	for s := range backends {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open parses a storage URI and opens the backend registered for its scheme.
func Open(ctx context.Context, raw string) (Storage, error) {
	uri, err := ParseURI(raw)
	if err != nil {
		return nil, err
	}

	backendsMu.RLock()
	open, ok := backends[uri.Scheme]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("open %q: %w: %q", raw, ErrUnknownScheme, uri.Scheme)
	}

	storage, err := open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", raw, err)
	}
	return storage, nil
}
