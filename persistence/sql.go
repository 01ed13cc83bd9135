package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/bouthilx/track/structure"
)

func init() {
	Register("sqlite", func(ctx context.Context, uri URI) (Storage, error) {
		return OpenSQL(ctx, "libsql", "file:"+uri.Location())
	})
	Register("libsql", func(ctx context.Context, uri URI) (Storage, error) {
		return OpenSQL(ctx, "libsql", uri.Raw)
	})
	Register("mysql", func(ctx context.Context, uri URI) (Storage, error) {
		return OpenSQL(ctx, "mysql", uri.Location())
	})
}

// dialect carries the statements that differ between SQLite and MySQL. The
// schema itself is shared, only the upsert syntax diverges.
type dialect struct {
	name          string
	upsertProject string
	upsertGroup   string
	upsertTrial   string
}

var dialects = map[string]dialect{
	"libsql": {
		name: "libsql",
		upsertProject: `INSERT INTO track_projects (uid, name, data) VALUES (?, ?, ?)
			ON CONFLICT(uid) DO UPDATE SET name = excluded.name, data = excluded.data`,
		upsertGroup: `INSERT INTO track_groups (uid, name, project_id, data) VALUES (?, ?, ?, ?)
			ON CONFLICT(uid) DO UPDATE SET name = excluded.name, project_id = excluded.project_id, data = excluded.data`,
		upsertTrial: `INSERT INTO track_trials (uid, hash, revision, project_id, group_id, data) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(uid) DO UPDATE SET hash = excluded.hash, revision = excluded.revision,
			project_id = excluded.project_id, group_id = excluded.group_id, data = excluded.data`,
	},
	"mysql": {
		name: "mysql",
		upsertProject: `INSERT INTO track_projects (uid, name, data) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE name = VALUES(name), data = VALUES(data)`,
		upsertGroup: `INSERT INTO track_groups (uid, name, project_id, data) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE name = VALUES(name), project_id = VALUES(project_id), data = VALUES(data)`,
		upsertTrial: `INSERT INTO track_trials (uid, hash, revision, project_id, group_id, data) VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE hash = VALUES(hash), revision = VALUES(revision),
			project_id = VALUES(project_id), group_id = VALUES(group_id), data = VALUES(data)`,
	},
}

// SQLStorage buffers the object graph in memory and flushes it to a SQL
// database on Commit, one upsert per object inside a single transaction.
// Entities live in a JSON payload column, the indexed columns exist for
// out-of-band queries.
type SQLStorage struct {
	*table
	db      *sql.DB
	dialect dialect
}

// OpenSQL connects to the database, applies pending migrations and loads the
// stored object graph.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStorage, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("sql storage: no dialect for driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql storage: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql storage: ping: %w", err)
	}

	version, err := Migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logrus.Debugf("sql storage at schema version %d", version)

	s := newSQLStorage(db, d)
	if err := s.load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLStorage(db *sql.DB, d dialect) *SQLStorage {
	return &SQLStorage{table: newTable(), db: db, dialect: d}
}

// DB exposes the underlying database handle.
func (s *SQLStorage) DB() *sql.DB {
	return s.db
}

// MigrationVersion reports the applied schema version and dirty state.
func (s *SQLStorage) MigrationVersion(ctx context.Context) (int, bool, error) {
	return currentMigrationVersion(ctx, s.db)
}

func (s *SQLStorage) load(ctx context.Context) error {
	var snap snapshot

	if err := loadRows(ctx, s.db, `SELECT data FROM track_projects ORDER BY uid`, func(raw []byte) error {
		var p structure.Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		snap.Projects = append(snap.Projects, &p)
		return nil
	}); err != nil {
		return fmt.Errorf("sql storage: load projects: %w", err)
	}

	if err := loadRows(ctx, s.db, `SELECT data FROM track_groups ORDER BY uid`, func(raw []byte) error {
		var g structure.TrialGroup
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		snap.Groups = append(snap.Groups, &g)
		return nil
	}); err != nil {
		return fmt.Errorf("sql storage: load groups: %w", err)
	}

	if err := loadRows(ctx, s.db, `SELECT data FROM track_trials ORDER BY uid`, func(raw []byte) error {
		var t structure.Trial
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		snap.Trials = append(snap.Trials, &t)
		return nil
	}); err != nil {
		return fmt.Errorf("sql storage: load trials: %w", err)
	}

	s.restore(snap)
	return nil
}

func loadRows(ctx context.Context, db *sql.DB, query string, scan func(raw []byte) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if err := scan(raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLStorage) Refresh(ctx context.Context) error {
	return s.load(ctx)
}

func (s *SQLStorage) Commit(ctx context.Context, pathOverride string) error {
	if pathOverride != "" {
		logrus.Debugf("sql storage ignores path override %q", pathOverride)
	}

	snap := s.snapshot()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql storage: commit: %w", err)
	}
	defer tx.Rollback()

	for _, p := range snap.Projects {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("sql storage: commit project %s: %w", p.UID, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.upsertProject, p.UID, p.Name, string(raw)); err != nil {
			return fmt.Errorf("sql storage: commit project %s: %w", p.UID, err)
		}
	}
	for _, g := range snap.Groups {
		raw, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("sql storage: commit group %s: %w", g.UID, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.upsertGroup, g.UID, g.Name, g.ProjectID, string(raw)); err != nil {
			return fmt.Errorf("sql storage: commit group %s: %w", g.UID, err)
		}
	}
	for _, t := range snap.Trials {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("sql storage: commit trial %s: %w", t.UID, err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.upsertTrial,
			t.UID, t.Hash(), t.Revision, t.ProjectID, t.GroupID, string(raw)); err != nil {
			return fmt.Errorf("sql storage: commit trial %s: %w", t.UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sql storage: commit: %w", err)
	}
	return nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
