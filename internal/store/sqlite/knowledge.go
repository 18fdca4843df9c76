// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/medkg-dev/medkg/internal/store"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
)

// Compile-time interface check.
var _ store.SnapshotStore = (*SnapshotStore)(nil)

// defaultRelLimit caps GetRelationships when RelOpts.Limit is zero.
const defaultRelLimit = 100

// SnapshotStore implements store.SnapshotStore backed by SQLite. Relations
// are kept as RDF-style triples with SPO/POS/OSP indexes; entities and the
// run record live in side tables.
type SnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSnapshotStore opens (or creates) a SQLite database at dbPath and
// initialises the snapshot tables.
func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "migrating snapshot tables: %w", err)
	}

	return &SnapshotStore{db: db, logger: slog.Default()}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	max_depth    INTEGER NOT NULL,
	seeds        TEXT NOT NULL,
	analysis     TEXT
);

CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	label       TEXT NOT NULL,
	description TEXT NOT NULL,
	depth       INTEGER NOT NULL,
	expanded    INTEGER NOT NULL,
	data        TEXT
);

CREATE TABLE IF NOT EXISTS triples (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	subject    TEXT NOT NULL,
	predicate  TEXT NOT NULL,
	object     TEXT NOT NULL,
	label      TEXT NOT NULL,
	qualifiers TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spo ON triples(subject, predicate, object);
CREATE INDEX IF NOT EXISTS idx_pos ON triples(predicate, object, subject);
CREATE INDEX IF NOT EXISTS idx_osp ON triples(object, subject, predicate);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// PutRun replaces the run record. A snapshot holds exactly one run.
func (s *SnapshotStore) PutRun(ctx context.Context, run *store.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	seeds := run.Seeds
	if seeds == nil {
		seeds = []string{}
	}
	seedsJSON, err := json.Marshal(seeds)
	if err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "marshalling run seeds: %w", err)
	}
	var analysis sql.NullString
	if len(run.Analysis) > 0 {
		analysis = sql.NullString{String: string(run.Analysis), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "clearing run record: %w", err)
	}
	const q = `INSERT INTO runs (id, generated_at, max_depth, seeds, analysis) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, run.ID, formatTime(run.GeneratedAt), run.MaxDepth, string(seedsJSON), analysis); err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "putting run %s: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "committing run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run record.
func (s *SnapshotStore) GetRun(ctx context.Context) (*store.Run, error) {
	const q = `SELECT id, generated_at, max_depth, seeds, analysis FROM runs LIMIT 1`

	var (
		run                  store.Run
		generated, seedsJSON string
		analysis             sql.NullString
	)
	err := s.db.QueryRowContext(ctx, q).Scan(&run.ID, &generated, &run.MaxDepth, &seedsJSON, &analysis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, medkgerr.New(medkgerr.CodeStoreRunNotFound, "snapshot has no run record")
		}
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "getting run: %w", err)
	}

	if run.GeneratedAt, err = parseTime(generated); err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "parsing run generated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(seedsJSON), &run.Seeds); err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "decoding run seeds: %w", err)
	}
	if analysis.Valid {
		run.Analysis = json.RawMessage(analysis.String)
	}
	return &run, nil
}

// PutEntities upserts entities in one transaction.
func (s *SnapshotStore) PutEntities(ctx context.Context, entities []*store.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "beginning entity transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.ErrorContext(ctx, "PutEntities rollback failed",
				"entity_count", len(entities),
				"error", rbErr,
			)
		}
	}()

	const q = `INSERT INTO entities (id, label, description, depth, expanded, data)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	label = excluded.label,
	description = excluded.description,
	depth = excluded.depth,
	expanded = excluded.expanded,
	data = excluded.data`

	for _, e := range entities {
		var data sql.NullString
		if len(e.Data) > 0 {
			data = sql.NullString{String: string(e.Data), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, q, e.ID, e.Label, e.Description, e.Depth, e.Expanded, data); err != nil {
			return medkgerr.Wrap(err, medkgerr.CodeStoreDatabaseFailure, "putting entity", medkgerr.FieldNodeID(e.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "committing entity transaction: %w", err)
	}
	return nil
}

const entityColumns = `id, label, description, depth, expanded, data`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner, extra ...any) (*store.Entity, error) {
	var (
		e    store.Entity
		data sql.NullString
	)
	dest := append([]any{&e.ID, &e.Label, &e.Description, &e.Depth, &e.Expanded, &data}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if data.Valid {
		e.Data = json.RawMessage(data.String)
	}
	return &e, nil
}

// GetEntity retrieves an entity by id.
func (s *SnapshotStore) GetEntity(ctx context.Context, id string) (*store.Entity, error) {
	q := `SELECT ` + entityColumns + ` FROM entities WHERE id = ?`

	e, err := scanEntity(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, medkgerr.New(medkgerr.CodeStoreEntityNotFound, "entity "+id+" not found", medkgerr.FieldNodeID(id))
		}
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "getting entity %s: %w", id, err)
	}
	return e, nil
}

// PutRelationships appends triples in one transaction and assigns Seq.
func (s *SnapshotStore) PutRelationships(ctx context.Context, rels []*store.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	for _, r := range rels {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "beginning relationship transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.ErrorContext(ctx, "PutRelationships rollback failed",
				"relationship_count", len(rels),
				"error", rbErr,
			)
		}
	}()

	const q = `INSERT INTO triples (subject, predicate, object, label, qualifiers) VALUES (?, ?, ?, ?, ?)`

	seqs := make([]int64, len(rels))
	for i, r := range rels {
		qualifiers := r.Qualifiers
		if qualifiers == nil {
			qualifiers = []store.Qualifier{}
		}
		qualJSON, err := json.Marshal(qualifiers)
		if err != nil {
			return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "marshalling qualifiers: %w", err)
		}
		res, err := tx.ExecContext(ctx, q, r.FromID, r.Type, r.ToID, r.Label, string(qualJSON))
		if err != nil {
			return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "putting triple %s-%s->%s: %w", r.FromID, r.Type, r.ToID, err)
		}
		if seqs[i], err = res.LastInsertId(); err != nil {
			return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "reading triple seq: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "committing relationship transaction: %w", err)
	}
	for i, r := range rels {
		r.Seq = seqs[i]
	}
	return nil
}

const tripleColumns = `seq, subject, predicate, object, label, qualifiers`

func (s *SnapshotStore) scanRelationships(rows *sql.Rows) ([]*store.Relationship, error) {
	rels := []*store.Relationship{}
	for rows.Next() {
		var (
			r        store.Relationship
			qualJSON string
		)
		if err := rows.Scan(&r.Seq, &r.FromID, &r.Type, &r.ToID, &r.Label, &qualJSON); err != nil {
			return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "scanning triple: %w", err)
		}
		if err := json.Unmarshal([]byte(qualJSON), &r.Qualifiers); err != nil {
			s.logger.Warn("dropping corrupt triple qualifiers",
				slog.String("from_id", r.FromID),
				slog.String("to_id", r.ToID),
				slog.String("error", err.Error()),
			)
			r.Qualifiers = []store.Qualifier{}
		}
		rels = append(rels, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "iterating triples: %w", err)
	}
	return rels, nil
}

// GetRelationships returns triples touching entityID filtered by direction
// and relation type, in Seq order.
func (s *SnapshotStore) GetRelationships(ctx context.Context, entityID string, opts store.RelOpts) ([]*store.Relationship, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}

	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT ` + tripleColumns + ` FROM triples WHERE `)

	switch opts.Direction {
	case store.DirectionIncoming:
		qb.WriteString(`object = ?`)
		args = append(args, entityID)
	case store.DirectionOutgoing:
		qb.WriteString(`subject = ?`)
		args = append(args, entityID)
	default: // "both" or empty
		qb.WriteString(`(subject = ? OR object = ?)`)
		args = append(args, entityID, entityID)
	}

	if opts.Type != "" {
		qb.WriteString(` AND predicate = ?`)
		args = append(args, opts.Type)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultRelLimit
	}
	qb.WriteString(` ORDER BY seq LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "getting relationships for %s: %w", entityID, err)
	}
	defer func() { _ = rows.Close() }()

	return s.scanRelationships(rows)
}

// Traverse walks triples in both directions from startID using a recursive
// CTE and returns the reachable entities with the triples between them.
func (s *SnapshotStore) Traverse(ctx context.Context, startID string, depth int, filter store.TraversalFilter) (*store.Graph, error) {
	if depth <= 0 {
		depth = 1
	}

	// MaxDepth=0 means no additional limit.
	if filter.MaxDepth > 0 && filter.MaxDepth < depth {
		depth = filter.MaxDepth
	}

	if _, err := s.GetEntity(ctx, startID); err != nil {
		return nil, err
	}

	var (
		cte  strings.Builder
		args []any
	)

	var typeFilter string
	var typeArgs []any
	if len(filter.RelationshipTypes) > 0 {
		placeholders := strings.Repeat("?,", len(filter.RelationshipTypes))
		placeholders = placeholders[:len(placeholders)-1]
		typeFilter = ` AND t.predicate IN (` + placeholders + `)`
		for _, rt := range filter.RelationshipTypes {
			typeArgs = append(typeArgs, rt)
		}
	}

	cte.WriteString(`WITH RECURSIVE reachable(node, depth) AS (
	SELECT ?, 0
	UNION
	SELECT CASE WHEN t.subject = r.node THEN t.object ELSE t.subject END, r.depth + 1
	FROM reachable r
	JOIN triples t ON (t.subject = r.node OR t.object = r.node)
	WHERE r.depth < ?`)
	cte.WriteString(typeFilter)
	cte.WriteString(`)
`)
	args = append(args, startID, depth)
	args = append(args, typeArgs...)

	entQ := cte.String() + `SELECT e.` + strings.ReplaceAll(entityColumns, ", ", ", e.") + `, h.hops
FROM entities e
JOIN (SELECT node, MIN(depth) AS hops FROM reachable GROUP BY node) h ON h.node = e.id
ORDER BY h.hops, e.id`

	rows, err := s.db.QueryContext(ctx, entQ, args...)
	if err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "traversing from %s: %w", startID, err)
	}
	g := &store.Graph{Entities: []*store.Entity{}, Hops: map[string]int{}}
	for rows.Next() {
		var hops int
		e, err := scanEntity(rows, &hops)
		if err != nil {
			_ = rows.Close()
			return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "scanning traversal entity: %w", err)
		}
		g.Entities = append(g.Entities, e)
		g.Hops[e.ID] = hops
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "iterating traversal entities: %w", err)
	}
	_ = rows.Close()

	// Relationships between reachable nodes.
	relQ := cte.String() + `SELECT ` + tripleColumns + ` FROM triples t
WHERE t.subject IN (SELECT node FROM reachable)
	AND t.object IN (SELECT node FROM reachable)` + typeFilter + `
ORDER BY t.seq`
	relArgs := append(append([]any{}, args...), typeArgs...)

	relRows, err := s.db.QueryContext(ctx, relQ, relArgs...)
	if err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreDatabaseFailure, "collecting traversal relationships: %w", err)
	}
	defer func() { _ = relRows.Close() }()

	if g.Relationships, err = s.scanRelationships(relRows); err != nil {
		return nil, err
	}
	return g, nil
}

// formatTime serialises a time for storage.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
