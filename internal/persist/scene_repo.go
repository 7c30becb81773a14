package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Revision is one saved version of a scene file.
type Revision struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Checksum  uint64    `json:"checksum"`
	Entities  int       `json:"entities"`
	CreatedAt time.Time `json:"created_at"`
}

// SceneRepo stores scene revision history.
type SceneRepo struct {
	db  *DB
	log *zap.Logger
}

func NewSceneRepo(db *DB) *SceneRepo {
	return &SceneRepo{db: db, log: db.log}
}

// Checksum is the content fingerprint used to skip identical saves.
func Checksum(content []byte) uint64 { return xxhash.Sum64(content) }

// SaveRevision records content for path unless the latest revision of path
// already has the same checksum, in which case that revision is returned and
// created is false.
func (r *SceneRepo) SaveRevision(ctx context.Context, path, name string, entities int, content []byte) (rev Revision, created bool, err error) {
	sum := Checksum(content)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return Revision{}, false, fmt.Errorf("revision begin: %w", err)
	}
	defer tx.Rollback(ctx)

	latest, err := scanRevision(tx.QueryRow(ctx,
		`SELECT id, scene_path, scene_name, checksum, entities, created_at
		 FROM scene_revisions WHERE scene_path = $1
		 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, path))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return Revision{}, false, fmt.Errorf("revision latest: %w", err)
	case latest.Checksum == sum:
		return latest, false, nil
	}

	rev = Revision{
		ID:        uuid.New(),
		Path:      path,
		Name:      name,
		Checksum:  sum,
		Entities:  entities,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO scene_revisions (id, scene_path, scene_name, content, checksum, entities, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rev.ID, rev.Path, rev.Name, string(content), int64(rev.Checksum), rev.Entities, rev.CreatedAt,
	); err != nil {
		return Revision{}, false, fmt.Errorf("revision insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Revision{}, false, fmt.Errorf("revision commit: %w", err)
	}
	r.log.Debug("scene revision saved", zap.String("path", path), zap.Stringer("id", rev.ID))
	return rev, true, nil
}

// List returns up to limit revisions of path, newest first.
func (r *SceneRepo) List(ctx context.Context, path string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, scene_path, scene_name, checksum, entities, created_at
		 FROM scene_revisions WHERE scene_path = $1
		 ORDER BY created_at DESC LIMIT $2`, path, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// Content loads the stored document of one revision.
func (r *SceneRepo) Content(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var content string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT content::text FROM scene_revisions WHERE id = $1`, id,
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func scanRevision(row pgx.Row) (Revision, error) {
	var rev Revision
	var sum int64
	if err := row.Scan(&rev.ID, &rev.Path, &rev.Name, &sum, &rev.Entities, &rev.CreatedAt); err != nil {
		return Revision{}, err
	}
	rev.Checksum = uint64(sum)
	return rev, nil
}
