// Package catalog keeps a SQLite record of ingested point clouds.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/npcloud/internal/monitoring"
	"github.com/banshee-data/npcloud/internal/pointcloud"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("catalog: record not found")

// CloudRecord is the stored summary of one decoded file.
type CloudRecord struct {
	ID            uuid.UUID
	Source        string
	Format        pointcloud.Format
	ArrayName     string
	PointCount    int
	SourceColumns int
	Normalized    bool
	// Min and Max are zero for empty clouds. NaN bounds survive a round
	// trip.
	Min, Max   pointcloud.Vec3
	Attributes []string
	CreatedAt  time.Time
}

// Store is a catalog backed by a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the catalog at path and migrates it to the latest
// schema. Use ":memory:" for a throwaway catalog.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps :memory: databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure catalog: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Debugf("[catalog] opened %s", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a summary of pc decoded from source and returns it.
func (s *Store) Record(ctx context.Context, source string, pc *pointcloud.PointCloudData) (CloudRecord, error) {
	if pc == nil {
		return CloudRecord{}, errors.New("catalog: nil point cloud")
	}

	rec := CloudRecord{
		ID:            uuid.New(),
		Source:        source,
		Format:        pc.Format,
		ArrayName:     pc.ArrayName,
		PointCount:    pc.PointCount,
		SourceColumns: pc.SourceColumns,
		Normalized:    pc.Normalized,
		Min:           pc.Bounds.Min,
		Max:           pc.Bounds.Max,
		CreatedAt:     s.now().UTC(),
	}
	for _, a := range pc.Attributes {
		rec.Attributes = append(rec.Attributes, a.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CloudRecord{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO clouds (
			cloud_id, source, format, array_name, point_count, source_columns, normalized,
			min_x, min_y, min_z, max_x, max_y, max_z, created_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Source, string(rec.Format), rec.ArrayName, rec.PointCount,
		rec.SourceColumns, rec.Normalized,
		nullable(rec.Min[0]), nullable(rec.Min[1]), nullable(rec.Min[2]),
		nullable(rec.Max[0]), nullable(rec.Max[1]), nullable(rec.Max[2]),
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return CloudRecord{}, fmt.Errorf("insert cloud: %w", err)
	}

	for i, name := range rec.Attributes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cloud_attributes (cloud_id, position, name) VALUES (?, ?, ?)`,
			rec.ID.String(), i, name); err != nil {
			return CloudRecord{}, fmt.Errorf("insert attribute %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return CloudRecord{}, err
	}
	monitoring.Debugf("[catalog] recorded %s as %s", source, rec.ID)
	return rec, nil
}

const selectClouds = `
	SELECT cloud_id, source, format, array_name, point_count, source_columns, normalized,
	       min_x, min_y, min_z, max_x, max_y, max_z, created_unix_ns
	FROM clouds`

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (CloudRecord, error) {
	row := s.db.QueryRowContext(ctx, selectClouds+` WHERE cloud_id = ?`, id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CloudRecord{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return CloudRecord{}, err
	}
	if rec.Attributes, err = s.attributes(ctx, id); err != nil {
		return CloudRecord{}, err
	}
	return rec, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns all records.
func (s *Store) List(ctx context.Context, limit int) ([]CloudRecord, error) {
	query := selectClouds + ` ORDER BY created_unix_ns DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CloudRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Attributes, err = s.attributes(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes the record with the given ID and its attributes.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cloud_attributes WHERE cloud_id = ?`, id.String()); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM clouds WHERE cloud_id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *Store) attributes(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM cloud_attributes WHERE cloud_id = ? ORDER BY position`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (CloudRecord, error) {
	var (
		rec     CloudRecord
		id      string
		format  string
		bounds  [6]sql.NullFloat64
		created int64
	)
	err := sc.Scan(&id, &rec.Source, &format, &rec.ArrayName, &rec.PointCount, &rec.SourceColumns,
		&rec.Normalized, &bounds[0], &bounds[1], &bounds[2], &bounds[3], &bounds[4], &bounds[5], &created)
	if err != nil {
		return CloudRecord{}, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return CloudRecord{}, fmt.Errorf("stored id %q: %w", id, err)
	}
	rec.Format = pointcloud.Format(format)
	for i := 0; i < 3; i++ {
		rec.Min[i] = fromNullable(bounds[i])
		rec.Max[i] = fromNullable(bounds[3+i])
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

// SQLite stores NaN as NULL.
func nullable(v float32) sql.NullFloat64 {
	if math.IsNaN(float64(v)) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(v), Valid: true}
}

func fromNullable(v sql.NullFloat64) float32 {
	if !v.Valid {
		return float32(math.NaN())
	}
	return float32(v.Float64)
}
