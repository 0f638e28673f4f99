// Package sqlitevec provides a SQLite-backed persistent index using sqlite-vec.
//
// Each index owns one database file. The serve command hands every
// conversation its own file under the configured vector store directory.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/groundedhq/grounded/pkg/vector"
)

// Index implements vector.Index using SQLite with the sqlite-vec extension.
type Index struct {
	db     *sql.DB
	dim    uint
	logger *zap.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the fingerprint dimensionality. Required.
	Dimensions uint
}

// NewIndex creates a sqlite-vec backed index.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec fingerprint dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrConnection, err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	// vec0 virtual tables use integer rowids, so passage metadata lives in
	// a mapping table keyed by the same rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS passages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			passage_id TEXT NOT NULL UNIQUE,
			doc_id TEXT NOT NULL,
			doc_name TEXT NOT NULL,
			text TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating passages table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS passage_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:     db,
		dim:    c.Dimensions,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Add stores passages and their fingerprints in one transaction.
func (i *Index) Add(ctx context.Context, passages []vector.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	for _, p := range passages {
		if uint(p.Fingerprint.Dim()) != i.dim {
			return fmt.Errorf("%w: index holds %d-dimensional fingerprints, got %d for passage %s",
				vector.ErrDimensionMismatch, i.dim, p.Fingerprint.Dim(), p.ID)
		}
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range passages {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO passages(passage_id, doc_id, doc_name, text) VALUES (?, ?, ?, ?)`,
			p.ID, p.DocID, p.DocName, p.Text,
		)
		if err != nil {
			return fmt.Errorf("inserting passage %s: %w", p.ID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for passage %s: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO passage_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, serializeFloat32(p.Fingerprint.Values),
		); err != nil {
			return fmt.Errorf("inserting embedding for passage %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	i.logger.Debug("added passages to sqlite-vec",
		zap.Int("count", len(passages)),
	)

	return nil
}

// Rank performs a KNN query via vec0 MATCH and joins back to passage metadata.
func (i *Index) Rank(ctx context.Context, query vector.Fingerprint, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rank limit must be positive, got %d", k)
	}
	if uint(query.Dim()) != i.dim {
		return nil, fmt.Errorf("%w: index holds %d-dimensional fingerprints, query has %d",
			vector.ErrDimensionMismatch, i.dim, query.Dim())
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT
			p.passage_id,
			p.doc_id,
			p.doc_name,
			p.text,
			pe.distance
		FROM passage_embeddings pe
		INNER JOIN passages p ON p.rowid = pe.rowid
		WHERE pe.embedding MATCH ?
			AND pe.k = ?
		ORDER BY pe.distance
	`, serializeFloat32(query.Values), k)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	matches := []vector.Match{}
	for rows.Next() {
		var m vector.Match
		var distance float64
		if err := rows.Scan(&m.ID, &m.DocID, &m.DocName, &m.Text, &distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		// vec0 cosine distance is 1 - cosine similarity.
		m.Score = 1.0 - distance
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	i.logger.Debug("ranked passages via sqlite-vec",
		zap.Int("results", len(matches)),
	)

	return matches, nil
}

// Close releases the underlying database handle.
func (i *Index) Close() error {
	return i.db.Close()
}

var _ vector.Index = (*Index)(nil)
