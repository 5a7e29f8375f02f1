package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/patchrag/patchrag/internal/chunk"
	apperrors "github.com/patchrag/patchrag/internal/errors"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	path         TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	file_path    TEXT NOT NULL,
	start_line   INTEGER NOT NULL,
	end_line     INTEGER NOT NULL,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	language     TEXT NOT NULL,
	symbols      TEXT NOT NULL,
	imports      TEXT NOT NULL,
	provenance   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path, start_line);
`

// ChunkStore persists the chunk listing and per-file content hashes in
// SQLite. The BM25 index itself is not persisted; it is rebuilt from the
// stored chunks on load, which keeps the on-disk format trivial and the
// in-memory index free to change shape.
type ChunkStore struct {
	db   *sql.DB
	path string
}

// OpenChunkStore opens (or creates) the store at path and applies the
// schema. WAL mode keeps a reader usable while an index build writes.
func OpenChunkStore(path string) (*ChunkStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "open chunk store")
	}
	// modernc's driver is not safe for concurrent writes on one
	// connection pool entry; a single connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "apply pragma")
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "apply schema")
	}
	if _, err := db.Exec(
		`INSERT INTO meta(key, value) VALUES('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		fmt.Sprintf("%d", schemaVersion),
	); err != nil {
		db.Close()
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "write schema version")
	}

	return &ChunkStore{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the store.
func (s *ChunkStore) Path() string {
	return s.path
}

// ReplaceChunks replaces the full chunk listing and file-hash table in a
// single transaction. Index builds are wholesale: there is no incremental
// mutation, so replace-all is the only write path.
func (s *ChunkStore) ReplaceChunks(ctx context.Context, chunks []*chunk.Chunk, fileHashes map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "begin replace")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "clear chunks")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "clear files")
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(id, file_path, start_line, end_line, content,
			content_hash, language, symbols, imports, provenance)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "prepare chunk insert")
	}
	defer chunkStmt.Close()

	for _, c := range chunks {
		symbols, err := json.Marshal(c.Symbols)
		if err != nil {
			return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "encode symbols")
		}
		imports, err := json.Marshal(c.Imports)
		if err != nil {
			return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "encode imports")
		}
		if _, err := chunkStmt.ExecContext(ctx,
			c.ID, c.FilePath, c.StartLine, c.EndLine, c.Content,
			c.ContentHash, c.Language, string(symbols), string(imports),
			string(c.Provenance),
		); err != nil {
			return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "insert chunk %s", c.ID)
		}
	}

	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files(path, content_hash) VALUES(?, ?)`)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "prepare file insert")
	}
	defer fileStmt.Close()

	for path, hash := range fileHashes {
		if _, err := fileStmt.ExecContext(ctx, path, hash); err != nil {
			return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "insert file %s", path)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "commit replace")
	}
	return nil
}

// LoadChunks returns all stored chunks ordered by (file path, start line).
func (s *ChunkStore) LoadChunks(ctx context.Context) ([]*chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_path, start_line, end_line, content,
			content_hash, language, symbols, imports, provenance
		FROM chunks ORDER BY file_path, start_line`)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "query chunks")
	}
	defer rows.Close()

	var chunks []*chunk.Chunk
	for rows.Next() {
		var c chunk.Chunk
		var symbols, imports, provenance string
		if err := rows.Scan(&c.ID, &c.FilePath, &c.StartLine, &c.EndLine,
			&c.Content, &c.ContentHash, &c.Language, &symbols, &imports,
			&provenance); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "scan chunk")
		}
		if err := json.Unmarshal([]byte(symbols), &c.Symbols); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "decode symbols")
		}
		if err := json.Unmarshal([]byte(imports), &c.Imports); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "decode imports")
		}
		c.Provenance = chunk.Provenance(provenance)
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "iterate chunks")
	}
	return chunks, nil
}

// FileHashes returns the stored path -> content hash map.
func (s *ChunkStore) FileHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content_hash FROM files`)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "query files")
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "scan file")
		}
		hashes[path] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "iterate files")
	}
	return hashes, nil
}

// ChunkCount returns the number of stored chunks.
func (s *ChunkStore) ChunkCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrapf(apperrors.ErrCodeStorage, err, "count chunks")
	}
	return n, nil
}
