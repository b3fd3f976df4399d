package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCache implements ports.IndexCache on a single SQLite file.
// It holds one index at a time; Save replaces whatever was there.
type SQLiteCache struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteCache opens (or creates) index.db under dataPath.
func NewSQLiteCache(dataPath string) (*SQLiteCache, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataPath, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	c := &SQLiteCache{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_meta (
		cache_key TEXT PRIMARY KEY,
		entries INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS index_vectors (
		cache_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (cache_key, position)
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Load returns the vectors stored under key, in position order.
// A partial or corrupted entry is reported as a miss.
func (c *SQLiteCache) Load(ctx context.Context, key string) ([][]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries int
	err := c.db.QueryRowContext(ctx, "SELECT entries FROM index_meta WHERE cache_key = ?", key).Scan(&entries)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading index meta: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT position, embedding FROM index_vectors WHERE cache_key = ? ORDER BY position", key)
	if err != nil {
		return nil, false, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	vectors := make([][]float32, 0, entries)
	for rows.Next() {
		var position int
		var embeddingJSON []byte
		if err := rows.Scan(&position, &embeddingJSON); err != nil {
			return nil, false, fmt.Errorf("scanning row: %w", err)
		}
		if position != len(vectors) {
			return nil, false, nil
		}
		var v []float32
		if err := json.Unmarshal(embeddingJSON, &v); err != nil {
			return nil, false, nil
		}
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating rows: %w", err)
	}
	if len(vectors) != entries {
		return nil, false, nil
	}
	return vectors, true, nil
}

// Save replaces the cached index with vectors under key.
func (c *SQLiteCache) Save(ctx context.Context, key string, vectors [][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_vectors"); err != nil {
		return fmt.Errorf("clearing vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
		return fmt.Errorf("clearing meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO index_vectors (cache_key, position, embedding) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, v := range vectors {
		embeddingJSON, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, key, i, embeddingJSON); err != nil {
			return fmt.Errorf("inserting vector: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO index_meta (cache_key, entries) VALUES (?, ?)", key, len(vectors)); err != nil {
		return fmt.Errorf("writing index meta: %w", err)
	}

	return tx.Commit()
}

// Clear drops the cached index.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, "DELETE FROM index_vectors"); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, "DELETE FROM index_meta")
	return err
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
