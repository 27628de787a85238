package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/pytools/internal/syntax"
)

// Module is an indexed Python file.
type Module struct {
	Name string // dotted module name, e.g. "pkg.sub"
	Path string // absolute file path
	Hash string // xxhash of the file content
}

// Store persists modules and their top-level symbols in SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// OpenStore opens the index database at dbPath. An empty path keeps the
// index in memory.
func OpenStore(dbPath string) (*Store, error) {
	dsn := ":memory:"
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// A single connection keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS modules (
		name TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		module TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		signature TEXT,
		doc TEXT,
		line INTEGER NOT NULL DEFAULT 0,
		col INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (module) REFERENCES modules(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_symbols_module ON symbols(module);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SetRoot records the workspace root the index belongs to. Switching to a
// different root drops every module of the previous one.
func (s *Store) SetRoot(ctx context.Context, root string) error {
	var current string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'root'").Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read index root: %w", err)
	}
	if err == nil && current == root {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM modules"); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES ('root', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		root); err != nil {
		return fmt.Errorf("failed to write index root: %w", err)
	}
	return tx.Commit()
}

// Hash returns the content hash recorded for path.
func (s *Store) Hash(ctx context.Context, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT hash FROM modules WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// Put replaces the module at mod.Path together with its symbols.
func (s *Store) Put(ctx context.Context, mod Module, symbols []syntax.Symbol) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM modules WHERE path = ? OR name = ?", mod.Path, mod.Name); err != nil {
		return fmt.Errorf("failed to remove old module %s: %w", mod.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO modules (name, path, hash) VALUES (?, ?, ?)",
		mod.Name, mod.Path, mod.Hash); err != nil {
		return fmt.Errorf("failed to insert module %s: %w", mod.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO symbols (module, name, kind, signature, doc, line, col) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sym := range symbols {
		if _, err := stmt.ExecContext(ctx, mod.Name, sym.Name, sym.Kind, sym.Signature, sym.Doc, sym.Line, sym.Column); err != nil {
			return fmt.Errorf("failed to insert symbol %s.%s: %w", mod.Name, sym.Name, err)
		}
	}
	return tx.Commit()
}

// Remove drops the module stored for path, if any.
func (s *Store) Remove(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE path = ?", path)
	return err
}

// RemoveUnder drops every module whose file lies in dir.
func (s *Store) RemoveUnder(ctx context.Context, dir string) error {
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	_, err := s.db.ExecContext(ctx, "DELETE FROM modules WHERE substr(path, 1, ?) = ?", len([]rune(prefix)), prefix)
	return err
}

// Paths returns the file paths of all indexed modules.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM modules ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Modules returns the names of all modules starting with prefix, sorted.
func (s *Store) Modules(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM modules WHERE name LIKE ? ESCAPE '\' ORDER BY name`,
		escapeLike(prefix)+"%")
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
		// LIKE ignores ASCII case
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}

// Symbols returns the top-level symbols of module in source order.
func (s *Store) Symbols(ctx context.Context, module string) ([]syntax.Symbol, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, kind, signature, doc, line, col FROM symbols WHERE module = ? ORDER BY id",
		module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []syntax.Symbol
	for rows.Next() {
		var sym syntax.Symbol
		var signature, doc sql.NullString
		if err := rows.Scan(&sym.Name, &sym.Kind, &signature, &doc, &sym.Line, &sym.Column); err != nil {
			return nil, err
		}
		sym.Signature = signature.String
		sym.Doc = doc.String
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
