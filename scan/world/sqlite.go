package world

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/redstone-tools/tickpack/scan"
)

// SQLiteGrid is a cell accessor over a SQLite database, so a build larger
// than memory can be scanned. Clearing a cell deletes its row.
type SQLiteGrid struct {
	db    *sql.DB
	world string
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA busy_timeout=5000;",
}

const cellsTable = `CREATE TABLE IF NOT EXISTS cells (
	world TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	z INTEGER NOT NULL,
	kind TEXT NOT NULL,
	attrs TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (world, x, y, z)
)`

// OpenSQLite opens (or creates) the database at path and scopes lookups to world.
func OpenSQLite(path, world string) (*SQLiteGrid, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening grid database: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range sqlitePragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("grid database %s: %w", p, err)
		}
	}
	if _, err := db.Exec(cellsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating cells table: %w", err)
	}
	return &SQLiteGrid{db: db, world: world}, nil
}

// Close releases the database.
func (g *SQLiteGrid) Close() error { return g.db.Close() }

// World returns the world the grid is scoped to.
func (g *SQLiteGrid) World() string { return g.world }

// Import copies every cell of src into the database in one transaction,
// under src's world.
func (g *SQLiteGrid) Import(src *Grid) (int, error) {
	tx, err := g.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO cells (world, x, y, z, kind, attrs) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	n := 0
	var insertErr error
	src.Each(func(c scan.Coordinate, cell Cell) {
		if insertErr != nil {
			return
		}
		attrs, err := json.Marshal(cell.Attrs)
		if cell.Attrs == nil {
			attrs = []byte("{}")
		}
		if err != nil {
			insertErr = err
			return
		}
		if _, err := stmt.Exec(c.World, c.X, c.Y, c.Z, cell.Kind.String(), string(attrs)); err != nil {
			insertErr = err
			return
		}
		n++
	})
	if insertErr != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("importing cells: %w", insertErr)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return n, nil
}

func (g *SQLiteGrid) lookup(c scan.Coordinate) (string, string, error) {
	var kind, attrs string
	err := g.db.QueryRow(`SELECT kind, attrs FROM cells WHERE world = ? AND x = ? AND y = ? AND z = ?`,
		c.World, c.X, c.Y, c.Z).Scan(&kind, &attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	return kind, attrs, err
}

// Kind implements scan.CellAccessor.
func (g *SQLiteGrid) Kind(c scan.Coordinate) (scan.ElementKind, error) {
	name, _, err := g.lookup(c)
	if err != nil || name == "" {
		return scan.Air, err
	}
	return scan.ParseElementKind(name)
}

// Attributes implements scan.CellAccessor.
func (g *SQLiteGrid) Attributes(c scan.Coordinate) (scan.Attributes, error) {
	_, raw, err := g.lookup(c)
	if err != nil {
		return nil, err
	}
	attrs := scan.Attributes{}
	if raw == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes at %s: %w", c, err)
	}
	return attrs, nil
}

// Clear implements scan.CellAccessor.
func (g *SQLiteGrid) Clear(c scan.Coordinate) error {
	_, err := g.db.Exec(`DELETE FROM cells WHERE world = ? AND x = ? AND y = ? AND z = ?`, c.World, c.X, c.Y, c.Z)
	return err
}

// Count returns the number of stored cells in the grid's world.
func (g *SQLiteGrid) Count() (int, error) {
	var n int
	err := g.db.QueryRow(`SELECT COUNT(*) FROM cells WHERE world = ?`, g.world).Scan(&n)
	return n, err
}
