package migrations

import (
	"github.com/jmoiron/sqlx"
)

// Run creates the database schema. Application state lives in named,
// versioned JSON documents; the keys mirror the logical stores (inventory,
// sales, settings, users).
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
            key TEXT PRIMARY KEY,
            version INTEGER NOT NULL,
            value TEXT NOT NULL,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
