package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

//go:embed sql/schema.sql
var schemaSQL string

// Bootstrap creates the tables and unique indexes if they do not exist.
// Statements are idempotent; running it on every start is safe.
func Bootstrap(ctx context.Context, db core.DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	return nil
}
