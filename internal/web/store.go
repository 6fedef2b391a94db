package web

import (
	"context"

	"github.com/JonMunkholm/statements/internal/core"
	"github.com/JonMunkholm/statements/internal/store"
)

// Store is the persistence the API uses. *store.Store satisfies it.
type Store interface {
	ListSchemas(ctx context.Context) ([]core.SchemaDefinition, error)
	UpsertSchema(ctx context.Context, def core.SchemaDefinition) error
	DeleteSchema(ctx context.Context, name string) (bool, error)
	RecordRun(ctx context.Context, run store.Run) (store.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]store.Run, error)
}

var _ Store = (*store.Store)(nil)
