package session

import (
	"context"

	"github.com/roach88/nopg/internal/migrate"
	"github.com/roach88/nopg/internal/model"
	"github.com/roach88/nopg/internal/validate"
)

var stdLibrary = LibrarySource{
	Name:        validate.StdLibraryName,
	Content:     validate.StdLibrary,
	ContentType: validate.ContentTypeCUE,
	Meta:        map[string]any{"builtin": true},
}

// Init prepares the store: compatibility checks, migration to the latest
// registered version, then the builtin libraries. It queues nothing.
func (s *Session) Init(ctx context.Context) *Session {
	return s.run(ctx, "init", model.KindSchemaVersion, func() (any, error) {
		if err := s.tx.CheckCompatibility(ctx); err != nil {
			return nil, err
		}
		if _, err := s.db.migrations.Upgrade(ctx, s.tx, s.db.migrations.Latest()); err != nil {
			return nil, err
		}
		if _, err := s.importLibrary(ctx, stdLibrary); err != nil {
			return nil, err
		}
		return noResult{}, nil
	})
}

// Migrate upgrades the layout to target and queues the version the store
// held before.
func (s *Session) Migrate(ctx context.Context, target int) *Session {
	return s.run(ctx, "migrate", model.KindSchemaVersion, func() (any, error) {
		return s.db.migrations.Upgrade(ctx, s.tx, target)
	})
}

// LatestAppliedVersion queues the stored schema version, -1 for a store
// that was never initialized.
func (s *Session) LatestAppliedVersion(ctx context.Context) *Session {
	return s.run(ctx, "latestAppliedVersion", model.KindSchemaVersion, func() (any, error) {
		return migrate.CurrentVersion(ctx, s.tx)
	})
}
