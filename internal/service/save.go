package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ivanceras/diwata-sub000/internal/changeset"
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/schemafilter"
	"github.com/ivanceras/diwata-sub000/internal/value"
)

// SaveChangeset applies cs to the window of name and returns the stored main record.
// Statements run in order without a transaction; the first failure aborts.
func (s *Service) SaveChangeset(ctx context.Context, dsn string, name introspection.TableName, cs changeset.RecordChangeset) (_ *value.Record, err error) {
	ctx, span := startSpan(ctx, "service.save_changeset", name)
	defer func() { finishSpan(span, err) }()

	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	if err := s.checkChangeset(sc.schema, sc.window.Table, cs); err != nil {
		return nil, err
	}

	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()

	exec := changeset.NewExecutor(sc.schema, s.logger.Logger, s.metrics)
	saved, err := exec.Save(ctx, em, sc.window.Table, cs)
	if err != nil {
		s.logRejected(err, name)
		s.logger.Error("changeset failed",
			slog.String("table", name.String()),
			slog.String("action", cs.Action.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.logger.Info("changeset saved",
		slog.String("table", name.String()),
		slog.String("action", cs.Action.String()),
	)
	return saved, nil
}

// SaveContainer applies a grid edit of inserted and updated rows.
func (s *Service) SaveContainer(ctx context.Context, dsn string, container changeset.SaveContainer) (_ *changeset.SaveResult, err error) {
	ctx, span := startSpan(ctx, "service.save_container", container.ForInsert.Table)
	defer func() { finishSpan(span, err) }()

	schema, err := s.cache.GetCachedTables(ctx, dsn)
	if err != nil {
		return nil, err
	}
	for _, batch := range []changeset.TableRows{container.ForInsert, container.ForUpdate} {
		if batch.Rows.Len() == 0 {
			continue
		}
		if err := s.checkWritable(schema, batch.Table, batch.Rows.Columns); err != nil {
			return nil, err
		}
	}

	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()

	return changeset.NewExecutor(schema, s.logger.Logger, s.metrics).SaveContainer(ctx, em, container)
}

func (s *Service) checkChangeset(schema *introspection.Schema, main introspection.TableName, cs changeset.RecordChangeset) error {
	if cs.Record != nil {
		if err := s.checkWritable(schema, main, cs.Record.Columns()); err != nil {
			return err
		}
	}
	for _, change := range cs.OneOnes {
		if change.Record == nil {
			continue
		}
		if err := s.checkWritable(schema, change.Table, change.Record.Columns()); err != nil {
			return err
		}
	}
	for _, change := range cs.HasMany {
		if err := s.checkWritable(schema, change.Table, rowColumns(change.Rows)); err != nil {
			return err
		}
	}
	for _, change := range cs.Indirect {
		if err := s.checkWritable(schema, change.Linker, nil); err != nil {
			return err
		}
		if change.Action == changeset.LinkNew || change.Action == changeset.RelatedEdited {
			if err := s.checkWritable(schema, change.Table, rowColumns(change.Rows)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkWritable rejects views and applies the write deny lists to a table and
// the columns a statement sets.
func (s *Service) checkWritable(schema *introspection.Schema, table introspection.TableName, columns []string) error {
	if t := schema.Table(table); t != nil && t.IsView {
		return fmt.Errorf("%w: %s is a view", ErrReadOnly, table)
	}
	if !schemafilter.MutationTableAllowed(table, s.filters) {
		return fmt.Errorf("%w: table %s", ErrReadOnly, table)
	}
	for _, col := range columns {
		if !schemafilter.MutationColumnAllowed(table, col, s.filters) {
			return fmt.Errorf("%w: column %s.%s", ErrReadOnly, table, col)
		}
	}
	return nil
}

func rowColumns(rows *value.Rows) []string {
	if rows == nil {
		return nil
	}
	return rows.Columns
}
