package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ivanceras/diwata-sub000/internal/dbexec"
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/planner"
	"github.com/ivanceras/diwata-sub000/internal/value"
	"github.com/ivanceras/diwata-sub000/internal/window"
)

// TabRecord is the single related record of a one-one tab; Record is nil when absent.
type TabRecord struct {
	Table  introspection.TableName `json:"table"`
	Record *value.Record           `json:"record"`
}

// TabRows is the first page of a has-many tab.
type TabRows struct {
	Table introspection.TableName `json:"table"`
	Rows  *value.Rows             `json:"rows"`
}

// IndirectRows is the first page of an indirect tab.
type IndirectRows struct {
	Table  introspection.TableName `json:"table"`
	Linker introspection.TableName `json:"linker"`
	Rows   *value.Rows             `json:"rows"`
}

// RecordDetail is one record with the first page of every related tab.
type RecordDetail struct {
	Record   *value.Record  `json:"record"`
	OneOnes  []TabRecord    `json:"one_ones"`
	HasMany  []TabRows      `json:"has_many"`
	Indirect []IndirectRows `json:"indirect"`
}

// ListRecords returns one page of the main tab of a window, filtered and sorted.
// Rows.Count carries the unpaged total.
func (s *Service) ListRecords(ctx context.Context, dsn string, name introspection.TableName, filter planner.Filter, sorts []planner.Sort, page int) (_ *value.Rows, err error) {
	ctx, span := startSpan(ctx, "service.list_records", name)
	defer func() { finishSpan(span, err) }()

	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	listing, err := sc.planner.Listing(sc.window.MainTab, filter, sorts, s.page(page))
	if err != nil {
		s.logRejected(err, name)
		return nil, err
	}
	count, err := sc.planner.Count(sc.window.MainTab, filter)
	if err != nil {
		return nil, err
	}

	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := em.ExecuteSQLWithReturn(ctx, listing.SQL, listing.Args)
	if err != nil {
		return nil, err
	}
	if err := listing.Recast(rows); err != nil {
		return nil, err
	}
	total, err := em.ExecuteSQLWithOneReturn(ctx, count.SQL, count.Args)
	if err != nil {
		return nil, err
	}
	n, ok := total.Get("count").AsInt64()
	if !ok {
		return nil, fmt.Errorf("count of %s: unexpected value %s", name, total.Get("count"))
	}
	rows.Count = &n
	return rows, nil
}

// RecordDetail fetches the record identified by id together with its one-one
// records and the first page of every has-many and indirect tab.
func (s *Service) RecordDetail(ctx context.Context, dsn string, name introspection.TableName, id string) (_ *RecordDetail, err error) {
	ctx, span := startSpan(ctx, "service.record_detail", name)
	defer func() { finishSpan(span, err) }()

	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := s.fetchRecord(ctx, em, sc, id)
	if err != nil {
		return nil, err
	}
	detail := &RecordDetail{Record: record}
	w := sc.window

	for _, tab := range w.OneOneTabs {
		q, err := sc.planner.Related(tab, w.Table, record, planner.Page{Number: 1, Size: 1})
		if err != nil {
			return nil, err
		}
		rec, err := em.ExecuteSQLWithMaybeOneReturn(ctx, q.SQL, q.Args)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if err := q.RecastRecord(rec); err != nil {
				return nil, err
			}
		}
		detail.OneOnes = append(detail.OneOnes, TabRecord{Table: tab.Table, Record: rec})
	}

	for _, tab := range w.HasManyTabs {
		rows, err := s.related(ctx, em, sc, tab, record, 1)
		if err != nil {
			return nil, err
		}
		detail.HasMany = append(detail.HasMany, TabRows{Table: tab.Table, Rows: rows})
	}

	for _, it := range w.IndirectTabs {
		rows, err := s.indirect(ctx, em, sc, it, record, 1)
		if err != nil {
			return nil, err
		}
		detail.Indirect = append(detail.Indirect, IndirectRows{Table: it.Tab.Table, Linker: it.Linker, Rows: rows})
	}
	return detail, nil
}

// HasManyPage returns one page of the has-many tab for table under the record id.
func (s *Service) HasManyPage(ctx context.Context, dsn string, name introspection.TableName, id string, table introspection.TableName, page int) (*value.Rows, error) {
	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	tab, ok := sc.window.HasManyTab(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no has-many tab %s", ErrNoMatchingWindow, name, table)
	}
	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()

	parent, err := s.fetchRecord(ctx, em, sc, id)
	if err != nil {
		return nil, err
	}
	return s.related(ctx, em, sc, tab, parent, page)
}

// IndirectPage returns one page of the indirect tab for table reached through
// linker. A zero linker selects the first linker reaching table.
func (s *Service) IndirectPage(ctx context.Context, dsn string, name introspection.TableName, id string, table, linker introspection.TableName, page int) (*value.Rows, error) {
	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	it, ok := sc.window.IndirectTabVia(table, linker)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no indirect tab %s", ErrNoMatchingWindow, name, table)
	}
	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()

	parent, err := s.fetchRecord(ctx, em, sc, id)
	if err != nil {
		return nil, err
	}
	return s.indirect(ctx, em, sc, it, parent, page)
}

// DeleteRecords deletes the main-table records identified by ids.
func (s *Service) DeleteRecords(ctx context.Context, dsn string, name introspection.TableName, ids []string) (err error) {
	ctx, span := startSpan(ctx, "service.delete_records", name)
	defer func() { finishSpan(span, err) }()

	if len(ids) == 0 {
		return nil
	}
	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return err
	}
	table := sc.schema.Table(sc.window.Table)
	if table == nil {
		return fmt.Errorf("%w: %s", ErrNoMatchingWindow, name)
	}
	if err := s.checkWritable(sc.schema, table.Name, nil); err != nil {
		return err
	}

	keys := make([][]value.Value, 0, len(ids))
	for _, id := range ids {
		key, err := value.ParseRecordID(id, table.PrimaryKeyTypes())
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	q, err := planner.PlanDelete(table, keys)
	if err != nil {
		return err
	}

	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return err
	}
	defer release()
	if _, err := em.ExecuteSQLWithReturn(ctx, q.SQL, q.Args); err != nil {
		return err
	}
	s.logger.Info("deleted records", slog.String("table", table.Name.String()), slog.Int("count", len(keys)))
	return nil
}

// ExecuteRawSQL runs caller-supplied SQL inside a read-only transaction.
// The statement is not validated against table metadata.
func (s *Service) ExecuteRawSQL(ctx context.Context, dsn, query string) (*value.Rows, error) {
	db, err := s.source.DB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &dbexec.Error{Op: "begin", SQL: query, Err: err}
	}
	// Nothing is ever committed.
	defer func() { _ = tx.Rollback() }()

	s.logger.Warn("executing raw sql", slog.String("sql", query))
	return dbexec.NewManager(dbexec.NewTxExecutor(tx), s.logger.Logger).ExecuteSQLWithReturn(ctx, query, nil)
}

func (s *Service) fetchRecord(ctx context.Context, em dbexec.EntityManager, sc *scope, id string) (*value.Record, error) {
	table := sc.schema.Table(sc.window.Table)
	if table == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingWindow, sc.window.Table)
	}
	pk, err := value.ParseRecordID(id, table.PrimaryKeyTypes())
	if err != nil {
		return nil, err
	}
	q, err := sc.planner.Detail(sc.window.MainTab, pk)
	if err != nil {
		return nil, err
	}
	rec, err := em.ExecuteSQLWithMaybeOneReturn(ctx, q.SQL, q.Args)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrRecordNotFound, table.Name, id)
	}
	if err := q.RecastRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) related(ctx context.Context, em dbexec.EntityManager, sc *scope, tab window.Tab, parent *value.Record, page int) (*value.Rows, error) {
	q, err := sc.planner.Related(tab, sc.window.Table, parent, s.page(page))
	if err != nil {
		return nil, err
	}
	return s.fetchRows(ctx, em, q)
}

func (s *Service) indirect(ctx context.Context, em dbexec.EntityManager, sc *scope, it window.IndirectTab, parent *value.Record, page int) (*value.Rows, error) {
	q, err := sc.planner.Indirect(it.Tab, it.Linker, sc.window.Table, parent, s.page(page))
	if err != nil {
		return nil, err
	}
	return s.fetchRows(ctx, em, q)
}

func (s *Service) fetchRows(ctx context.Context, em dbexec.EntityManager, q planner.SQLQuery) (*value.Rows, error) {
	rows, err := em.ExecuteSQLWithReturn(ctx, q.SQL, q.Args)
	if err != nil {
		return nil, err
	}
	if err := q.Recast(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) logRejected(err error, name introspection.TableName) {
	if dbexec.IsInjectionAttempt(err) {
		s.logger.Warn("rejected identifier",
			slog.String("table", name.String()),
			slog.String("error", err.Error()),
		)
	}
}
