package changeset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivanceras/diwata-sub000/internal/dbexec"
	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/planner"
	"github.com/ivanceras/diwata-sub000/internal/value"
)

// Metrics records every statement a changeset issues.
type Metrics interface {
	RecordStatement(ctx context.Context, table, step string, duration time.Duration, err error)
}

// Executor turns changesets into ordered statements. It opens no transaction;
// the first failing statement aborts the sequence and earlier statements stay applied.
type Executor struct {
	tables  planner.TableLookup
	logger  *slog.Logger
	metrics Metrics
}

// NewExecutor creates an executor resolving tables through tables.
// logger and metrics may be nil.
func NewExecutor(tables planner.TableLookup, logger *slog.Logger, metrics Metrics) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{tables: tables, logger: logger, metrics: metrics}
}

// Save applies cs to the window of mainTable and returns the stored main record.
// Order: main record, one-one records, has-many rows, indirect rows.
func (e *Executor) Save(ctx context.Context, em dbexec.EntityManager, mainTable introspection.TableName, cs RecordChangeset) (*value.Record, error) {
	main, err := e.table(mainTable)
	if err != nil {
		return nil, err
	}

	saved, err := e.saveMain(ctx, em, main, cs)
	if err != nil {
		return nil, err
	}
	for _, change := range cs.OneOnes {
		if change.Record == nil {
			continue
		}
		if err := e.saveOneOne(ctx, em, main, saved, change); err != nil {
			return nil, err
		}
	}
	for _, change := range cs.HasMany {
		if err := e.saveHasMany(ctx, em, main, saved, change); err != nil {
			return nil, err
		}
	}
	for _, change := range cs.Indirect {
		if err := e.saveIndirect(ctx, em, main, saved, change); err != nil {
			return nil, err
		}
	}
	return saved, nil
}

// SaveContainer inserts ForInsert rows and updates ForUpdate rows, returning both as stored.
func (e *Executor) SaveContainer(ctx context.Context, em dbexec.EntityManager, sc SaveContainer) (*SaveResult, error) {
	result := &SaveResult{}
	if records := sc.ForInsert.Rows.Records(); len(records) > 0 {
		table, err := e.table(sc.ForInsert.Table)
		if err != nil {
			return nil, err
		}
		q, err := planner.PlanBulkInsert(table, records, true)
		if err != nil {
			return nil, err
		}
		rows, err := e.run(ctx, em, table, "insert", q)
		if err != nil {
			return nil, err
		}
		result.Inserted = rows
	}

	if records := sc.ForUpdate.Rows.Records(); len(records) > 0 {
		table, err := e.table(sc.ForUpdate.Table)
		if err != nil {
			return nil, err
		}
		var updated []*value.Record
		for _, rec := range records {
			q, err := planner.PlanUpdate(table, rec)
			if err != nil {
				return nil, err
			}
			rows, err := e.run(ctx, em, table, "update", q)
			if err != nil {
				return nil, err
			}
			updated = append(updated, rows.Records()...)
		}
		result.Updated = value.RowsFromRecords(updated)
	}
	return result, nil
}

func (e *Executor) saveMain(ctx context.Context, em dbexec.EntityManager, main *introspection.Table, cs RecordChangeset) (*value.Record, error) {
	var (
		q   planner.SQLQuery
		err error
	)
	switch cs.Action {
	case CreateNew:
		q, err = planner.PlanInsert(main, cs.Record, true)
	case Edited:
		q, err = planner.PlanUpdate(main, cs.Record)
	default:
		err = fmt.Errorf("unknown main action %s", cs.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", main.Name, err)
	}
	return e.runOne(ctx, em, main, cs.Action.String(), q)
}

// saveOneOne upserts the owned record with its key pointing at the main record.
func (e *Executor) saveOneOne(ctx context.Context, em dbexec.EntityManager, main *introspection.Table, saved *value.Record, change OneOneChange) error {
	table, fk, err := e.referrer(change.Table, main)
	if err != nil {
		return err
	}
	rec := change.Record.Clone()
	parentValues := inject(rec, fk, saved)

	q, err := planner.PlanUpsert(table, rec, fk.Columns, parentValues)
	if err != nil {
		return fmt.Errorf("save one-one %s: %w", table.Name, err)
	}
	_, err = e.run(ctx, em, table, "upsert", q)
	return err
}

func (e *Executor) saveHasMany(ctx context.Context, em dbexec.EntityManager, main *introspection.Table, saved *value.Record, change HasManyChange) error {
	records := change.Rows.Records()
	if len(records) == 0 {
		return nil
	}
	table, fk, err := e.referrer(change.Table, main)
	if err != nil {
		return err
	}
	step := change.Action.String()

	switch change.Action {
	case Unlink:
		keys, err := primaryKeys(table, records)
		if err != nil {
			return err
		}
		q, err := planner.PlanDelete(table, keys)
		if err != nil {
			return err
		}
		_, err = e.run(ctx, em, table, step, q)
		return err

	case LinkNew:
		for _, rec := range records {
			inject(rec, fk, saved)
		}
		q, err := planner.PlanBulkInsert(table, records, true)
		if err != nil {
			return fmt.Errorf("save has-many %s: %w", table.Name, err)
		}
		_, err = e.run(ctx, em, table, step, q)
		return err

	case LinkExisting:
		for _, rec := range records {
			link := value.NewRecord()
			for _, pk := range table.PrimaryKey {
				link.Set(pk, rec.Get(pk))
			}
			inject(link, fk, saved)
			if err := e.update(ctx, em, table, step, link); err != nil {
				return err
			}
		}
		return nil

	case RelatedEdited:
		for _, rec := range records {
			if err := e.update(ctx, em, table, step, rec); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown has-many action %s", change.Action)
}

func (e *Executor) saveIndirect(ctx context.Context, em dbexec.EntityManager, main *introspection.Table, saved *value.Record, change IndirectChange) error {
	records := change.Rows.Records()
	if len(records) == 0 {
		return nil
	}
	target, err := e.table(change.Table)
	if err != nil {
		return err
	}
	linker, err := e.table(change.Linker)
	if err != nil {
		return err
	}
	toMain := linker.ForeignKeysTo(main.Name)
	toTarget := linker.ForeignKeysTo(target.Name)
	if len(toMain) == 0 || len(toTarget) == 0 {
		return fmt.Errorf("%s does not link %s and %s", linker.Name, main.Name, target.Name)
	}
	step := change.Action.String()

	for _, rec := range records {
		switch change.Action {
		case LinkNew:
			q, err := planner.PlanInsert(target, rec, true)
			if err != nil {
				return fmt.Errorf("save indirect %s: %w", target.Name, err)
			}
			inserted, err := e.runOne(ctx, em, target, step, q)
			if err != nil {
				return err
			}
			if err := e.insertLink(ctx, em, linker, toMain[0], toTarget[0], saved, inserted); err != nil {
				return err
			}

		case LinkExisting:
			if _, err := linkedKey(toTarget[0], target, rec); err != nil {
				return err
			}
			if err := e.insertLink(ctx, em, linker, toMain[0], toTarget[0], saved, rec); err != nil {
				return err
			}

		case Unlink:
			targetKey, err := linkedKey(toTarget[0], target, rec)
			if err != nil {
				return err
			}
			columns := append(append([]string(nil), toMain[0].Columns...), toTarget[0].Columns...)
			values := append(referredValues(toMain[0], saved), targetKey...)
			q, err := planner.PlanDeleteMatching(linker, columns, values)
			if err != nil {
				return err
			}
			if _, err := e.run(ctx, em, linker, step, q); err != nil {
				return err
			}

		case RelatedEdited:
			if err := e.update(ctx, em, target, step, rec); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown indirect action %s", change.Action)
		}
	}
	return nil
}

// insertLink inserts the linker row joining the main record and target, with columns
// in the linker table's order.
func (e *Executor) insertLink(ctx context.Context, em dbexec.EntityManager, linker *introspection.Table, toMain, toTarget introspection.ForeignKey, main, target *value.Record) error {
	link := value.NewRecord()
	for _, col := range linker.Columns {
		if ref, ok := toMain.ReferredColumnFor(col.Name); ok {
			link.Set(col.Name, main.Get(ref))
		} else if ref, ok := toTarget.ReferredColumnFor(col.Name); ok {
			link.Set(col.Name, target.Get(ref))
		}
	}
	q, err := planner.PlanInsert(linker, link, false)
	if err != nil {
		return fmt.Errorf("link %s: %w", linker.Name, err)
	}
	_, err = e.run(ctx, em, linker, "link", q)
	return err
}

func (e *Executor) update(ctx context.Context, em dbexec.EntityManager, table *introspection.Table, step string, rec *value.Record) error {
	q, err := planner.PlanUpdate(table, rec)
	if err != nil {
		return fmt.Errorf("update %s: %w", table.Name, err)
	}
	_, err = e.run(ctx, em, table, step, q)
	return err
}

func (e *Executor) run(ctx context.Context, em dbexec.EntityManager, table *introspection.Table, step string, q planner.SQLQuery) (*value.Rows, error) {
	start := time.Now()
	rows, err := em.ExecuteSQLWithReturn(ctx, q.SQL, q.Args)
	e.observe(ctx, table, step, start, err)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", step, table.Name, err)
	}
	if err := q.Recast(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Executor) runOne(ctx context.Context, em dbexec.EntityManager, table *introspection.Table, step string, q planner.SQLQuery) (*value.Record, error) {
	start := time.Now()
	rec, err := em.ExecuteSQLWithOneReturn(ctx, q.SQL, q.Args)
	e.observe(ctx, table, step, start, err)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", step, table.Name, err)
	}
	if err := q.RecastRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Executor) observe(ctx context.Context, table *introspection.Table, step string, start time.Time, err error) {
	duration := time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordStatement(ctx, table.Name.String(), step, duration, err)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "changeset statement failed",
			slog.String("table", table.Name.String()),
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.DebugContext(ctx, "changeset statement applied",
		slog.String("table", table.Name.String()),
		slog.String("step", step),
		slog.Duration("duration", duration),
	)
}

func (e *Executor) table(name introspection.TableName) (*introspection.Table, error) {
	if e.tables == nil {
		return nil, fmt.Errorf("no table metadata")
	}
	table := e.tables.Table(name)
	if table == nil {
		return nil, fmt.Errorf("unknown table %s", name)
	}
	return table, nil
}

// referrer returns a related table with its first foreign key to main.
func (e *Executor) referrer(name introspection.TableName, main *introspection.Table) (*introspection.Table, introspection.ForeignKey, error) {
	table, err := e.table(name)
	if err != nil {
		return nil, introspection.ForeignKey{}, err
	}
	fks := table.ForeignKeysTo(main.Name)
	if len(fks) == 0 {
		return nil, introspection.ForeignKey{}, fmt.Errorf("%s has no foreign key to %s", table.Name, main.Name)
	}
	return table, fks[0], nil
}

// inject copies the main record's referred values into rec's foreign key columns
// and returns them in key order.
func inject(rec *value.Record, fk introspection.ForeignKey, main *value.Record) []value.Value {
	values := referredValues(fk, main)
	for i, col := range fk.Columns {
		rec.Set(col, values[i])
	}
	return values
}

func referredValues(fk introspection.ForeignKey, rec *value.Record) []value.Value {
	values := make([]value.Value, len(fk.Columns))
	for i := range fk.Columns {
		if i < len(fk.ReferredColumns) {
			values[i] = rec.Get(fk.ReferredColumns[i])
		}
	}
	return values
}

// linkedKey returns the values of rec that fk refers to. Every one must be set,
// otherwise the linker statement would match or store NULL keys.
func linkedKey(fk introspection.ForeignKey, table *introspection.Table, rec *value.Record) ([]value.Value, error) {
	values := referredValues(fk, rec)
	for i, v := range values {
		if v.IsNull() {
			return nil, fmt.Errorf("%s: row is missing key column %s", table.Name, fk.ReferredColumns[i])
		}
	}
	return values, nil
}

func primaryKeys(table *introspection.Table, records []*value.Record) ([][]value.Value, error) {
	if len(table.PrimaryKey) == 0 {
		return nil, fmt.Errorf("%s: %w", table.Name, planner.ErrNoPrimaryKey)
	}
	keys := make([][]value.Value, 0, len(records))
	for _, rec := range records {
		key := make([]value.Value, len(table.PrimaryKey))
		for i, pk := range table.PrimaryKey {
			v := rec.Get(pk)
			if v.IsNull() {
				return nil, fmt.Errorf("%s: row is missing primary key column %s", table.Name, pk)
			}
			key[i] = v
		}
		keys = append(keys, key)
	}
	return keys, nil
}
