// Package introspection discovers table metadata from the PostgreSQL system catalogs.
// It extracts tables, columns, primary keys and foreign keys for the relationship classifier.
package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ivanceras/diwata-sub000/internal/sqltype"
)

// DefaultSchema is used when no schema list is configured.
const DefaultSchema = "public"

// TableName is a schema-qualified table name.
type TableName struct {
	Schema string
	Name   string
}

// ParseTableName splits "schema.table". A bare name has an empty schema.
func ParseTableName(s string) TableName {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "."); i != -1 {
		return TableName{Schema: s[:i], Name: s[i+1:]}
	}
	return TableName{Name: s}
}

// String renders the name as schema.table, or just table when unqualified.
func (n TableName) String() string {
	if n.Schema == "" {
		return n.Name
	}
	return n.Schema + "." + n.Name
}

// Matches compares names, treating an empty schema on either side as a wildcard.
func (n TableName) Matches(other TableName) bool {
	if n.Name != other.Name {
		return false
	}
	return n.Schema == "" || other.Schema == "" || n.Schema == other.Schema
}

// MarshalText renders the name as schema.table.
func (n TableName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText parses schema.table or a bare table name.
func (n *TableName) UnmarshalText(text []byte) error {
	parsed := ParseTableName(string(text))
	if parsed.Name == "" {
		return fmt.Errorf("empty table name")
	}
	*n = parsed
	return nil
}

// Column represents a table column.
type Column struct {
	Name          string       `json:"name"`
	DataType      string       `json:"data_type"`
	Type          sqltype.Type `json:"type"`
	IsNullable    bool         `json:"is_nullable"`
	HasDefault    bool         `json:"has_default"`
	ColumnDefault string       `json:"default,omitempty"`
	IsIdentity    bool         `json:"is_identity,omitempty"`
	IsGenerated   bool         `json:"is_generated,omitempty"`
	Comment       string       `json:"comment,omitempty"`
}

// HasGeneratedDefault reports whether the database fills the column when the insert omits it.
func (c Column) HasGeneratedDefault() bool {
	return c.HasDefault || c.IsIdentity || c.IsGenerated
}

// ForeignKey is one foreign key constraint. Columns[i] refers to ReferredColumns[i].
type ForeignKey struct {
	ConstraintName  string
	Columns         []string
	ReferredTable   TableName
	ReferredColumns []string
}

// Table represents a table or view.
type Table struct {
	Name        TableName
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	IsView      bool
	Comment     string
}

// Schema is the introspected snapshot of one database.
type Schema struct {
	Tables []Table
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name TableName) *Table {
	if s == nil {
		return nil
	}
	for i := range s.Tables {
		if s.Tables[i].Name.Matches(name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// IntrospectDatabaseContext reads tables, columns and constraints for each schema in order.
func IntrospectDatabaseContext(ctx context.Context, db Queryer, schemas []string) (*Schema, error) {
	if len(schemas) == 0 {
		schemas = []string{DefaultSchema}
	}
	ctx, span := startSpan(ctx, "introspection.build_schema",
		attribute.StringSlice("db.schemas", schemas),
	)
	defer span.End()

	result := &Schema{Tables: []Table{}}
	for _, schemaName := range schemas {
		tables, err := introspectSchema(ctx, db, schemaName)
		if err != nil {
			recordSpanError(span, err)
			return nil, fmt.Errorf("failed to introspect schema %s: %w", schemaName, err)
		}
		result.Tables = append(result.Tables, tables...)
	}
	span.SetAttributes(attribute.Int("db.table_count", len(result.Tables)))
	return result, nil
}

func introspectSchema(ctx context.Context, db Queryer, schemaName string) ([]Table, error) {
	infos, err := getTables(ctx, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	columns, err := getColumns(ctx, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	primaryKeys, err := getPrimaryKeys(ctx, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary keys: %w", err)
	}
	foreignKeys, err := getForeignKeys(ctx, db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}

	tables := make([]Table, 0, len(infos))
	for _, info := range infos {
		tables = append(tables, Table{
			Name:        TableName{Schema: schemaName, Name: info.Name},
			Columns:     columns[info.Name],
			PrimaryKey:  primaryKeys[info.Name],
			ForeignKeys: foreignKeys[info.Name],
			IsView:      info.IsView,
			Comment:     info.Comment,
		})
	}
	return tables, nil
}

type tableInfo struct {
	Name    string
	IsView  bool
	Comment string
}

const tablesQuery = `
		SELECT c.relname, c.relkind IN ('v', 'm') AS is_view, obj_description(c.oid, 'pg_class')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		AND c.relkind IN ('r', 'p', 'v', 'm')
		ORDER BY c.relname
	`

func getTables(ctx context.Context, db Queryer, schemaName string) ([]tableInfo, error) {
	ctx, span := startSpan(ctx, "introspection.get_tables",
		attribute.String("db.schema", schemaName),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, tablesQuery, schemaName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var tables []tableInfo
	for rows.Next() {
		var info tableInfo
		var comment sql.NullString
		if err := rows.Scan(&info.Name, &info.IsView, &comment); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		if comment.Valid {
			info.Comment = strings.TrimSpace(comment.String)
		}
		tables = append(tables, info)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return tables, nil
}

const columnsQuery = `
		SELECT
			c.relname,
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			a.attidentity <> '',
			a.attgenerated <> '',
			col_description(c.oid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1
		AND c.relkind IN ('r', 'p', 'v', 'm')
		AND a.attnum > 0
		AND NOT a.attisdropped
		ORDER BY c.relname, a.attnum
	`

func getColumns(ctx context.Context, db Queryer, schemaName string) (map[string][]Column, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns",
		attribute.String("db.schema", schemaName),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, columnsQuery, schemaName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	columns := make(map[string][]Column)
	for rows.Next() {
		var tableName string
		var col Column
		var columnDefault, comment sql.NullString
		if err := rows.Scan(&tableName, &col.Name, &col.DataType, &col.IsNullable, &columnDefault, &col.IsIdentity, &col.IsGenerated, &comment); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		col.Type = sqltype.Map(col.DataType)
		if columnDefault.Valid {
			col.ColumnDefault = columnDefault.String
			col.HasDefault = true
		}
		if comment.Valid {
			col.Comment = strings.TrimSpace(comment.String)
		}
		columns[tableName] = append(columns[tableName], col)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

const primaryKeysQuery = `
		SELECT c.relname, a.attname
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL UNNEST(con.conkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		AND con.contype = 'p'
		ORDER BY c.relname, k.ord
	`

func getPrimaryKeys(ctx context.Context, db Queryer, schemaName string) (map[string][]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_keys",
		attribute.String("db.schema", schemaName),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, primaryKeysQuery, schemaName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make(map[string][]string)
	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		keys[tableName] = append(keys[tableName], columnName)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return keys, nil
}

const foreignKeysQuery = `
		SELECT
			src.relname,
			con.conname,
			tns.nspname,
			tgt.relname,
			sa.attname,
			ta.attname,
			cols.ord
		FROM pg_constraint con
		JOIN pg_class src ON src.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = src.relnamespace
		JOIN pg_class tgt ON tgt.oid = con.confrelid
		JOIN pg_namespace tns ON tns.oid = tgt.relnamespace
		CROSS JOIN LATERAL UNNEST(con.conkey, con.confkey) WITH ORDINALITY AS cols(src_col, tgt_col, ord)
		JOIN pg_attribute sa ON sa.attrelid = src.oid AND sa.attnum = cols.src_col
		JOIN pg_attribute ta ON ta.attrelid = tgt.oid AND ta.attnum = cols.tgt_col
		WHERE ns.nspname = $1
		AND con.contype = 'f'
		ORDER BY src.relname, con.conname, cols.ord
	`

func getForeignKeys(ctx context.Context, db Queryer, schemaName string) (map[string][]ForeignKey, error) {
	ctx, span := startSpan(ctx, "introspection.get_foreign_keys",
		attribute.String("db.schema", schemaName),
	)
	defer span.End()

	rows, err := db.QueryContext(ctx, foreignKeysQuery, schemaName)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	byTable := make(map[string][]foreignKeyColumn)
	for rows.Next() {
		var tableName string
		var row foreignKeyColumn
		if err := rows.Scan(&tableName, &row.ConstraintName, &row.ReferredSchema, &row.ReferredTable, &row.Column, &row.ReferredColumn, &row.OrdinalPosition); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		byTable[tableName] = append(byTable[tableName], row)
	}
	if err := rows.Err(); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	result := make(map[string][]ForeignKey, len(byTable))
	for tableName, fkRows := range byTable {
		result[tableName] = groupForeignKeys(fkRows)
	}
	return result, nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("diwata/introspection")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
