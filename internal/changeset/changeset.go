// Package changeset applies edits of a window record and its related tabs as an
// ordered sequence of statements on one EntityManager.
package changeset

import (
	"fmt"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/value"
)

// MainAction is what happens to the window's main record.
type MainAction int

const (
	CreateNew MainAction = iota
	Edited
)

var mainActionNames = map[MainAction]string{
	CreateNew: "CreateNew",
	Edited:    "Edited",
}

func (a MainAction) String() string {
	if name, ok := mainActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("MainAction(%d)", int(a))
}

func (a MainAction) MarshalText() ([]byte, error) {
	name, ok := mainActionNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown main action %d", int(a))
	}
	return []byte(name), nil
}

func (a *MainAction) UnmarshalText(text []byte) error {
	for action, name := range mainActionNames {
		if name == string(text) {
			*a = action
			return nil
		}
	}
	return fmt.Errorf("unknown main action %q", text)
}

// RelatedAction is what happens to rows of a has-many or indirect tab.
type RelatedAction int

const (
	// Unlink detaches rows: has-many rows are deleted, indirect rows lose their linker row.
	Unlink RelatedAction = iota
	// LinkNew inserts new rows pointing at the main record.
	LinkNew
	// LinkExisting points existing rows at the main record.
	LinkExisting
	// RelatedEdited updates rows in place.
	RelatedEdited
)

var relatedActionNames = map[RelatedAction]string{
	Unlink:        "Unlink",
	LinkNew:       "LinkNew",
	LinkExisting:  "LinkExisting",
	RelatedEdited: "Edited",
}

func (a RelatedAction) String() string {
	if name, ok := relatedActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("RelatedAction(%d)", int(a))
}

func (a RelatedAction) MarshalText() ([]byte, error) {
	name, ok := relatedActionNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown related action %d", int(a))
	}
	return []byte(name), nil
}

func (a *RelatedAction) UnmarshalText(text []byte) error {
	for action, name := range relatedActionNames {
		if name == string(text) {
			*a = action
			return nil
		}
	}
	return fmt.Errorf("unknown related action %q", text)
}

// OneOneChange carries the owned record of a one-one tab. A nil Record leaves the tab untouched.
type OneOneChange struct {
	Table  introspection.TableName `json:"table"`
	Record *value.Record           `json:"record,omitempty"`
}

// HasManyChange applies Action to rows of a has-many tab.
type HasManyChange struct {
	Table  introspection.TableName `json:"table"`
	Action RelatedAction           `json:"action"`
	Rows   *value.Rows             `json:"rows"`
}

// IndirectChange applies Action to rows of a tab reached through Linker.
type IndirectChange struct {
	Table  introspection.TableName `json:"table"`
	Linker introspection.TableName `json:"linker"`
	Action RelatedAction           `json:"action"`
	Rows   *value.Rows             `json:"rows"`
}

// RecordChangeset is a main record edit together with the edits of its related tabs.
type RecordChangeset struct {
	Record   *value.Record    `json:"record"`
	Action   MainAction       `json:"action"`
	OneOnes  []OneOneChange   `json:"one_ones,omitempty"`
	HasMany  []HasManyChange  `json:"has_many,omitempty"`
	Indirect []IndirectChange `json:"indirect,omitempty"`
}

// TableRows is a batch of rows of one table.
type TableRows struct {
	Table introspection.TableName `json:"table"`
	Rows  *value.Rows             `json:"rows"`
}

// SaveContainer is a grid edit: rows to insert and rows to update, possibly of different tables.
type SaveContainer struct {
	ForInsert TableRows `json:"for_insert"`
	ForUpdate TableRows `json:"for_update"`
}

// SaveResult holds the rows returned by a SaveContainer.
type SaveResult struct {
	Inserted *value.Rows `json:"inserted"`
	Updated  *value.Rows `json:"updated"`
}
