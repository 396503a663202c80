package service

import (
	"context"
	"fmt"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/planner"
	"github.com/ivanceras/diwata-sub000/internal/value"
	"github.com/ivanceras/diwata-sub000/internal/window"
)

// LookupTable holds dropdown choices from one source table.
type LookupTable struct {
	Table introspection.TableName `json:"table"`
	Rows  *value.Rows             `json:"rows"`
}

// Lookup is the first page of choices for every dropdown source of a window.
type Lookup struct {
	Tables []LookupTable `json:"tables"`
}

// Lookup fetches the first page of choices for each distinct dropdown source
// used by any tab of the window.
func (s *Service) Lookup(ctx context.Context, dsn string, name introspection.TableName) (_ *Lookup, err error) {
	ctx, span := startSpan(ctx, "service.lookup", name)
	defer func() { finishSpan(span, err) }()

	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	dropdowns := dropdownSources(sc.window)
	lookup := &Lookup{Tables: make([]LookupTable, 0, len(dropdowns))}
	if len(dropdowns) == 0 {
		return lookup, nil
	}

	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, dropdown := range dropdowns {
		q, err := sc.planner.Lookup(dropdown, planner.Page{Number: 1, Size: s.lookupPageSize})
		if err != nil {
			return nil, err
		}
		rows, err := s.fetchRows(ctx, em, q)
		if err != nil {
			return nil, err
		}
		lookup.Tables = append(lookup.Tables, LookupTable{Table: dropdown.Source, Rows: rows})
	}
	return lookup, nil
}

// LookupPage fetches one page of choices from source for a dropdown of the window.
func (s *Service) LookupPage(ctx context.Context, dsn string, name, source introspection.TableName, page int) (*value.Rows, error) {
	sc, err := s.resolve(ctx, dsn, name)
	if err != nil {
		return nil, err
	}
	var found *window.DropdownInfo
	for _, dropdown := range dropdownSources(sc.window) {
		if dropdown.Source.Matches(source) {
			found = &dropdown
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s has no dropdown from %s", ErrNoMatchingLookup, name, source)
	}
	if page < 1 {
		page = 1
	}

	q, err := sc.planner.Lookup(*found, planner.Page{Number: page, Size: s.lookupPageSize})
	if err != nil {
		return nil, err
	}
	em, release, err := s.entityManager(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.fetchRows(ctx, em, q)
}

// dropdownSources lists the dropdowns of every tab, one per source table, in tab order.
func dropdownSources(w *window.Window) []window.DropdownInfo {
	var out []window.DropdownInfo
	seen := make(map[string]bool)
	for _, tab := range w.Tabs() {
		for _, field := range tab.DropdownFields() {
			key := field.Dropdown.Source.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, *field.Dropdown)
		}
	}
	return out
}
