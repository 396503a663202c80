package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanceras/diwata-sub000/internal/introspection"
	"github.com/ivanceras/diwata-sub000/internal/window"
)

type stubSource struct {
	groups  []window.GroupedWindow
	windows map[string]*window.Window
	asked   introspection.TableName
}

func (s *stubSource) GroupedWindows(context.Context, string) ([]window.GroupedWindow, error) {
	return s.groups, nil
}

func (s *stubSource) Window(_ context.Context, _ string, name introspection.TableName) (*window.Window, error) {
	s.asked = name
	w, ok := s.windows[name.String()]
	if !ok {
		return nil, errors.New("window not found")
	}
	return w, nil
}

func sampleWindow() *window.Window {
	film := introspection.TableName{Schema: "public", Name: "film"}
	language := introspection.TableName{Schema: "public", Name: "language"}
	return &window.Window{
		Name:  "Film",
		Table: film,
		MainTab: window.Tab{
			Name:  "Film",
			Table: film,
			Fields: []window.Field{
				{Label: "Film Id", IsPrimary: true, Detail: window.Simple{Column: introspection.Column{Name: "film_id"}}},
				{
					Label:    "Language",
					Detail:   window.Simple{Column: introspection.Column{Name: "language_id"}},
					Dropdown: &window.DropdownInfo{Source: language},
				},
			},
		},
		IndirectTabs: []window.IndirectTab{{
			Linker: introspection.TableName{Schema: "public", Name: "film_actor"},
			Tab:    window.Tab{Name: "Actor", Table: introspection.TableName{Schema: "public", Name: "actor"}},
		}},
	}
}

func TestWriteReport(t *testing.T) {
	src := &stubSource{
		groups: []window.GroupedWindow{
			{Group: "public", WindowNames: []string{"Actor", "Film"}},
		},
		windows: map[string]*window.Window{"public.film": sampleWindow()},
	}

	tests := []struct {
		name     string
		window   string
		asJSON   bool
		contains []string
	}{
		{
			name:     "grouped windows as text",
			contains: []string{"public\n", "  Actor\n", "  Film\n"},
		},
		{
			name:     "window layout",
			window:   "public.film",
			contains: []string{"window", "public.film", "main tab", "film_id", "pk", "lookup public.language", "indirect via public.film_actor tab"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, writeReport(context.Background(), &out, src, "dsn", tt.window, tt.asJSON))
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestWriteReport_JSON(t *testing.T) {
	src := &stubSource{groups: []window.GroupedWindow{{Group: "public", WindowNames: []string{"Film"}}}}

	var out bytes.Buffer
	require.NoError(t, writeReport(context.Background(), &out, src, "dsn", "", true))

	var decoded []window.GroupedWindow
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, src.groups, decoded)
}

func TestWriteReport_UnknownWindow(t *testing.T) {
	src := &stubSource{}
	err := writeReport(context.Background(), &bytes.Buffer{}, src, "dsn", "sakila.missing", false)
	require.Error(t, err)
	assert.Equal(t, introspection.TableName{Schema: "sakila", Name: "missing"}, src.asked)
}
