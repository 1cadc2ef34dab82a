package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/pipeforge/pkg/store"
)

type fakeLister struct {
	records []store.Record
	err     error
}

func (f *fakeLister) ListComponents(ctx context.Context, limit int) ([]store.Record, error) {
	return f.records, f.err
}

func records() []store.Record {
	return []store.Record{
		{ID: "component-aaa", URL: "https://example.com/a.yaml", Data: "name: A\n", UpdatedAt: 3},
		{ID: "library-1", URL: "https://example.com/lib.yaml", Data: "folders: []\n", UpdatedAt: 2},
		{ID: "component-bbb", Data: "name: B\n", UpdatedAt: 1},
	}
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out
}

func TestFetchData(t *testing.T) {
	msg := fetchData(&fakeLister{records: records()})()
	data, ok := msg.(dataMsg)
	require.True(t, ok)
	assert.NoError(t, data.err)
	assert.Len(t, data.records, 3)
}

func TestModel_Navigation(t *testing.T) {
	m := initialModel(&fakeLister{})
	m = update(t, m, dataMsg{records: records()})
	assert.True(t, m.ready)
	assert.Equal(t, 0, m.cursor)
	assert.Contains(t, m.viewport.View(), "name: A")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	assert.Equal(t, 2, m.cursor)
	assert.Contains(t, m.viewport.View(), "name: B")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)
}

func TestModel_RefreshKeepsSelection(t *testing.T) {
	m := initialModel(&fakeLister{})
	m = update(t, m, dataMsg{records: records()})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "library-1", m.records[m.cursor].ID)

	refreshed := append([]store.Record{{ID: "component-new", Data: "name: N\n", UpdatedAt: 4}}, records()...)
	m = update(t, m, dataMsg{records: refreshed})
	assert.Equal(t, "library-1", m.records[m.cursor].ID)
}

func TestModel_ErrorKeepsRecords(t *testing.T) {
	m := initialModel(&fakeLister{})
	m = update(t, m, dataMsg{records: records()})
	m = update(t, m, dataMsg{err: errors.New("connection refused")})

	assert.Len(t, m.records, 3)
	view := m.View()
	assert.Contains(t, view, "Offline: connection refused")
	assert.True(t, strings.Contains(view, "component-aaa"))
}

func TestModel_Quit(t *testing.T) {
	m := initialModel(&fakeLister{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
