package tui_test

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.kiln.dev/kiln/internal/adapters/tui"
	"go.trai.ch/zerr"
)

func TestModel_Update(t *testing.T) {
	const (
		buildName1 = "numpy-py3.10-cpu-openmpi"
		buildName2 = "scipy-py3.10-cpu-openmpi"
		buildName3 = "pandas-py3.10-cpu-openmpi"
		spanID1    = "span-1"
		spanID2    = "span-2"
	)
	initialCommands := []string{buildName1, buildName2, buildName3}

	// Helper to initialize a fresh model
	initModel := func(_ *testing.T) *tui.Model {
		m := &tui.Model{}
		initMsg := tui.MsgPlanEmitted{Commands: initialCommands}
		updatedModel, _ := m.Update(initMsg)
		return updatedModel.(*tui.Model)
	}

	t.Run("Window Resizing", func(t *testing.T) {
		m := initModel(t)

		width, height := 100, 50
		msg := tea.WindowSizeMsg{Width: width, Height: height}
		updatedModel, _ := m.Update(msg)
		m = updatedModel.(*tui.Model)

		// Assertions based on constants in model.go:
		// buildListWidthRatio = 0.3
		// logPaneBorderWidth = 4
		expectedListWidth := int(float64(width) * 0.3)
		expectedLogWidth := width - expectedListWidth - 4

		assert.Equal(t, expectedLogWidth, m.LogWidth, "LogWidth calculation incorrect")
		assert.Equal(t, expectedLogWidth, m.Builds[0].Term.Width, "Build term width not updated")

		// ListHeight depends on header rendering, so we just check it is reasonable
		assert.Positive(t, m.ListHeight, "ListHeight should be positive")
		assert.Less(t, m.ListHeight, height, "ListHeight should be less than total height")
		assert.Positive(t, m.LogHeight, "LogHeight should be positive")
		assert.Equal(t, m.LogHeight, m.Builds[0].Term.Height, "Build term height not updated")
	})

	t.Run("Navigation & Keybindings", func(t *testing.T) {
		t.Run("Selection Navigation", func(t *testing.T) {
			m := initModel(t)
			m.SelectedIdx = 0

			// Move Down (j)
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
			assert.Equal(t, 1, m.SelectedIdx)
			assert.False(t, m.FollowMode, "FollowMode should be disabled on manual nav")

			// Move Down (down key)
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyDown})
			assert.Equal(t, 2, m.SelectedIdx)

			// Bounds check (end of list)
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyDown})
			assert.Equal(t, 2, m.SelectedIdx)

			// Move Up (k)
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
			assert.Equal(t, 1, m.SelectedIdx)

			// Move Up (up key)
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyUp})
			assert.Equal(t, 0, m.SelectedIdx)

			// Bounds check (start of list)
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyUp})
			assert.Equal(t, 0, m.SelectedIdx)
		})

		t.Run("Quit Commands", func(t *testing.T) {
			m := initModel(t)

			// q
			_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
			assert.Equal(t, tea.Quit(), cmd(), "q should return tea.Quit")

			// ctrl+c
			_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
			assert.Equal(t, tea.Quit(), cmd(), "ctrl+c should return tea.Quit")
		})

		t.Run("View Mode Toggle (Tab)", func(t *testing.T) {
			m := initModel(t)
			m.ViewMode = tui.ViewModeTree

			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyTab})
			assert.Equal(t, tui.ViewModeLogs, m.ViewMode)

			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyTab})
			assert.Equal(t, tui.ViewModeTree, m.ViewMode)
		})

		t.Run("Follow Mode (Esc)", func(t *testing.T) {
			m := initModel(t)

			// Start build 2 to have a running build
			m, _ = updateModel(m, tui.MsgBuildStart{Name: buildName2, SpanID: spanID1})

			// Move selection away manually
			m.SelectedIdx = 0
			m.FollowMode = false

			// Press Esc
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyEsc})

			assert.True(t, m.FollowMode, "Esc should enable FollowMode")

			running := m.FlatList[m.SelectedIdx]
			assert.Equal(t, buildName2, running.Name, "Esc should jump to the running build")
		})

		t.Run("Expansion Toggle (Space)", func(t *testing.T) {
			m := &tui.Model{}
			msg := tui.MsgPlanEmitted{
				Commands: []string{"base", "app"},
				Dependencies: map[string][]string{
					"app":  {"base"},
					"base": {},
				},
			}
			updatedModel, _ := m.Update(msg)
			m = updatedModel.(*tui.Model)

			// Tree starts fully expanded: app + base
			require.Len(t, m.FlatList, 2)

			m.SelectedIdx = 0
			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeySpace})
			assert.Len(t, m.FlatList, 1, "collapsing the root should hide its children")

			m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeySpace})
			assert.Len(t, m.FlatList, 2, "expanding the root should show its children")
		})
	})

	t.Run("Renderer Integration", func(t *testing.T) {
		t.Run("MsgPlanEmitted", func(t *testing.T) {
			m := &tui.Model{}
			msg := tui.MsgPlanEmitted{Commands: []string{"A", "B"}}
			updatedModel, _ := m.Update(msg)
			m = updatedModel.(*tui.Model)

			assert.Len(t, m.Builds, 2)
			assert.Len(t, m.BuildMap, 2)
			assert.Equal(t, "A", m.Builds[0].Name)
			assert.Equal(t, tui.StatusPending, m.Builds[0].Status)
			assert.Len(t, m.FlatList, 2, "commands without dependencies are all roots")
		})

		t.Run("MsgBuildStart", func(t *testing.T) {
			m := initModel(t)

			start := time.Now()
			msg := tui.MsgBuildStart{Name: buildName1, SpanID: spanID1, StartTime: start}
			updatedModel, _ := m.Update(msg)
			m = updatedModel.(*tui.Model)

			requireBuildStatus(t, m, buildName1, tui.StatusRunning)
			assert.Equal(t, m.Builds[0], m.SpanMap[spanID1], "SpanMap should map spanID")
			assert.Equal(t, start, m.Builds[0].StartTime)

			// FollowMode switches selection to the newly started build
			m.FollowMode = true
			msg2 := tui.MsgBuildStart{Name: buildName3, SpanID: spanID2}
			updatedModel, _ = m.Update(msg2)
			m = updatedModel.(*tui.Model)

			assert.Equal(t, buildName3, m.FlatList[m.SelectedIdx].Name,
				"FollowMode should switch selection to new build")
			assert.Equal(t, buildName3, m.ActiveBuild)
		})

		t.Run("MsgBuildLog", func(t *testing.T) {
			m := initModel(t)

			m, _ = updateModel(m, tui.MsgBuildStart{Name: buildName1, SpanID: spanID1})

			logData := []byte("collecting package metadata\n")
			msg := tui.MsgBuildLog{SpanID: spanID1, Data: logData}

			updatedModel, _ := m.Update(msg)
			m = updatedModel.(*tui.Model)

			node := m.SpanMap[spanID1]
			assert.Positive(t, node.Term.UsedHeight(), "Term should have data")
		})

		t.Run("MsgBuildComplete", func(t *testing.T) {
			m := initModel(t)
			m, _ = updateModel(m, tui.MsgBuildStart{Name: buildName1, SpanID: spanID1})

			// Success
			end := time.Now()
			msgSuccess := tui.MsgBuildComplete{SpanID: spanID1, EndTime: end, Err: nil}
			m, _ = updateModel(m, msgSuccess)
			requireBuildStatus(t, m, buildName1, tui.StatusDone)
			assert.Equal(t, end, m.BuildMap[buildName1].EndTime)

			// Error
			m, _ = updateModel(m, tui.MsgBuildStart{Name: buildName2, SpanID: spanID2})
			msgError := tui.MsgBuildComplete{SpanID: spanID2, Err: zerr.New("conda build exited 1")}
			m, _ = updateModel(m, msgError)
			requireBuildStatus(t, m, buildName2, tui.StatusError)
		})

		t.Run("MsgBuildStart for unknown command is ignored", func(t *testing.T) {
			m := initModel(t)

			m, _ = updateModel(m, tui.MsgBuildStart{Name: "unknown", SpanID: spanID1})
			assert.NotContains(t, m.SpanMap, spanID1)
		})
	})
}

func TestModel_PlanBuildsDependencyTree(t *testing.T) {
	m := &tui.Model{}
	msg := tui.MsgPlanEmitted{
		Commands: []string{"openblas", "numpy", "scipy"},
		Dependencies: map[string][]string{
			"scipy":    {"numpy"},
			"numpy":    {"openblas"},
			"openblas": {},
		},
		Targets: []string{"scipy"},
	}

	updatedModel, _ := m.Update(msg)
	m = updatedModel.(*tui.Model)

	// scipy is the only command nothing depends on, so it is the sole root.
	require.Len(t, m.TreeRoots, 1)
	assert.Equal(t, "scipy", m.TreeRoots[0].Name)

	// Fully expanded plan shows every level.
	require.Len(t, m.FlatList, 3)
	assert.Equal(t, "scipy", m.FlatList[0].Name)
	assert.Equal(t, "numpy", m.FlatList[1].Name)
	assert.Equal(t, "openblas", m.FlatList[2].Name)

	assert.Equal(t, []string{"scipy"}, m.Targets)
}

// Helpers.

func updateModel(m *tui.Model, msg tea.Msg) (*tui.Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(*tui.Model), cmd
}

func requireBuildStatus(t *testing.T, m *tui.Model, name string, expected tui.BuildStatus) {
	t.Helper()
	node, ok := m.BuildMap[name]
	require.True(t, ok, "Build %s should exist in BuildMap", name)
	assert.Equal(t, expected, node.Status, "Build status for %s", name)
}
