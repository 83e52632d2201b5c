package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

const (
	treeIndentWidth    = 2
	treeConnectorWidth = 4
	expanderWidth      = 2
)

// View renders the UI.
//
//nolint:gocritic // hugeParam ignored
func (m *Model) View() string {
	if m.ListHeight == 0 {
		return "Initializing..."
	}

	if m.ViewMode == ViewModeLogs {
		return m.fullLogView()
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.buildList(),
		m.logPane(),
	)
}

//nolint:gocritic // hugeParam ignored
func (m *Model) buildList() string {
	var s strings.Builder

	s.WriteString(m.listTitle() + "\n\n")

	if len(m.FlatList) == 0 {
		s.WriteString(emptyStyle.Render("No builds planned"))
		return listStyle.Render(s.String())
	}

	start := m.ListOffset
	end := m.ListOffset + m.ListHeight
	if end > len(m.FlatList) {
		end = len(m.FlatList)
	}
	if start > end {
		start = end
	}

	nameWidth := m.CalculateMaxNameWidth(start, end)
	for i := start; i < end; i++ {
		s.WriteString(m.renderBuildRow(i, m.FlatList[i], nameWidth) + "\n")
	}

	return listStyle.Render(s.String())
}

func (m *Model) listTitle() string {
	title := titleStyle.Render("BUILDS")
	if len(m.Targets) > 0 {
		title += " " + emptyStyle.Render(strings.Join(m.Targets, ", "))
	}
	return title
}

// CalculateRowNameWidth returns the display width of a row up to and
// including the command name: indentation, tree connector, expansion
// indicator, status icon, and the name itself.
func CalculateRowNameWidth(node *BuildNode) int {
	width := treeIndentWidth*node.Depth + expanderWidth + 1 + 1 + utf8.RuneCountInString(node.Name)
	if node.Depth > 0 {
		width += treeConnectorWidth
	}
	return width
}

// CalculateMaxNameWidth returns the widest row in the visible window, used
// to align the status column.
//
//nolint:gocritic // hugeParam ignored
func (m *Model) CalculateMaxNameWidth(start, end int) int {
	maxWidth := 0
	for i := start; i < end && i < len(m.FlatList); i++ {
		if w := CalculateRowNameWidth(m.FlatList[i]); w > maxWidth {
			maxWidth = w
		}
	}
	return maxWidth
}

func (m *Model) renderBuildRow(index int, node *BuildNode, nameWidth int) string {
	live := node.live()
	icon := iconForStatus(live.Status)
	style := styleForStatus(live.Status)

	// Highlight the selected row
	var cursor string
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
		// If not Done/Error, highlight the text as well
		if live.Status != StatusDone && live.Status != StatusError {
			style = selectedStyle
		}
	} else {
		cursor = "  "
	}

	content := treePrefix(node) + expander(node) + icon + " " + node.Name
	if pad := nameWidth - utf8.RuneCountInString(content); pad > 0 {
		content += strings.Repeat(" ", pad)
	}
	content += " " + formatStatus(live)

	return cursor + style.Render(content)
}

func treePrefix(node *BuildNode) string {
	if node.Depth == 0 {
		return ""
	}
	return strings.Repeat(" ", treeIndentWidth*node.Depth) + "└── "
}

func expander(node *BuildNode) string {
	if len(node.Children) == 0 {
		return "  "
	}
	if node.IsExpanded {
		return "▼ "
	}
	return "▶ "
}

func iconForStatus(status BuildStatus) string {
	switch status {
	case StatusRunning:
		return "●"
	case StatusDone:
		return "✓"
	case StatusError:
		return "✗"
	default: // Pending
		return "○"
	}
}

func styleForStatus(status BuildStatus) lipgloss.Style {
	switch status {
	case StatusRunning:
		return buildRunningStyle
	case StatusDone:
		return buildDoneStyle
	case StatusError:
		return buildErrorStyle
	default: // Pending
		return buildPendingStyle
	}
}

func formatStatus(node *BuildNode) string {
	switch node.Status {
	case StatusRunning:
		return "[Running " + formatDuration(time.Since(node.StartTime)) + "]"
	case StatusDone:
		return "[Took " + formatDuration(node.EndTime.Sub(node.StartTime)) + "]"
	case StatusError:
		return "[Failed " + formatDuration(node.EndTime.Sub(node.StartTime)) + "]"
	default:
		return "[Pending]"
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

//nolint:gocritic // hugeParam ignored
func (m *Model) logPane() string {
	var header string
	var content string

	if m.ActiveBuild != "" {
		mode := " (Following)"
		if !m.FollowMode {
			mode = " (Manual)"
		}

		if node, ok := m.BuildMap[m.ActiveBuild]; ok {
			header = m.logTitle(node, "LOGS: "+m.ActiveBuild+mode)
			content = node.Term.View()
		} else {
			header = titleStyle.Render("LOGS: " + m.ActiveBuild + mode)
		}
	} else {
		header = titleStyle.Render("LOGS (Waiting...)")
	}

	return logStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			content,
		),
	)
}

//nolint:gocritic // hugeParam ignored
func (m *Model) fullLogView() string {
	if m.ActiveBuild == "" {
		return logStyle.Render(titleStyle.Render("LOGS") + "\n\nNo build selected")
	}

	node, ok := m.BuildMap[m.ActiveBuild]
	if !ok {
		return logStyle.Render(titleStyle.Render("LOGS") + "\n\nBuild not found: " + m.ActiveBuild)
	}

	header := m.logTitle(node, "LOGS: "+m.ActiveBuild) + " " + formatStatus(node)
	return logStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			node.Term.View(),
		),
	)
}

func (m *Model) logTitle(node *BuildNode, text string) string {
	if node.Status == StatusError {
		return failureTitleStyle.Render(text)
	}
	return titleStyle.Render(text)
}
