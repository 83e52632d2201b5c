package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	buildListWidthRatio = 0.3
	logPaneBorderWidth  = 4
)

// BuildStatus represents the current state of a build command.
type BuildStatus string

const (
	// StatusPending indicates the build is waiting on its dependencies.
	StatusPending BuildStatus = "Pending"
	// StatusRunning indicates the build is currently executing.
	StatusRunning BuildStatus = "Running"
	// StatusDone indicates the build completed successfully.
	StatusDone BuildStatus = "Done"
	// StatusError indicates the build failed.
	StatusError BuildStatus = "Error"
)

// ViewMode selects the main layout of the interface.
type ViewMode string

const (
	// ViewModeTree shows the dependency tree next to the log pane.
	ViewModeTree ViewMode = "tree"
	// ViewModeLogs shows the selected build's logs full screen.
	ViewModeLogs ViewMode = "logs"
)

// BuildNode represents a single build command in the UI.
//
// Canonical nodes hold the live status and timing for a command. Tree
// positions are clones that point back at their canonical node, because a
// command that several targets depend on appears once per target in the tree.
type BuildNode struct {
	Name      string
	Status    BuildStatus
	Term      *Vterm
	StartTime time.Time
	EndTime   time.Time

	// Tree position fields, only set on tree clones.
	Depth         int
	IsExpanded    bool
	Children      []*BuildNode
	Parent        *BuildNode
	CanonicalNode *BuildNode
}

// live resolves to the canonical node carrying status and timing.
func (n *BuildNode) live() *BuildNode {
	if n.CanonicalNode != nil {
		return n.CanonicalNode
	}
	return n
}

// Model represents the main TUI state.
type Model struct {
	Builds       []*BuildNode          // canonical nodes in execution order
	BuildMap     map[string]*BuildNode // command name -> canonical node
	SpanMap      map[string]*BuildNode // span ID -> canonical node
	TreeRoots    []*BuildNode          // tree clones, one root per top-level command
	FlatList     []*BuildNode          // visible rows, respects expansion state
	Targets      []string              // user-requested packages, empty for a full build
	Dependencies map[string][]string   // command name -> dependency names
	Output       *termenv.Output

	AutoScroll   bool
	ActiveBuild  string
	SelectedIdx  int
	ListOffset   int
	ListHeight   int
	LogWidth     int
	LogHeight    int
	FollowMode   bool
	ViewMode     ViewMode
	DisableTick  bool
	TickInterval time.Duration
}

// Init starts the tick loop that refreshes running durations.
//
//nolint:gocritic // hugeParam ignored
func (m *Model) Init() tea.Cmd {
	if m.DisableTick {
		return nil
	}
	return m.tickCmd()
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}

func (m *Model) selectedBuild() *BuildNode {
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(m.FlatList) {
		return m.FlatList[m.SelectedIdx]
	}
	return nil
}

func (m *Model) updateActiveView() {
	node := m.selectedBuild()
	if node == nil {
		return
	}
	m.ActiveBuild = node.Name

	// Ensure term scroll position is correct if we just switched
	if m.FollowMode && m.AutoScroll {
		maxOff := node.Term.UsedHeight() - node.Term.Height
		if maxOff < 0 {
			maxOff = 0
		}
		node.Term.Offset = maxOff
	}
}

// selectByName moves the selection to the first visible row for the named
// command, expanding collapsed ancestors when necessary.
func (m *Model) selectByName(name string) {
	for i, node := range m.FlatList {
		if node.Name == name {
			m.SelectedIdx = i
			m.ensureVisible()
			m.updateActiveView()
			return
		}
	}

	// The row is hidden inside a collapsed subtree.
	clone := findClone(m.TreeRoots, name)
	if clone == nil {
		return
	}
	for p := clone.Parent; p != nil; p = p.Parent {
		p.IsExpanded = true
	}
	m.FlatList = flattenTree(m.TreeRoots)
	for i, node := range m.FlatList {
		if node.Name == name {
			m.SelectedIdx = i
			break
		}
	}
	m.ensureVisible()
	m.updateActiveView()
}

func findClone(roots []*BuildNode, name string) *BuildNode {
	for _, root := range roots {
		if root.Name == name {
			return root
		}
		if found := findClone(root.Children, name); found != nil {
			return found
		}
	}
	return nil
}

// Update handles incoming messages and updates the model state.
//
//nolint:cyclop,gocritic // hugeParam ignored, cyclop ignored
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "q" || s == "ctrl+c" {
			return m, tea.Quit
		}
		m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.handleResize(msg)

	case MsgPlanEmitted:
		m.handlePlan(msg)

	case MsgBuildStart:
		if node, ok := m.BuildMap[msg.Name]; ok {
			node.Status = StatusRunning
			node.StartTime = msg.StartTime
			m.SpanMap[msg.SpanID] = node

			// Focus follows activity ONLY if FollowMode is true
			if m.FollowMode {
				m.selectByName(msg.Name)
			}
		}

	case MsgBuildLog:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			_, _ = node.Term.Write(msg.Data)
		}

	case MsgBuildComplete:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			node.EndTime = msg.EndTime
			if msg.Err != nil {
				node.Status = StatusError
			} else {
				node.Status = StatusDone
			}
		}

	case tickMsg:
		// Re-render so running durations stay current.
		return m, m.tickCmd()
	}

	return m, cmd
}

//nolint:cyclop // key dispatch
func (m *Model) handleKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "k", "up":
		if m.ViewMode == ViewModeLogs {
			m.forwardToActiveTerm(msg)
			return
		}
		if m.SelectedIdx > 0 {
			m.SelectedIdx--
			m.FollowMode = false
			m.ensureVisible()
			m.updateActiveView()
		}

	case "j", "down":
		if m.ViewMode == ViewModeLogs {
			m.forwardToActiveTerm(msg)
			return
		}
		if m.SelectedIdx < len(m.FlatList)-1 {
			m.SelectedIdx++
			m.FollowMode = false
			m.ensureVisible()
			m.updateActiveView()
		}

	case "tab":
		if m.ViewMode == ViewModeLogs {
			m.ViewMode = ViewModeTree
		} else {
			m.ViewMode = ViewModeLogs
		}

	case " ":
		if node := m.selectedBuild(); node != nil && len(node.Children) > 0 {
			node.IsExpanded = !node.IsExpanded
			m.FlatList = flattenTree(m.TreeRoots)
			if m.SelectedIdx >= len(m.FlatList) {
				m.SelectedIdx = len(m.FlatList) - 1
			}
			m.ensureVisible()
		}

	case "esc":
		m.FollowMode = true
		// Jump to the currently running build if any.
		for i, node := range m.FlatList {
			if node.live().Status == StatusRunning {
				m.SelectedIdx = i
				break
			}
		}
		m.ensureVisible()
		m.updateActiveView()

	default:
		m.forwardToActiveTerm(msg)
	}
}

func (m *Model) forwardToActiveTerm(msg tea.KeyMsg) {
	if m.ActiveBuild == "" {
		return
	}
	if node, ok := m.BuildMap[m.ActiveBuild]; ok {
		node.Term.Update(msg)
	}
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	// Split screen: 30% for the build list, 70% for logs
	listWidth := int(float64(msg.Width) * buildListWidthRatio)
	logWidth := msg.Width - listWidth - logPaneBorderWidth // minus margins/borders

	// Calculate header height dynamically
	headerHeight := lipgloss.Height(titleStyle.Render("TEST"))
	logHeight := msg.Height - headerHeight

	// Store calculated dimensions for future builds
	m.LogWidth = logWidth
	m.LogHeight = logHeight

	// Calculate ListHeight with full header including newlines
	fullHeader := titleStyle.Render("BUILDS") + "\n\n"
	listInfoHeight := lipgloss.Height(fullHeader)
	m.ListHeight = msg.Height - listInfoHeight
	m.ensureVisible()

	// Update all terminals
	for _, node := range m.Builds {
		node.Term.SetWidth(logWidth)
		node.Term.SetHeight(logHeight)
	}
}

func (m *Model) handlePlan(msg MsgPlanEmitted) {
	m.Builds = make([]*BuildNode, len(msg.Commands))
	m.BuildMap = make(map[string]*BuildNode, len(msg.Commands))
	m.SpanMap = make(map[string]*BuildNode)
	m.Targets = msg.Targets
	m.Dependencies = msg.Dependencies

	for i, name := range msg.Commands {
		term := NewVterm()
		// If we know the dimensions, set them immediately
		if m.LogWidth > 0 && m.LogHeight > 0 {
			term.SetWidth(m.LogWidth)
			term.SetHeight(m.LogHeight)
		}

		m.Builds[i] = &BuildNode{
			Name:   name,
			Status: StatusPending,
			Term:   term,
		}
		m.BuildMap[name] = m.Builds[i]
	}

	roots := rootCommands(msg.Commands, msg.Dependencies)
	m.TreeRoots = buildTree(roots, msg.Dependencies, m.BuildMap)
	m.FlatList = flattenTree(m.TreeRoots)
	if m.SelectedIdx >= len(m.FlatList) {
		m.SelectedIdx = 0
	}
}
