package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/wippyai/plum"
	"github.com/wippyai/plum/errors"
	"github.com/wippyai/plum/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newInspectCmd(opts *options) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Pick a type, type hex bytes and watch the dump update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.registry()
			if err != nil {
				printError(cmd.ErrOrStderr(), "schema", err)
				return err
			}
			m := newInspectModel(r, opts.schemaName())
			if typeName != "" {
				if err := m.choose(typeName); err != nil {
					return err
				}
			}
			p := tea.NewProgram(m, tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "start with this type selected")
	return cmd
}

type inspectState int

const (
	stateSelectType inspectState = iota
	stateEditHex
)

type typeInfo struct {
	t    plum.Transform
	name string
}

type inspectModel struct {
	err      error
	reg      *schema.Registry
	source   string
	table    string
	types    []typeInfo
	input    textinput.Model
	width    int
	selected int
	state    inspectState
}

func newInspectModel(r *schema.Registry, source string) *inspectModel {
	names := r.Names()
	if len(names) == 0 {
		names = schema.Builtins()
	}
	m := &inspectModel{reg: r, source: source, state: stateSelectType, width: 100}
	for _, name := range names {
		if t, ok := r.Lookup(name); ok {
			m.types = append(m.types, typeInfo{t: t, name: name})
		}
	}
	return m
}

func (m *inspectModel) choose(name string) error {
	for i, ti := range m.types {
		if ti.name == name {
			m.selected = i
			m.editHex()
			return nil
		}
	}
	t, ok := m.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("type %q is not declared in %s", name, m.source)
	}
	m.types = append(m.types, typeInfo{t: t, name: name})
	m.selected = len(m.types) - 1
	m.editHex()
	return nil
}

func (m *inspectModel) editHex() {
	ti := textinput.New()
	ti.Placeholder = "hex bytes, e.g. 01 00 02 68 69"
	ti.Prompt = "bytes: "
	ti.Width = 60
	ti.Focus()
	m.input = ti
	m.state = stateEditHex
	m.refresh()
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.state == stateEditHex {
			m.refresh()
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateSelectType {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectType && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectType && m.selected < len(m.types)-1 {
				m.selected++
			}

		case "enter":
			if m.state == stateSelectType && len(m.types) > 0 {
				m.editHex()
				return m, textinput.Blink
			}

		case "esc":
			if m.state == stateEditHex {
				m.state = stateSelectType
				m.table, m.err = "", nil
				return m, nil
			}
		}
	}

	if m.state == stateEditHex {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.refresh()
		return m, cmd
	}
	return m, nil
}

// refresh unpacks the current input and renders its dump. A failed unpack
// still shows the records of the bytes consumed before the failure.
func (m *inspectModel) refresh() {
	m.table, m.err = "", nil
	b, err := parseHex(m.input.Value())
	if err != nil {
		m.err = err
		return
	}
	t := m.types[m.selected].t
	_, d, err := plum.UnpackDump(t, b)
	m.err = err
	if d != nil && len(d.Records) > 0 {
		m.table = d.Table(tableOptions())
	}
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("plumdump"))
	b.WriteString(" ")
	b.WriteString(m.source)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectType:
		if len(m.types) == 0 {
			b.WriteString("No types declared.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			return b.String()
		}
		b.WriteString("Select a type:\n\n")
		for i, ti := range m.types {
			line := m.formatType(ti)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • q quit"))

	case stateEditHex:
		ti := m.types[m.selected]
		fmt.Fprintf(&b, "Unpacking %s\n\n", m.formatType(ti))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		if m.table != "" {
			b.WriteString(m.table)
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString(errorStyle.Render(m.clip(errorLine(m.err))))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type hex bytes • esc back • ctrl+c quit"))
	}

	return b.String()
}

func (m *inspectModel) formatType(ti typeInfo) string {
	return ti.name + " " + typeStyle.Render(fmt.Sprintf("(%s, %s)", sizeString(ti.t), ti.t.Hint()))
}

func (m *inspectModel) clip(s string) string {
	return runewidth.Truncate(s, max(m.width, 20), "…")
}

func errorLine(err error) string {
	if e, ok := errors.As(err); ok {
		return e.Summary()
	}
	return err.Error()
}
