// Package format implements C6: rendering memory entries into text for
// an agent audience (compact) or the curator role (verbose), grouped by
// prefix with promoted/obsolete markers and hidden-children summaries.
//
// Grounded on the teacher's internal/ui styling package: lipgloss styles
// keyed by semantic color roles (internal/ui/table.go's
// TableHeaderStyle/TableWarningStyle pattern), adapted here from table
// borders to inline entry markers.
package format

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hmemdev/hmem/internal/types"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	favoriteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	accessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	obsoleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Renderer renders MemoryEntry trees to text. Curator toggles between
// the compact agent-facing form and the verbose curator form (spec.md
// §4.6). PrefixDescriptions supplies the group header text.
type Renderer struct {
	Curator            bool
	PrefixDescriptions map[string]string
	Plain              bool // disables lipgloss styling, for non-tty output
}

func New(curator bool, prefixDescriptions map[string]string) *Renderer {
	return &Renderer{Curator: curator, PrefixDescriptions: prefixDescriptions}
}

// style applies s unless Plain is set, in which case the text passes
// through unstyled — the non-tty / piped-output path.
func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.Plain {
		return text
	}
	return s.Render(text)
}

// RenderByID renders a single by-ID read result (one or more entries,
// the latter only when showObsoletePath surfaced a full chain).
func (r *Renderer) RenderByID(entries []*types.MemoryEntry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(r.renderEntry(e, 0))
		if len(e.ObsoleteChain) > 1 && i == len(entries)-1 {
			sb.WriteString(r.style(mutedStyle, fmt.Sprintf("(resolved via chain: %s)", strings.Join(e.ObsoleteChain, " -> "))))
			sb.WriteString("\n")
		}
		if len(e.LinkedEntries) > 0 {
			sb.WriteString(r.renderLinkedBlock(e))
		}
	}
	return sb.String()
}

// RenderBulk groups entries by prefix (spec.md §4.6's universal rule)
// and renders each group with a header, a (shown/total) count, and a
// trailing hidden-obsolete-count line.
func (r *Renderer) RenderBulk(entries []*types.MemoryEntry, hiddenObsoleteCount int) string {
	groups := make(map[string][]*types.MemoryEntry)
	var order []string
	for _, e := range entries {
		if _, ok := groups[e.Prefix]; !ok {
			order = append(order, e.Prefix)
		}
		groups[e.Prefix] = append(groups[e.Prefix], e)
	}

	var sb strings.Builder
	for _, prefix := range order {
		label := r.PrefixDescriptions[prefix]
		if label == "" {
			label = prefix
		}
		group := groups[prefix]
		total := group[0].GroupTotal
		if total <= 0 {
			total = len(group)
		}
		header := fmt.Sprintf("%s (%d/%d)", label, len(group), total)
		sb.WriteString(r.style(headerStyle, header))
		sb.WriteString("\n")
		for _, e := range group {
			sb.WriteString(r.renderEntry(e, 0))
			if len(e.LinkedEntries) > 0 {
				sb.WriteString(r.renderLinkedBlock(e))
			}
		}
		sb.WriteString("\n")
	}
	if hiddenObsoleteCount > 0 {
		sb.WriteString(r.style(mutedStyle, fmt.Sprintf("(%d obsolete entries hidden)", hiddenObsoleteCount)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *Renderer) renderEntry(e *types.MemoryEntry, indent int) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("  ", indent))
	sb.WriteString(r.headerLine(e))
	sb.WriteString("\n")

	if e.Expanded {
		for _, child := range e.Children {
			sb.WriteString(r.renderEntry(child, indent+1))
		}
		if e.HiddenChildrenCount > 0 {
			sb.WriteString(strings.Repeat("  ", indent+1))
			sb.WriteString(r.style(mutedStyle, fmt.Sprintf("[+%d more -> %s]", e.HiddenChildrenCount, e.ID)))
			sb.WriteString("\n")
		}
	} else if e.HiddenChildrenCount > 0 || len(e.Children) > 0 {
		sb.WriteString(strings.Repeat("  ", indent+1))
		sb.WriteString(r.style(mutedStyle, fmt.Sprintf("[+%d more -> %s]", e.HiddenChildrenCount, e.ID)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// headerLine renders spec.md §4.6's root entry header: compact form
// "ID MM-DD [marker][!]  L1-text", curator form with full date, role
// tag, access count, absolute markers.
func (r *Renderer) headerLine(e *types.MemoryEntry) string {
	marker := r.marker(e)
	text := e.Level1
	if e.IsNode && len(e.Children) > 0 {
		text = fmt.Sprintf("%s [+%d -> %s]", text, len(e.Children), e.ID)
	}

	if !r.Curator {
		date := e.CreatedAt.Format("01-02")
		return fmt.Sprintf("%s %s%s  %s", e.ID, date, marker, text)
	}

	date := e.CreatedAt.Format("2006-01-02 15:04")
	role := e.MinRole.String()
	line := fmt.Sprintf("%s %s [%s] access=%d%s  %s", e.ID, date, role, e.AccessCount, marker, text)
	if e.Obsolete {
		line = r.style(obsoleteStyle, fmt.Sprintf("%s [⚠ OBSOLETE]", line))
	}
	return line
}

func (r *Renderer) marker(e *types.MemoryEntry) string {
	var sb strings.Builder
	switch e.Promoted {
	case types.PromotedFavorite:
		sb.WriteString(" " + r.style(favoriteStyle, "[♥]"))
	case types.PromotedAccess:
		sb.WriteString(" " + r.style(accessStyle, "[★]"))
	}
	if e.Obsolete && !r.Curator {
		sb.WriteString(" " + r.style(obsoleteStyle, "[!]"))
	}
	return sb.String()
}

func (r *Renderer) renderLinkedBlock(e *types.MemoryEntry) string {
	var sb strings.Builder
	sb.WriteString(r.style(mutedStyle, "--- Linked entries ---"))
	sb.WriteString("\n")
	for _, linked := range e.LinkedEntries {
		sb.WriteString(r.renderEntry(linked, 0))
	}
	return sb.String()
}
