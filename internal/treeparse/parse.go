// Package treeparse implements C2: converting tab/space-indented text into
// a (title, level_1, nodes) tree anchored to compound IDs. It has two
// entry points — ParseAbsolute for a brand-new root, and ParseRelative for
// appending children under an existing live parent — sharing the same
// indentation detection and sibling-numbering core (spec.md §4.2).
package treeparse

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Node is one parsed line of the tree, already assigned its compound ID.
type Node struct {
	ID       string
	ParentID string
	Depth    int
	Content  string
	Title    string
}

// Result is the outcome of ParseAbsolute.
type Result struct {
	Title  string
	Level1 string
	Nodes  []Node
}

type rawLine struct {
	tabs int
	text string
}

// tokenize splits content into non-blank lines with a normalized tab
// count. If no line begins with a literal tab, a space unit is
// auto-detected from the first indented line (default 4).
func tokenize(content string) []rawLine {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	hasTab := false
	for _, l := range lines {
		if strings.HasPrefix(l, "\t") {
			hasTab = true
			break
		}
	}

	spaceUnit := 0
	if !hasTab {
		for _, l := range lines {
			trimmed := strings.TrimLeft(l, " ")
			lead := len(l) - len(trimmed)
			if lead > 0 && strings.TrimSpace(l) != "" {
				spaceUnit = lead
				break
			}
		}
		if spaceUnit == 0 {
			spaceUnit = 4
		}
	}

	out := make([]rawLine, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		var tabs int
		var text string
		if hasTab {
			trimmed := strings.TrimLeft(l, "\t")
			tabs = len(l) - len(trimmed)
			text = strings.TrimSpace(trimmed)
		} else {
			trimmed := strings.TrimLeft(l, " ")
			lead := len(l) - len(trimmed)
			tabs = lead / spaceUnit
			text = strings.TrimSpace(trimmed)
		}
		if text == "" {
			continue
		}
		out = append(out, rawLine{tabs: tabs, text: text})
	}
	return out
}

// ParseAbsolute parses a full write() content block anchored to a new
// root ID. Lines with zero leading indent become the root's title/level_1
// text; indented lines become nodes starting at depth 2.
func ParseAbsolute(content, rootID string, maxDepth, maxTitleChars int) (Result, bool) {
	lines := tokenize(content)

	var rootLines []string
	var nodeLines []rawLine
	for _, l := range lines {
		if l.tabs == 0 {
			rootLines = append(rootLines, l.text)
		} else {
			nodeLines = append(nodeLines, l)
		}
	}

	if len(rootLines) == 0 {
		return Result{}, false
	}

	var title, level1 string
	if len(rootLines) == 1 {
		level1 = rootLines[0]
		title = extractTitle(rootLines[0], maxTitleChars)
	} else {
		title = rootLines[0]
		level1 = strings.Join(rootLines[1:], " | ")
	}

	// Node lines were filtered to tabs >= 1, so tabs == 1 maps to
	// baseDepth (2); tabBase is the tab count that maps to baseDepth.
	// Absolute parsing collapses over-deep lines onto the deepest level
	// rather than discarding them (spec.md §8 boundary behavior).
	nodes := buildNodes(nodeLines, rootID, 2, 1, maxDepth, maxTitleChars, false, map[string]int{}, map[int]string{1: rootID})

	return Result{Title: title, Level1: level1, Nodes: nodes}, true
}

// ParseRelative parses an appendChildren() content block anchored to a
// live parentID at parentDepth, pre-seeded with the next available
// sibling sequence already allocated in storage. Lines whose absolute
// depth would exceed maxDepth are silently discarded.
func ParseRelative(content, parentID string, parentDepth, startSeq, maxDepth, maxTitleChars int) []Node {
	lines := tokenize(content)
	seqAtParent := map[string]int{parentID: startSeq - 1}
	lastIDAtDepth := map[int]string{parentDepth: parentID}
	// Lines here start at tabs == 0 for a direct child, so tabBase is 0.
	// Append parsing silently discards lines that would overflow maxDepth.
	return buildNodes(lines, parentID, parentDepth+1, 0, maxDepth, maxTitleChars, true, seqAtParent, lastIDAtDepth)
}

// buildNodes runs the shared sibling-numbering algorithm: baseDepth is the
// depth assigned to a line whose tab count equals tabBase (2 with
// tabBase 1 for a brand-new root's first node level; parentDepth+1 with
// tabBase 0 for an append's first child level). seqAtParent and
// lastIDAtDepth carry pre-seeded state from the caller. When
// discardOverflow is set, lines whose raw depth exceeds maxDepth are
// dropped entirely; otherwise they collapse onto the deepest level.
func buildNodes(lines []rawLine, anchorID string, baseDepth, tabBase, maxDepth int, maxTitleChars int, discardOverflow bool, seqAtParent map[string]int, lastIDAtDepth map[int]string) []Node {
	var nodes []Node
	for _, l := range lines {
		raw := baseDepth + (l.tabs - tabBase)
		if discardOverflow && raw > maxDepth {
			continue
		}
		depth := raw
		if depth < baseDepth {
			depth = baseDepth
		}
		if depth > maxDepth {
			depth = maxDepth
		}

		var parent string
		if depth == baseDepth {
			parent = anchorID
		} else {
			parent = lastIDAtDepth[depth-1]
			if parent == "" {
				parent = anchorID
			}
		}

		seqAtParent[parent]++
		seq := seqAtParent[parent]
		id := parent + "." + strconv.Itoa(seq)
		lastIDAtDepth[depth] = id

		nodes = append(nodes, Node{
			ID:       id,
			ParentID: parent,
			Depth:    depth,
			Content:  l.text,
			Title:    extractTitle(l.text, maxTitleChars),
		})
	}
	return nodes
}

// ExtractTitle derives a short title from a single line of content,
// exposed for updateNode's node/root branches which re-derive title on
// every edit (spec.md §4.3).
func ExtractTitle(s string, maxChars int) string {
	return extractTitle(s, maxChars)
}

// extractTitle derives a short title: prefer the text before " — " when
// that prefix fits maxChars, else cut at the last word boundary within
// maxChars, else hard-truncate.
func extractTitle(s string, maxChars int) string {
	if idx := strings.Index(s, " — "); idx >= 0 {
		prefix := s[:idx]
		if utf8.RuneCountInString(prefix) <= maxChars {
			return prefix
		}
	}
	return truncate(s, maxChars)
}

func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	cut := string(r[:maxChars])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return cut
}
