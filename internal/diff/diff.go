// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
)

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// Line is one line of a hunk. OldNum and NewNum are 1-based; zero means the
// line does not exist on that side.
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

type Stats struct {
	Additions int
	Deletions int
}

// Result is the diff between an original source and its flattened copy.
type Result struct {
	Hunks []Hunk
	Stats Stats
}

// Empty reports whether both sides were identical.
func (r *Result) Empty() bool {
	return len(r.Hunks) == 0
}

type Engine struct {
	contextLines int
}

func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{contextLines: contextLines}
}

// Diff computes a line diff of oldContent against newContent.
func (e *Engine) Diff(oldContent, newContent []byte) *Result {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	ops := script(oldLines, newLines)
	result := &Result{}
	for _, op := range ops {
		switch op.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	result.Hunks = e.group(ops)
	return result
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

// MaxTableCells caps the LCS table. Beyond it the differing middle of the
// two files is reported as one replacement instead of a minimal diff.
const MaxTableCells = 4 << 20

// script emits one op per line. The common prefix and suffix are matched
// directly; only the middle goes through the LCS table.
func script(oldLines, newLines [][]byte) []Line {
	n, m := len(oldLines), len(newLines)
	ops := make([]Line, 0, n+m)

	pre := 0
	for pre < n && pre < m && bytes.Equal(oldLines[pre], newLines[pre]) {
		ops = append(ops, Line{Type: Context, Content: string(oldLines[pre]), OldNum: pre + 1, NewNum: pre + 1})
		pre++
	}
	suf := 0
	for suf < n-pre && suf < m-pre && bytes.Equal(oldLines[n-1-suf], newLines[m-1-suf]) {
		suf++
	}

	ops = append(ops, middle(oldLines[pre:n-suf], newLines[pre:m-suf], pre)...)

	for k := suf; k > 0; k-- {
		i, j := n-k, m-k
		ops = append(ops, Line{Type: Context, Content: string(oldLines[i]), OldNum: i + 1, NewNum: j + 1})
	}
	return ops
}

// middle diffs the lines between the common prefix and suffix. offset is the
// prefix length, so line numbers stay relative to the whole file.
func middle(oldLines, newLines [][]byte, offset int) []Line {
	n, m := len(oldLines), len(newLines)
	ops := make([]Line, 0, n+m)

	if n*m > MaxTableCells {
		for i := range oldLines {
			ops = append(ops, Line{Type: Deletion, Content: string(oldLines[i]), OldNum: offset + i + 1})
		}
		for j := range newLines {
			ops = append(ops, Line{Type: Addition, Content: string(newLines[j]), NewNum: offset + j + 1})
		}
		return ops
	}

	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if bytes.Equal(oldLines[i], newLines[j]) {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && bytes.Equal(oldLines[i], newLines[j]):
			ops = append(ops, Line{Type: Context, Content: string(oldLines[i]), OldNum: offset + i + 1, NewNum: offset + j + 1})
			i++
			j++
		case j == m || (i < n && lcs[i+1][j] >= lcs[i][j+1]):
			ops = append(ops, Line{Type: Deletion, Content: string(oldLines[i]), OldNum: offset + i + 1})
			i++
		default:
			ops = append(ops, Line{Type: Addition, Content: string(newLines[j]), NewNum: offset + j + 1})
			j++
		}
	}
	return ops
}

// group cuts the op list into hunks of changes with surrounding context.
func (e *Engine) group(ops []Line) []Hunk {
	var hunks []Hunk
	start, end := -1, -1
	flush := func() {
		if start < 0 {
			return
		}
		hunks = append(hunks, newHunk(ops[start:end]))
		start, end = -1, -1
	}

	for idx, op := range ops {
		if op.Type == Context {
			continue
		}
		lo := max(0, idx-e.contextLines)
		hi := min(len(ops), idx+e.contextLines+1)
		if start >= 0 && lo > end {
			flush()
		}
		if start < 0 {
			start = lo
		}
		end = max(end, hi)
	}
	flush()
	return hunks
}

func newHunk(lines []Line) Hunk {
	h := Hunk{Lines: append([]Line(nil), lines...)}
	for _, l := range lines {
		if l.OldNum > 0 {
			if h.OldStart == 0 {
				h.OldStart = l.OldNum
			}
			h.OldLines++
		}
		if l.NewNum > 0 {
			if h.NewStart == 0 {
				h.NewStart = l.NewNum
			}
			h.NewLines++
		}
	}
	return h
}

// Format renders the result in a unified-diff-like layout.
func (r *Result) Format() string {
	var buf bytes.Buffer

	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStart, hunk.OldLines,
			hunk.NewStart, hunk.NewLines)

		for _, line := range hunk.Lines {
			buf.WriteString(Prefix(line.Type))
			buf.WriteString(line.Content)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// Prefix is the marker printed before a line of the given type.
func Prefix(t LineType) string {
	switch t {
	case Addition:
		return "+ "
	case Deletion:
		return "- "
	default:
		return "  "
	}
}
