// Package diff implements a longest-common-subsequence line diff producing
// hunks with context, used for conflict inspection and patch application.
//
// Content is compared line-wise; a trailing newline does not count as an
// extra empty line, so "a\n" and "a" compare equal.
package diff

import (
	"fmt"
	"strings"
)

// OpKind classifies a single diff line.
type OpKind int

const (
	OpEqual OpKind = iota
	OpAdd
	OpDelete
)

// Op is one line of a hunk.
type Op struct {
	Kind OpKind
	Text string

	// oldIndex and newIndex are the 0-based positions of this line in the
	// old and new content at the moment the op applies.
	oldIndex int
	newIndex int
}

// Hunk is a contiguous group of changed lines plus surrounding context.
type Hunk struct {
	OldStart int // 1-based first old line in the hunk
	OldLines int
	NewStart int // 1-based first new line in the hunk
	NewLines int
	Ops      []Op
}

// Result is the outcome of comparing two contents.
type Result struct {
	Hunks   []Hunk
	Added   int
	Deleted int
}

// HasChanges reports whether the two contents differ.
func (r Result) HasChanges() bool {
	return r.Added > 0 || r.Deleted > 0
}

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// Compute diffs old against new content with the default context width.
func Compute(oldText, newText string) Result {
	return ComputeContext(oldText, newText, DefaultContext)
}

// ComputeContext diffs old against new content keeping the given number of
// unchanged lines around each change. Changes closer together than twice the
// context width merge into a single hunk.
func ComputeContext(oldText, newText string, context int) Result {
	a := splitLines(oldText)
	b := splitLines(newText)

	ops := script(a, b)

	var res Result
	for _, op := range ops {
		switch op.Kind {
		case OpAdd:
			res.Added++
		case OpDelete:
			res.Deleted++
		}
	}
	if !res.HasChanges() {
		return res
	}

	// Mark every changed op plus its surrounding context for inclusion,
	// then collect consecutive marked runs into hunks.
	keep := make([]bool, len(ops))
	for i, op := range ops {
		if op.Kind == OpEqual {
			continue
		}
		lo := i - context
		if lo < 0 {
			lo = 0
		}
		hi := i + context
		if hi > len(ops)-1 {
			hi = len(ops) - 1
		}
		for k := lo; k <= hi; k++ {
			keep[k] = true
		}
	}

	for i := 0; i < len(ops); {
		if !keep[i] {
			i++
			continue
		}
		j := i
		for j < len(ops) && keep[j] {
			j++
		}
		res.Hunks = append(res.Hunks, makeHunk(ops[i:j]))
		i = j
	}
	return res
}

func makeHunk(ops []Op) Hunk {
	h := Hunk{Ops: ops}
	for _, op := range ops {
		switch op.Kind {
		case OpEqual:
			h.OldLines++
			h.NewLines++
		case OpDelete:
			h.OldLines++
		case OpAdd:
			h.NewLines++
		}
	}
	h.OldStart = ops[0].oldIndex + 1
	h.NewStart = ops[0].newIndex + 1
	return h
}

// script computes the full edit script between two line slices using a
// dynamic-programming LCS table.
func script(a, b []string) []Op {
	n, m := len(a), len(b)
	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []Op
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, Op{Kind: OpEqual, Text: a[i], oldIndex: i, newIndex: j})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			ops = append(ops, Op{Kind: OpDelete, Text: a[i], oldIndex: i, newIndex: j})
			i++
		default:
			ops = append(ops, Op{Kind: OpAdd, Text: b[j], oldIndex: i, newIndex: j})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, Op{Kind: OpDelete, Text: a[i], oldIndex: i, newIndex: j})
	}
	for ; j < m; j++ {
		ops = append(ops, Op{Kind: OpAdd, Text: b[j], oldIndex: i, newIndex: j})
	}
	return ops
}

// Unified renders the result in unified diff format.
func (r Result) Unified(oldName, newName string) string {
	if !r.HasChanges() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range r.Hunks {
		oldStart := h.OldStart
		if h.OldLines == 0 {
			oldStart--
		}
		newStart := h.NewStart
		if h.NewLines == 0 {
			newStart--
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", oldStart, h.OldLines, newStart, h.NewLines)
		for _, op := range h.Ops {
			switch op.Kind {
			case OpEqual:
				b.WriteString(" ")
			case OpAdd:
				b.WriteString("+")
			case OpDelete:
				b.WriteString("-")
			}
			b.WriteString(op.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Apply patches oldText with the result, verifying context and deleted
// lines against the input. The output joins lines with \n and carries no
// trailing newline.
func Apply(oldText string, r Result) (string, error) {
	lines := splitLines(oldText)
	var out []string
	pos := 0

	for _, h := range r.Hunks {
		start := h.OldStart - 1
		if start < pos || start > len(lines) {
			return "", fmt.Errorf("hunk at old line %d out of range", h.OldStart)
		}
		out = append(out, lines[pos:start]...)
		pos = start

		for _, op := range h.Ops {
			switch op.Kind {
			case OpEqual, OpDelete:
				if pos >= len(lines) || lines[pos] != op.Text {
					return "", fmt.Errorf("patch mismatch at old line %d", pos+1)
				}
				if op.Kind == OpEqual {
					out = append(out, lines[pos])
				}
				pos++
			case OpAdd:
				out = append(out, op.Text)
			}
		}
	}
	out = append(out, lines[pos:]...)
	return strings.Join(out, "\n"), nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
