package ctorplan

import (
	"kiln/internal/hier"
	"kiln/internal/layout"
)

// Run is one maximal contiguous range of members whose initializers were
// all plain same-field copies out of the source object.
type Run struct {
	First  int
	Last   int
	Offset int64 // byte offset of the first member
	Size   int64 // first byte to last byte plus width
}

// Merger coalesces adjacent trivially-copyable member copies into bulk
// copy steps. Feed member steps in declaration order; Finish flushes the
// trailing run. Runs of a single member degrade to the ordinary per-field
// step, the bulk copy buys nothing there.
type Merger struct {
	hier   *hier.Interner
	layout *layout.Engine
	class  *hier.Class
	rl     *layout.RecordLayout

	// Runs records every maximal mergeable range seen, including the
	// single-member ones that end up emitted field by field.
	Runs []Run

	pending []Step
	out     []Step
}

func NewMerger(in *hier.Interner, le *layout.Engine, c *hier.Class, rl *layout.RecordLayout) *Merger {
	return &Merger{hier: in, layout: le, class: c, rl: rl}
}

// add consumes the next member step. Non-mergeable steps flush the open
// run and pass through unchanged.
func (m *Merger) add(s Step) {
	if !m.mergeable(s) {
		m.flush()
		m.out = append(m.out, s)
		return
	}
	if n := len(m.pending); n > 0 && m.pending[n-1].Field+1 != s.Field {
		m.flush()
	}
	m.pending = append(m.pending, s)
}

// Add is the public face of add for callers driving a merger directly.
func (m *Merger) Add(s Step) { m.add(s) }

func (m *Merger) mergeable(s Step) bool {
	if s.Kind != StepInitField || s.Expr.Kind != hier.ExprMemberCopy {
		return false
	}
	f := &m.class.Fields[s.Field]
	if f.Volatile || f.BitWidth != 0 {
		return false
	}
	return m.hier.TriviallyCopyable(f.Type)
}

func (m *Merger) flush() {
	n := len(m.pending)
	if n == 0 {
		return
	}
	first := m.pending[0].Field
	last := m.pending[n-1].Field
	start := m.rl.FieldOffsets[first]
	end := m.rl.FieldOffsets[last] + m.fieldSize(last)
	m.Runs = append(m.Runs, Run{First: first, Last: last, Offset: start, Size: end - start})

	if n == 1 {
		m.out = append(m.out, m.pending[0])
	} else {
		m.out = append(m.out, Step{
			Kind:       StepCopyRun,
			FirstField: first,
			LastField:  last,
			Offset:     start,
			Size:       end - start,
		})
	}
	m.pending = m.pending[:0]
}

func (m *Merger) fieldSize(i int) int64 {
	sz, err := m.layout.SizeOf(m.class.Fields[i].Type)
	if err != nil {
		return 0
	}
	return sz
}

// finish flushes the trailing run and returns the rewritten sequence.
func (m *Merger) finish() []Step {
	m.flush()
	return m.out
}

// Finish is the public face of finish.
func (m *Merger) Finish() []Step { return m.finish() }
