package emit

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Printer dumps a Module to a stable text format, mainly for tests and
// the dump subcommand.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a printer over w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Dump writes the module to w.
func Dump(w io.Writer, m *Module) error {
	return NewPrinter(w).PrintModule(m)
}

// PrintModule prints a complete module.
func (p *Printer) PrintModule(m *Module) error {
	p.printf("unit %s\n\n", m.Name)
	for i := range m.Globals {
		p.PrintGlobal(&m.Globals[i])
	}
	for _, f := range m.Funcs {
		p.PrintFunc(f)
	}
	return nil
}

// PrintGlobal prints one global definition.
func (p *Printer) PrintGlobal(g *Global) {
	if g.External {
		p.printf("extern global %s\n\n", g.Name)
		return
	}
	p.printf("global %s {\n", g.Name)
	for i, w := range g.Words {
		p.printf("  [%d] %s\n", i, formatWord(w))
	}
	if len(g.AddressPoints) > 0 {
		tags := make([]string, 0, len(g.AddressPoints))
		for tag := range g.AddressPoints {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			p.printf("  addrpoint %s = %d\n", tag, g.AddressPoints[tag])
		}
	}
	p.printf("}\n\n")
}

// PrintFunc prints one function body.
func (p *Printer) PrintFunc(f *Func) {
	p.printf("func %s {\n", f.Name)
	for _, op := range f.Ops {
		p.printf("  %s\n", FormatOp(op))
	}
	p.printf("}\n\n")
}

func formatWord(w Word) string {
	switch w.Kind {
	case WordInt:
		return fmt.Sprintf("int %d", w.Val)
	case WordFnRef:
		return "fn @" + w.Sym
	case WordGlobalRef:
		if w.Val != 0 {
			return fmt.Sprintf("ref @%s+%d", w.Sym, w.Val)
		}
		return "ref @" + w.Sym
	case WordString:
		return fmt.Sprintf("str %q", w.Sym)
	case WordNull:
		return "null"
	default:
		return "word?"
	}
}

// FormatOp renders one op on one line.
func FormatOp(op Op) string {
	var sb strings.Builder
	if op.Dst != NoValue {
		fmt.Fprintf(&sb, "v%d = ", op.Dst)
	}
	sb.WriteString(op.Kind.String())
	switch op.Kind {
	case OpConst:
		fmt.Fprintf(&sb, " %d", op.Imm)
	case OpParam:
		fmt.Fprintf(&sb, " #%d", op.Index)
	case OpMemCopy:
		fmt.Fprintf(&sb, " %s bytes=%d chunk=%d", formatArgs(op.Args), op.Imm, op.Chunk)
	case OpCall, OpTrap, OpGlobalAddr, OpTypeTest, OpCatchBegin:
		if op.Sym != "" {
			fmt.Fprintf(&sb, " @%s", op.Sym)
		}
		if len(op.Args) > 0 {
			sb.WriteString(" " + formatArgs(op.Args))
		}
	case OpVTableAddr:
		fmt.Fprintf(&sb, " @%s+%d", op.Sym, op.Index)
	case OpLabel, OpBranch:
		fmt.Fprintf(&sb, " L%d", op.Target)
	case OpCondBranch:
		fmt.Fprintf(&sb, " %s L%d L%d", formatArgs(op.Args), op.Target, op.Else)
	default:
		if len(op.Args) > 0 {
			sb.WriteString(" " + formatArgs(op.Args))
		}
	}
	return sb.String()
}

func formatArgs(args []Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("v%d", a))
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}
