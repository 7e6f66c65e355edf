package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"kiln/internal/diag"
	"kiln/internal/source"
)

// Pretty renders diagnostics in a human-readable form. Walks bag.Items()
// as stored, so call bag.Sort() first for positional ordering. Each
// diagnostic prints as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the source line with a ^~~~ underline under the span and,
// when ShowNotes is set, the attached notes in the same style.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		printHeading(w, fs, d.Primary, d.Severity, d.Code.String(), d.Message, opts)
		if opts.Context >= 0 {
			printSpanContext(w, fs, d.Primary, opts)
		}
		if opts.ShowNotes {
			for _, note := range d.Notes {
				loc := locationPrefix(fs, note.Span, opts.PathMode)
				fmt.Fprintf(w, "  note: %s %s\n", loc, note.Msg)
			}
		}
	}
}

func printHeading(w io.Writer, fs *source.FileSet, span source.Span, sev diag.Severity, code, msg string, opts PrettyOpts) {
	loc := locationPrefix(fs, span, opts.PathMode)
	sevText := sev.String()
	if opts.Color {
		sevText = severityColor(sev).Sprint(sevText)
	}
	fmt.Fprintf(w, "%s %s %s: %s\n", loc, sevText, code, msg)
}

func locationPrefix(fs *source.FileSet, span source.Span, mode PathMode) string {
	path := displayPath(fs, span.File, mode)
	if pos, ok := fs.Resolve(span.File, span.Start); ok {
		return fmt.Sprintf("%s:%d:%d:", path, pos.Line, pos.Col)
	}
	return path + ":"
}

func printSpanContext(w io.Writer, fs *source.FileSet, span source.Span, opts PrettyOpts) {
	f := fs.Get(span.File)
	if f == nil || span.Empty() {
		return
	}
	pos, ok := fs.Resolve(span.File, span.Start)
	if !ok {
		return
	}
	line, lineStart := lineAt(f, pos.Line)
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	fmt.Fprintf(w, "    %s\n", line)

	caretCol := int(span.Start - lineStart)
	if caretCol > len(line) {
		caretCol = len(line)
	}
	width := int(span.Len())
	if max := len(line) - caretCol; width > max {
		width = max
	}
	if width < 1 {
		width = 1
	}
	underline := "^" + strings.Repeat("~", width-1)
	if opts.Color {
		underline = color.New(color.FgGreen, color.Bold).Sprint(underline)
	}
	fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", caretCol), underline)
}

// lineAt returns the raw text of the 1-based line and its byte offset.
// LineIdx entry i is the start of line i+2; line 1 starts at offset 0.
func lineAt(f *source.File, line uint32) (string, uint32) {
	if line == 0 || int(line) > len(f.LineIdx)+1 {
		return "", 0
	}
	var start uint32
	if line > 1 {
		start = f.LineIdx[line-2]
	}
	end := uint32(len(f.Content))
	if int(line) <= len(f.LineIdx) {
		end = f.LineIdx[line-1]
	}
	return string(f.Content[start:end]), start
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError, diag.SevFatal:
		return color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}
