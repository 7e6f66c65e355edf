// Package diagfmt renders collected diagnostics as pretty terminal
// output or machine-readable JSON.
package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto keeps paths the way the file set recorded them.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	Context   int8 // source lines of context around the span, <0 disables
	PathMode  PathMode
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	IncludePositions bool // add line/col to every location
	PathMode         PathMode
	Max              int // truncates output, not the bag
	IncludeNotes     bool
}
