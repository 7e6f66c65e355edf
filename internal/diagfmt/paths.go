package diagfmt

import (
	"path/filepath"

	"kiln/internal/source"
)

func displayPath(fs *source.FileSet, id source.FileID, mode PathMode) string {
	f := fs.Get(id)
	if f == nil {
		return "<unknown>"
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(f.Path); err == nil {
			return abs
		}
		return f.Path
	case PathModeRelative:
		if wd, err := filepath.Abs("."); err == nil {
			if rel, err := filepath.Rel(wd, f.Path); err == nil {
				return rel
			}
		}
		return f.Path
	case PathModeBasename:
		return filepath.Base(f.Path)
	default:
		return f.Path
	}
}
