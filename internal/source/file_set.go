package source

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"fortio.org/safecast"
)

// FileSet manages the declaration files of one compilation and resolves
// spans back to line/column positions for reporting.
type FileSet struct {
	files []File
	index map[string]FileID // path -> id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// Add stores a file from normalized bytes, computes the line index and
// content hash, and returns a fresh FileID. A path may be added more than
// once; the index always points at the latest version.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	hash := sha256.Sum256(content)
	normalized := normalizePath(path)

	lenFiles, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    normalized,
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    hash,
		Flags:   flags,
	})
	fs.index[normalized] = id
	return id
}

// Load reads a file from disk, strips a UTF-8 BOM and normalizes CRLF,
// then calls Add.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return fs.Add(path, content, 0), nil
}

// Get returns the file for id, or nil when id is out of range.
func (fs *FileSet) Get(id FileID) *File {
	if int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// ByPath returns the latest file added under path.
func (fs *FileSet) ByPath(path string) (*File, bool) {
	id, ok := fs.index[normalizePath(path)]
	if !ok {
		return nil, false
	}
	return fs.Get(id), true
}

// Len returns the number of files in the set.
func (fs *FileSet) Len() int {
	return len(fs.files)
}

// Resolve converts a byte offset within a file to a 1-based line/column.
func (fs *FileSet) Resolve(id FileID, offset uint32) (LineCol, bool) {
	f := fs.Get(id)
	if f == nil {
		return LineCol{}, false
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil || offset > lenContent {
		return LineCol{}, false
	}
	line := sort.Search(len(f.LineIdx), func(i int) bool {
		return f.LineIdx[i] > offset
	})
	var lineStart uint32
	if line > 0 {
		lineStart = f.LineIdx[line-1]
	}
	lineU32, err := safecast.Conv[uint32](line)
	if err != nil {
		return LineCol{}, false
	}
	return LineCol{Line: lineU32, Col: offset - lineStart + 1}, true
}

// buildLineIndex records the byte offset just past every newline, so entry i
// is the start of line i+2 (line 1 starts at offset 0).
func buildLineIndex(content []byte) []uint32 {
	idx := make([]uint32, 0, 64)
	for i, b := range content {
		if b == '\n' {
			next, err := safecast.Conv[uint32](i + 1)
			if err != nil {
				break
			}
			idx = append(idx, next)
		}
	}
	return idx
}

func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
