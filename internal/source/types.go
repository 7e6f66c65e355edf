package source

type (
	// FileID uniquely identifies a declaration file within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a declaration file.
	FileFlags uint8
)

const (
	// FileVirtual indicates the file was added from memory (test, stdin, etc.).
	FileVirtual FileFlags = 1 << iota
)

// Digest is the content hash used for cache keys and invalidation.
type Digest [32]byte

// File captures metadata and content for a single declaration file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Hash    Digest
	Flags   FileFlags
}

// LineCol represents a human-readable position in a declaration file.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
