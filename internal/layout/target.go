package layout

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrSize  int64  // bytes
	PtrAlign int64  // bytes

	// CopyWidth is the preferred in-register width for bulk field copies,
	// in bytes. The run merger hands it to the emitter as the chunking
	// hint for memcpy ops.
	CopyWidth int64
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:    "x86_64-linux-gnu",
		PtrSize:   8,
		PtrAlign:  8,
		CopyWidth: 8,
	}
}

func AArch64LinuxGNU() Target {
	return Target{
		Triple:    "aarch64-linux-gnu",
		PtrSize:   8,
		PtrAlign:  8,
		CopyWidth: 16,
	}
}

// ByTriple resolves a triple string to a known target.
func ByTriple(triple string) (Target, bool) {
	switch triple {
	case "", "x86_64-linux-gnu":
		return X86_64LinuxGNU(), true
	case "aarch64-linux-gnu":
		return AArch64LinuxGNU(), true
	default:
		return Target{}, false
	}
}
