package journal

import (
	"os"
	"syscall"
)

// datasync skips the metadata flush; record boundaries only depend on data.
func datasync(f *os.File) error {
	return syscall.Fdatasync(int(f.Fd()))
}
