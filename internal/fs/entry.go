package fs

import "os"

// Entry is a single filesystem entry produced by a directory walk.
type Entry struct {
	Name      string
	FullPath  string
	IsDir     bool
	IsSymlink bool
	Depth     int
	Mode      os.FileMode
}

// IsRegular reports whether the entry is a plain file (after symlink resolution).
func (e Entry) IsRegular() bool {
	return !e.IsDir && e.Mode.IsRegular()
}
