//go:build windows

package fs

import "golang.org/x/sys/windows"

func attributes(path string) (uint32, bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, false
	}
	attrs, err := windows.GetFileAttributes(p)
	return attrs, err == nil
}

// IsHidden reports the hidden attribute. Entries whose attributes can't be
// read fall back to the dotfile convention.
func IsHidden(fullPath string, name string) bool {
	attrs, ok := attributes(fullPath)
	if !ok {
		return len(name) > 0 && name[0] == '.'
	}
	return attrs&windows.FILE_ATTRIBUTE_HIDDEN != 0
}

// IsProtectedSystemEntry reports entries that are never walked, such as the
// compatibility junctions under a user profile.
func IsProtectedSystemEntry(fullPath, name string) bool {
	attrs, ok := attributes(fullPath)
	if !ok {
		return false
	}
	const protected = windows.FILE_ATTRIBUTE_SYSTEM | windows.FILE_ATTRIBUTE_REPARSE_POINT
	return attrs&protected == protected
}
