//go:build windows

package fs

import (
	"os"

	"golang.org/x/sys/windows"
)

// DeviceID returns the serial number of the volume holding path. FileInfo
// on Windows carries no volume, so the path is opened instead.
func DeviceID(path string, _ os.FileInfo) (uint64, bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, false
	}
	// FILE_FLAG_BACKUP_SEMANTICS is required to open directories.
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, false
	}
	defer windows.CloseHandle(h)

	var data windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &data); err != nil {
		return 0, false
	}
	return uint64(data.VolumeSerialNumber), true
}
