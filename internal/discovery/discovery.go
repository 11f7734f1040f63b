// Package discovery finds UF2 bootloader volumes mounted on the host by
// scanning mounted partitions for an INFO_UF2.TXT marker file, the
// standard fallback for boards that present as a USB mass storage drive
// in bootloader mode rather than answering as a raw MSC/SCSI device.
package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// Volume describes one mounted UF2 bootloader drive found on the host.
type Volume struct {
	MountPoint string
	BoardID    string // parsed from "Board-ID:" in INFO_UF2.TXT, if present
}

const infoFileName = "INFO_UF2.TXT"

// Scan enumerates mounted partitions and returns every one that carries
// an INFO_UF2.TXT marker.
func Scan() ([]Volume, error) {
	partitions, err := disk.Partitions(true)
	if err != nil {
		return nil, err
	}

	var found []Volume
	for _, part := range partitions {
		infoPath := filepath.Join(part.Mountpoint, infoFileName)
		data, err := os.ReadFile(infoPath)
		if err != nil {
			continue
		}
		found = append(found, Volume{
			MountPoint: part.Mountpoint,
			BoardID:    parseBoardID(string(data)),
		})
	}
	return found, nil
}

// parseBoardID extracts the "Board-ID:" line value from an INFO_UF2.TXT's
// contents, returning "" if the file doesn't carry one.
func parseBoardID(contents string) string {
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Board-ID:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
