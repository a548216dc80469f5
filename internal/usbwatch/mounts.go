package usbwatch

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFilenames are the manifest names looked for on removable media,
// matched case-insensitively.
var DefaultFilenames = []string{"barcode.txt", "barcodes.txt", "manifest.txt"}

// removable filesystem types as they appear in /proc/mounts
var removableFSTypes = map[string]bool{
	"vfat":    true,
	"exfat":   true,
	"ntfs":    true,
	"fuseblk": true,
}

// /proc/mounts octal-escapes whitespace in mount points
var mountUnescaper = strings.NewReplacer(
	`\040`, " ",
	`\011`, "\t",
	`\012`, "\n",
	`\134`, `\`,
)

// GuessMountRoots returns the directories removable media lands in on this
// host: the usual /media and /run/media variants plus any removable
// filesystem mount points found in /proc/mounts. Only existing directories
// are returned.
func GuessMountRoots() []string {
	roots := []string{"/media", "/mnt"}
	for _, env := range []string{"USER", "SUDO_USER", "LOGNAME"} {
		if user := os.Getenv(env); user != "" {
			roots = append(roots,
				filepath.Join("/media", user),
				filepath.Join("/run/media", user),
			)
		}
	}
	if data, err := os.ReadFile("/proc/mounts"); err == nil {
		roots = append(roots, removableMounts(string(data))...)
	}
	return existingDirs(dedupe(roots))
}

// removableMounts extracts mount points of removable-media filesystems from
// /proc/mounts content.
func removableMounts(mounts string) []string {
	var out []string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if removableFSTypes[fields[2]] {
			out = append(out, mountUnescaper.Replace(fields[1]))
		}
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func existingDirs(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			out = append(out, p)
		}
	}
	return out
}
