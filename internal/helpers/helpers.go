package helpers

import (
	"fmt"
	"math"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Characters that are unsafe in file or directory names on at least one
// supported platform.
const invalidNameChars = `<>:"|?*/\`

// Windows-reserved device names. A directory named CON is legal on Linux but
// renders the archive unusable when synced to a Windows machine.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// IsReservedName reports whether the base name (up to the first dot) is an
// OS-reserved device name.
func IsReservedName(name string) bool {
	base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
	_, reserved := reservedNames[base]
	return reserved
}

func stripInvalid(name string, stripDots bool) string {
	var b strings.Builder
	for _, ch := range name {
		if ch < 0x20 {
			continue
		}
		if strings.ContainsRune(invalidNameChars, ch) {
			continue
		}
		if stripDots && ch == '.' {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.TrimRight(b.String(), " .")
}

// SanitizeFolderName strips path-unsafe characters, control characters and
// dots from a directory name. Names that sanitize to nothing, or collide with
// an OS-reserved device name, come back as "unnamed".
func SanitizeFolderName(name string) string {
	cleaned := stripInvalid(name, true)
	if cleaned == "" || strings.TrimSpace(cleaned) == "" || IsReservedName(cleaned) {
		return "unnamed"
	}
	if len(cleaned) > 255 {
		cleaned = cleaned[:255]
	}
	return cleaned
}

// SanitizeFileName is SanitizeFolderName for file names; dots survive so
// extensions stay intact.
func SanitizeFileName(name string) string {
	cleaned := stripInvalid(name, false)
	if cleaned == "" || strings.Trim(cleaned, ". ") == "" || IsReservedName(cleaned) {
		return "unnamed"
	}
	if len(cleaned) > 255 {
		cleaned = cleaned[:255]
	}
	return cleaned
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
// Uses standard directory permissions (0700).
func CheckAndMakeDir(dir string) bool {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB, etc.).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}
