package binutils

import "strings"

// ParseArch extracts the machine architecture name from `readelf -h`
// output, e.g. the value of its "Machine:" field.
func ParseArch(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Machine:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// ParseFileType extracts the ELF type ("EXEC", "DYN", ...) from
// `readelf -h` output, used to tell a PIE/shared object apart from a
// statically-linked executable when translating VMMap offsets.
func ParseFileType(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "Type:")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if idx := strings.Index(rest, " "); idx >= 0 {
			return rest[:idx]
		}
		return rest
	}
	return ""
}
