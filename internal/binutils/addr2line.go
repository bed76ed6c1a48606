package binutils

import (
	"strconv"
	"strings"
)

// Resolution is one addr2line answer for a PC: the function it belongs
// to and the file:line it maps to, after inline-frame collapsing.
type Resolution struct {
	Function string
	File     string
	Line     uint64
}

// ParseAddr2LineBlock parses the lines addr2line -Cafr[i] prints for a
// single queried address. The first line always echoes the address
// (ignored here, the caller already knows which PC this block is
// for); the remaining lines come in (function, file:line) pairs, one
// pair per inline frame when -i was requested.
//
// Only the LAST pair is kept regardless of chain length: without -i
// that is the sole pair addr2line prints (the function the PC
// originated in); with -i it is the outermost frame the code was
// inlined into. Both selections are made by the caller choosing
// whether to pass -i — this function always keeps the last pair.
func ParseAddr2LineBlock(lines []string) (Resolution, bool) {
	// drop the leading "0x..." echo line if present
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "0x") {
		lines = lines[1:]
	}
	if len(lines) < 2 {
		return Resolution{}, false
	}

	function := strings.TrimSpace(lines[len(lines)-2])
	fileLine := strings.TrimSpace(lines[len(lines)-1])

	file, lineNo := splitFileLine(fileLine)
	return Resolution{Function: function, File: file, Line: lineNo}, true
}

// splitFileLine splits addr2line's "path/to/file.c:123" column,
// tolerating the "??:0" / "??:?" unresolved markers and Windows-style
// drive-letter colons by always splitting on the last colon.
func splitFileLine(s string) (file string, line uint64) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return s, 0
	}
	file = s[:idx]
	lineStr := s[idx+1:]
	if file == "??" {
		file = ""
	}
	n, err := strconv.ParseUint(lineStr, 10, 64)
	if err != nil {
		return file, 0
	}
	return file, n
}
