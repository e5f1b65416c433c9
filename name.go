package fat32

import (
	"fmt"
	"strings"
)

// sfnAllowed is the set of bytes (beyond letters and digits) that may
// appear in a short name without folding to underscore.
const sfnAllowed = "!#$%&'()-@^_`{}~"

func isSFNSafe(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case strings.IndexByte(sfnAllowed, b) >= 0:
		return true
	}
	return false
}

// encodeSFN folds name into an 11-byte 8.3 short name: uppercase, illegal
// bytes become '_', split at the last '.' in the leaf. This implementation
// never generates a numeric tail on collision — see insert's Denied policy.
func encodeSFN(name string) (sfn [11]byte, err error) {
	if name == "" || name == "." || name == ".." {
		return encodeDotName(name), nil
	}
	base, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base, ext = name[:i], name[i+1:]
	}
	for i := range sfn {
		sfn[i] = ' '
	}
	fold := func(dst []byte, src string) {
		for i := 0; i < len(dst) && i < len(src); i++ {
			b := src[i]
			if b >= 'a' && b <= 'z' {
				b -= 'a' - 'A'
			}
			if !isSFNSafe(b) {
				b = '_'
			}
			dst[i] = b
		}
	}
	if len(base) > 8 || len(ext) > 3 {
		return sfn, fmt.Errorf("%w: %q has no short-name form", ErrParam, name)
	}
	fold(sfn[0:8], base)
	fold(sfn[8:11], ext)
	return sfn, nil
}

func encodeDotName(name string) [11]byte {
	var sfn [11]byte
	for i := range sfn {
		sfn[i] = ' '
	}
	copy(sfn[:], name)
	return sfn
}

// decodeSFN renders an 11-byte short name back to "base.ext" (or "base").
func decodeSFN(raw [11]byte) string {
	base := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// sfnChecksum computes the checksum shared by an SFN and its preceding LFN
// fragments.
func sfnChecksum(sfn [11]byte) byte {
	var sum byte
	for _, b := range sfn {
		sum = (sum >> 1) | (sum << 7)
		sum += b
	}
	return sum
}

// lfnFragmentCount returns how many 13-code-unit fragments name requires.
func lfnFragmentCount(name string) int {
	units := utf16Len(name)
	n := (units + lfnCharsPerEntry - 1) / lfnCharsPerEntry
	if n == 0 {
		n = 1
	}
	return n
}

// utf16Len returns the UCS-2 code unit length of name. Only the ASCII
// subset is supported end to end (one byte maps to one code unit); this
// still counts correctly for any ASCII name, which is this package's only
// supported input per its non-goals.
func utf16Len(name string) int { return len(name) }

// encodeLFNUnits renders name (ASCII) into fragIdx's 13 code units,
// 0-terminated and 0xFFFF-padded per the on-disk convention.
func encodeLFNUnits(name string, fragIdx int) (units [lfnCharsPerEntry]uint16, hasMore bool) {
	start := fragIdx * lfnCharsPerEntry
	for i := 0; i < lfnCharsPerEntry; i++ {
		pos := start + i
		switch {
		case pos < len(name):
			units[i] = uint16(name[pos])
		case pos == len(name):
			units[i] = 0
		default:
			units[i] = 0xFFFF
		}
	}
	return units, start+lfnCharsPerEntry < len(name)
}

// decodeLFNUnits appends the non-terminator code units of one fragment to
// dst. ok is false if a malformed fragment (0xFFFF padding before any 0x0000
// terminator, or a code unit outside ASCII) is encountered.
func decodeLFNUnits(units [lfnCharsPerEntry]uint16, dst []byte) (out []byte, terminated bool, ok bool) {
	for _, u := range units {
		switch {
		case u == 0:
			return dst, true, true
		case u == 0xFFFF:
			// Padding must only ever follow a terminator, never precede one.
			return dst, false, false
		case u >= 0x80:
			// Outside the ASCII subset this package supports end to end.
			return dst, false, false
		default:
			dst = append(dst, byte(u))
		}
	}
	return dst, false, true
}
