// Package binio holds the low-level binary transforms shared by the
// vendor decoders: byte-order swaps, integer to float conversion, and
// digital-filter (group delay) correction.
package binio

// Swap2 reverses the byte order of consecutive 2-byte words in place.
// Trailing bytes that do not fill a word are left untouched.
func Swap2(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}

// Swap4 reverses the byte order of consecutive 4-byte words in place.
func Swap4(b []byte) {
	for i := 0; i+3 < len(b); i += 4 {
		b[i], b[i+3] = b[i+3], b[i]
		b[i+1], b[i+2] = b[i+2], b[i+1]
	}
}

// Swap8 reverses the byte order of consecutive 8-byte words in place.
func Swap8(b []byte) {
	for i := 0; i+7 < len(b); i += 8 {
		for j := 0; j < 4; j++ {
			b[i+j], b[i+7-j] = b[i+7-j], b[i+j]
		}
	}
}
