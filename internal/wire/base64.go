package wire

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Base64EncodedLen returns the length of the base64 encoding of n source
// bytes, including '=' padding.
func Base64EncodedLen(n int) int {
	return ((n + 2) / 3) * 4
}

func encodeGroup(dst []byte, a, b, c byte, n int) {
	dst[0] = base64Alphabet[a>>2]
	dst[1] = base64Alphabet[((a&0x03)<<4)|(b>>4)]
	switch n {
	case 1:
		dst[2] = '='
		dst[3] = '='
	case 2:
		dst[2] = base64Alphabet[((b&0x0f)<<2)|(c>>6)]
		dst[3] = '='
	default:
		dst[2] = base64Alphabet[((b&0x0f)<<2)|(c>>6)]
		dst[3] = base64Alphabet[c&0x3f]
	}
}

// Base64Encode writes the base64 encoding of src into dst, which must be
// at least Base64EncodedLen(len(src)) bytes, and returns the number of
// bytes written.
func Base64Encode(dst, src []byte) int {
	di := 0
	si := 0
	for si+3 <= len(src) {
		encodeGroup(dst[di:di+4], src[si], src[si+1], src[si+2], 3)
		si += 3
		di += 4
	}
	if rem := len(src) - si; rem > 0 {
		var a, b byte = src[si], 0
		if rem == 2 {
			b = src[si+1]
		}
		encodeGroup(dst[di:di+4], a, b, 0, rem)
		di += 4
	}
	return di
}

// Base64EncodeInPlace encodes the first srcLen bytes of buf as base64,
// writing the result starting at buf[0], and returns the encoded
// length. buf must have capacity for Base64EncodedLen(srcLen) bytes.
//
// It processes groups from the last to the first so that the
// (necessarily larger) output never overwrites source bytes it has not
// yet read: group g writes to [4g, 4g+4) and reads from [3g, 3g+3),
// and for any earlier group g' < g, 3g'+3 <= 3g < 4g, so its source
// bytes are always below the current group's write range.
func Base64EncodeInPlace(buf []byte, srcLen int) int {
	fullGroups := srcLen / 3
	rem := srcLen % 3
	totalGroups := fullGroups
	if rem > 0 {
		totalGroups++
	}

	for g := totalGroups - 1; g >= 0; g-- {
		si := g * 3
		di := g * 4
		n := 3
		var a, b, c byte
		a = buf[si]
		if g == fullGroups && rem > 0 {
			n = rem
			if rem == 2 {
				b = buf[si+1]
			}
		} else {
			b = buf[si+1]
			c = buf[si+2]
		}
		encodeGroup(buf[di:di+4], a, b, c, n)
	}
	return totalGroups * 4
}
