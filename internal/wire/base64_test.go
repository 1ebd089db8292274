package wire

import "testing"

func TestBase64EncodeKnownVectors(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"", ""},
		{"f", "Zg=="},
		{"fo", "Zm8="},
		{"foo", "Zm9v"},
		{"foob", "Zm9vYg=="},
		{"fooba", "Zm9vYmE="},
		{"foobar", "Zm9vYmFy"},
	}
	for _, c := range cases {
		dst := make([]byte, Base64EncodedLen(len(c.in)))
		n := Base64Encode(dst, []byte(c.in))
		if string(dst[:n]) != c.out {
			t.Errorf("Base64Encode(%q) = %q, want %q", c.in, dst[:n], c.out)
		}
	}
}

func TestBase64EncodeInPlaceMatchesOutOfPlace(t *testing.T) {
	inputs := []string{"", "f", "fo", "foo", "foob", "fooba", "foobar", "a longer message to exercise multiple groups"}
	for _, in := range inputs {
		want := make([]byte, Base64EncodedLen(len(in)))
		Base64Encode(want, []byte(in))

		buf := make([]byte, Base64EncodedLen(len(in)))
		copy(buf, in)
		n := Base64EncodeInPlace(buf, len(in))

		if string(buf[:n]) != string(want) {
			t.Errorf("in-place encode of %q = %q, want %q", in, buf[:n], want)
		}
	}
}
