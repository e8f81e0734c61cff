package validate

import "testing"

func TestStripAdd0x(t *testing.T) {
	cases := []struct{ in, stripped string }{
		{"0xabc", "abc"},
		{"0Xabc", "abc"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Strip0x(c.in); got != c.stripped {
			t.Errorf("Strip0x(%q) = %q, want %q", c.in, got, c.stripped)
		}
	}
	if Add0x("abc") != "0xabc" {
		t.Errorf("Add0x should prepend 0x")
	}
	if Add0x("0xabc") != "0xabc" {
		t.Errorf("Add0x should not double-prefix")
	}
}

func TestIsAddress(t *testing.T) {
	valid := "0x99e2c875341d1cbb70432e35f5350f29bf20aa52"
	if !IsAddress(valid) {
		t.Errorf("expected %q to be a valid address", valid)
	}
	invalid := []string{
		"",
		"99e2c875341d1cbb70432e35f5350f29bf20aa52", // missing 0x
		"0x99e2c875341d1cbb70432e35f5350f29bf20aa", // too short
		"0xzze2c875341d1cbb70432e35f5350f29bf20aa52", // non-hex
	}
	for _, s := range invalid {
		if IsAddress(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestIsFileID(t *testing.T) {
	valid := "0x0000000000000000000000000000000000000000000000000000000000000001"
	if !IsFileID(valid) {
		t.Errorf("expected %q to be a valid file id", valid)
	}
	if IsFileID("0x01") {
		t.Errorf("32-byte check should reject short hex")
	}
}

func TestNormalizeAddress(t *testing.T) {
	upper := "0x99E2C875341D1CBB70432E35F5350F29BF20AA52"
	got, ok := NormalizeAddress(upper)
	if !ok {
		t.Fatalf("expected normalization to succeed")
	}
	want := "0x99e2c875341d1cbb70432e35f5350f29bf20aa52"
	if got != want {
		t.Errorf("NormalizeAddress(%q) = %q, want %q", upper, got, want)
	}
	if _, ok := NormalizeAddress("not-an-address"); ok {
		t.Errorf("expected normalization of garbage to fail")
	}
}

func TestIsHexOptionalPrefix(t *testing.T) {
	sig := make([]byte, 65)
	hex := "0x" + repeat("ab", 65)
	if !IsHexOptionalPrefix(hex, 65) {
		t.Errorf("expected prefixed signature hex to validate")
	}
	if !IsHexOptionalPrefix(hex[2:], 65) {
		t.Errorf("expected unprefixed signature hex to validate")
	}
	_ = sig
}

func TestIsPosixSegment(t *testing.T) {
	valid := []string{"file.txt", "a", "sub-dir_1"}
	for _, s := range valid {
		if !IsPosixSegment(s) {
			t.Errorf("expected %q to be a valid posix segment", s)
		}
	}
	invalid := []string{"", ".", "..", "a/b", "a\x00b"}
	for _, s := range invalid {
		if IsPosixSegment(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
