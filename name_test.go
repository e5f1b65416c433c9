package fat32

import "testing"

func TestEncodeSFN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"readme.txt", "README  TXT"},
		{"a.b", "A       B  "},
		{"noext", "NOEXT      "},
	}
	for _, c := range cases {
		sfn, err := encodeSFN(c.in)
		if err != nil {
			t.Fatalf("encodeSFN(%q): %v", c.in, err)
		}
		if string(sfn[:]) != c.want {
			t.Errorf("encodeSFN(%q) = %q, want %q", c.in, sfn, c.want)
		}
	}
}

func TestEncodeSFNRejectsLongComponents(t *testing.T) {
	if _, err := encodeSFN("averylongfilename.txt"); err == nil {
		t.Fatal("expected ErrParam for a base longer than 8 bytes")
	}
}

func TestEncodeSFNFoldsIllegalBytes(t *testing.T) {
	sfn, err := encodeSFN("a b+c.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(sfn[:8]) != "A_B_C   " {
		t.Errorf("got %q", sfn[:8])
	}
}

func TestSFNChecksumStable(t *testing.T) {
	sfn, _ := encodeSFN("readme.txt")
	if sfnChecksum(sfn) != sfnChecksum(sfn) {
		t.Fatal("checksum must be deterministic")
	}
}

func TestLFNFragmentCount(t *testing.T) {
	if n := lfnFragmentCount("short.txt"); n != 1 {
		t.Errorf("lfnFragmentCount(short) = %d, want 1", n)
	}
	long := "this-name-is-definitely-longer-than-thirteen-characters.txt"
	if n := lfnFragmentCount(long); n != (len(long)+lfnCharsPerEntry-1)/lfnCharsPerEntry {
		t.Errorf("lfnFragmentCount(long) = %d", n)
	}
}

func TestEncodeDecodeLFNUnitsRoundtrip(t *testing.T) {
	name := "roundtrip.bin"
	units, hasMore := encodeLFNUnits(name, 0)
	if hasMore {
		t.Fatal("single fragment should not report hasMore")
	}
	// 13 code units fill the fragment exactly, so no terminator is written.
	out, terminated, ok := decodeLFNUnits(units, nil)
	if !ok || terminated {
		t.Fatalf("decodeLFNUnits: ok=%v terminated=%v", ok, terminated)
	}
	if string(out) != name {
		t.Errorf("decoded %q, want %q", out, name)
	}
}

func TestDecodeLFNUnitsRejectsPaddingBeforeTerminator(t *testing.T) {
	var units [lfnCharsPerEntry]uint16
	units[0] = 'a'
	units[1] = 0xFFFF // padding with no preceding terminator: malformed.
	if _, _, ok := decodeLFNUnits(units, nil); ok {
		t.Fatal("expected malformed fragment to be rejected")
	}
}
