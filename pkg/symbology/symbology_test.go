package symbology

import "testing"

func TestMask_Values(t *testing.T) {
	tests := []struct {
		name string
		want Mask
	}{
		{"QR_CODE", 0x4000000},
		{"CODE_128", 0x1},
		{"CODE_39", 0x2},
		{"EAN_13", 0x4},
		{"EAN_8", 0x8},
		{"UPC_A", 0x10},
		{"UPC_E", 0x20},
		{"PDF_417", 0x2000000},
		{"DATA_MATRIX", 0x8000000},
		{"AZTEC", 0x10000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMask(tt.name)
			if err != nil {
				t.Fatalf("ParseMask(%q) error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseMask(%q) = %#x, want %#x", tt.name, uint32(got), uint32(tt.want))
			}
			if !got.Restricts() {
				t.Errorf("mask for %s should restrict decoding", tt.name)
			}
		})
	}

	if len(tests) != len(Names()) {
		t.Errorf("table covers %d symbologies, package defines %d", len(tests), len(Names()))
	}
}

func TestParse_All(t *testing.T) {
	for _, name := range []string{"", "all", "ALL"} {
		m, err := ParseMask(name)
		if err != nil {
			t.Fatalf("ParseMask(%q) error: %v", name, err)
		}
		if m.Restricts() {
			t.Errorf("ParseMask(%q) = %#x, want no restriction", name, uint32(m))
		}
	}
}

func TestParse_Unknown(t *testing.T) {
	if _, err := Parse("qr_code"); err == nil {
		t.Error("Parse(qr_code) should fail: names are case-sensitive")
	}
	if _, err := Parse("MAXICODE"); err == nil {
		t.Error("Parse(MAXICODE) should fail")
	}
}

func TestMaskOf(t *testing.T) {
	if got := MaskOf(QRCode, EAN13); got != MaskQRCode|MaskEAN13 {
		t.Errorf("MaskOf(QR, EAN13) = %#x", uint32(got))
	}
	if got := MaskOf(QRCode, All); got != 0 {
		t.Errorf("MaskOf with All = %#x, want 0", uint32(got))
	}
	if got := MaskOf(); got != 0 {
		t.Errorf("MaskOf() = %#x, want 0", uint32(got))
	}
}

func TestMask_Has(t *testing.T) {
	m := MaskOf(Code128)
	if !m.Has(Code128) {
		t.Error("Has(Code128) = false")
	}
	if m.Has(QRCode) {
		t.Error("Has(QRCode) = true for CODE_128-only mask")
	}
	if !Mask(0).Has(Aztec) {
		t.Error("unrestricted mask should enable every symbology")
	}
}
