// Package symbology maps barcode symbology names to the engine's format bit mask.
package symbology

import (
	"fmt"
	"sort"
	"strings"
)

// Symbology is a barcode encoding standard, named as the host configures it.
type Symbology string

const (
	All        Symbology = "all"
	QRCode     Symbology = "QR_CODE"
	Code128    Symbology = "CODE_128"
	Code39     Symbology = "CODE_39"
	EAN13      Symbology = "EAN_13"
	EAN8       Symbology = "EAN_8"
	UPCA       Symbology = "UPC_A"
	UPCE       Symbology = "UPC_E"
	PDF417     Symbology = "PDF_417"
	DataMatrix Symbology = "DATA_MATRIX"
	Aztec      Symbology = "AZTEC"
)

// Mask is the engine's barcode format bit set. The zero Mask applies no
// restriction.
type Mask uint32

// Engine format bits. These values are part of the engine's wire contract.
const (
	MaskCode128    Mask = 0x1
	MaskCode39     Mask = 0x2
	MaskEAN13      Mask = 0x4
	MaskEAN8       Mask = 0x8
	MaskUPCA       Mask = 0x10
	MaskUPCE       Mask = 0x20
	MaskPDF417     Mask = 0x2000000
	MaskQRCode     Mask = 0x4000000
	MaskDataMatrix Mask = 0x8000000
	MaskAztec      Mask = 0x10000000
)

var masks = map[Symbology]Mask{
	QRCode:     MaskQRCode,
	Code128:    MaskCode128,
	Code39:     MaskCode39,
	EAN13:      MaskEAN13,
	EAN8:       MaskEAN8,
	UPCA:       MaskUPCA,
	UPCE:       MaskUPCE,
	PDF417:     MaskPDF417,
	DataMatrix: MaskDataMatrix,
	Aztec:      MaskAztec,
}

// Parse validates a configured symbology name. Names are case-sensitive,
// except that "all" is also accepted as "ALL" and "" means All.
func Parse(name string) (Symbology, error) {
	switch name {
	case "", "all", "ALL":
		return All, nil
	}
	s := Symbology(name)
	if _, ok := masks[s]; !ok {
		return "", fmt.Errorf("unknown symbology %q (valid: all, %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Mask returns the engine bit for s. All and unknown names return 0.
func (s Symbology) Mask() Mask {
	return masks[s]
}

// Names returns the named symbologies, sorted, excluding All.
func Names() []string {
	names := make([]string, 0, len(masks))
	for s := range masks {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// MaskOf combines symbologies into one mask. Any All in the list lifts the
// restriction entirely.
func MaskOf(syms ...Symbology) Mask {
	var m Mask
	for _, s := range syms {
		if s == All {
			return 0
		}
		m |= s.Mask()
	}
	return m
}

// ParseMask parses a configured name straight into a mask.
func ParseMask(name string) (Mask, error) {
	s, err := Parse(name)
	if err != nil {
		return 0, err
	}
	return MaskOf(s), nil
}

// Restricts reports whether m limits decoding to a subset of symbologies.
func (m Mask) Restricts() bool {
	return m != 0
}

// Has reports whether s is enabled by m. An unrestricted mask enables everything.
func (m Mask) Has(s Symbology) bool {
	if !m.Restricts() {
		return true
	}
	return m&s.Mask() != 0
}
