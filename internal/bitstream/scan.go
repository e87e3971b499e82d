package bitstream

import "fmt"

// Unit describes one start-code delimited unit found in a byte buffer.
type Unit struct {
	// Offset of the first marker byte. For a 4-byte marker this includes the
	// leading zero byte.
	Offset int
	// AccessUnitStart is set when the marker is 00 00 00 01.
	AccessUnitStart bool
	Type            uint8
	LayerID         uint8
	TemporalID      int
}

// String implements fmt.Stringer.
func (u Unit) String() string {
	return fmt.Sprintf("%s@%d (layer=%d tid=%d au=%t)",
		TypeName(u.Type), u.Offset, u.LayerID, u.TemporalID, u.AccessUnitStart)
}

// Scan finds every 00 00 01 marker in buf and unpacks the two header bytes that
// follow it. Each offset is tested independently: there is no skip-ahead after a
// match, so marker-like byte runs inside a unit yield extra descriptors. The
// last six bytes are never a marker position, which keeps both header bytes
// in bounds.
func Scan(buf []byte) []Unit {
	var units []Unit

	for i := 0; i < len(buf)-6; i++ {
		if buf[i+1] != 0x00 || buf[i+2] != 0x00 || buf[i+3] != 0x01 {
			continue
		}

		u := Unit{Offset: i + 1}
		if buf[i] == 0x00 {
			u.Offset = i
			u.AccessUnitStart = true
		}

		h1 := buf[i+4]
		h2 := buf[i+5]
		u.Type = (h1 & 0x7E) >> 1
		u.LayerID = ((h1 & 0x01) << 5) | ((h2 & 0xF8) >> 3)
		u.TemporalID = int(h2&0x07) - 1

		units = append(units, u)
	}

	return units
}
