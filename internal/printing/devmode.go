package printing

// DEVMODE dmFields bits.
const (
	DMOrientation uint32 = 0x00000001
	DMPaperSize   uint32 = 0x00000002
	DMCopies      uint32 = 0x00000100
	DMColor       uint32 = 0x00000800
	DMDuplex      uint32 = 0x00001000
)

// DEVMODE field values.
const (
	DMOrientPortrait  int16 = 1
	DMOrientLandscape int16 = 2
	DMColorMonochrome int16 = 1
	DMColorColor      int16 = 2
	DMDupSimplex      int16 = 1
	DMDupVertical     int16 = 2
)

// DevMode is the subset of a Windows DEVMODE that print options touch.
// Only members whose bit is set in Fields are applied by the spooler.
type DevMode struct {
	Fields      uint32
	Orientation int16
	PaperSize   int16
	Copies      int16
	Color       int16
	Duplex      int16
}

var dmPaperSizes = map[string]int16{
	"Letter":    1,
	"Tabloid":   3,
	"Ledger":    4,
	"Legal":     5,
	"Statement": 6,
	"Executive": 7,
	"A3":        8,
	"A4":        9,
	"A5":        11,
	"Folio":     14,
	"10x14":     16,
	"11x17":     17,
}

// DevModeFor projects opts onto DEVMODE members. Paper sizes without a
// DMPAPER constant leave the driver default in place.
func DevModeFor(opts PrintOptions) DevMode {
	dm := DevMode{
		Fields: DMCopies | DMDuplex | DMColor,
		Copies: int16(ValidateCopies(opts.Copies)),
		Duplex: DMDupSimplex,
		Color:  DMColorMonochrome,
	}
	if opts.Duplex {
		dm.Duplex = DMDupVertical
	}
	if opts.Color {
		dm.Color = DMColorColor
	}
	switch opts.Orientation {
	case "portrait":
		dm.Fields |= DMOrientation
		dm.Orientation = DMOrientPortrait
	case "landscape":
		dm.Fields |= DMOrientation
		dm.Orientation = DMOrientLandscape
	}
	if size, ok := dmPaperSizes[opts.PaperSize]; ok {
		dm.Fields |= DMPaperSize
		dm.PaperSize = size
	}
	return dm
}
