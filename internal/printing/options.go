package printing

import (
	"strconv"
	"strings"
)

// Option limits.
const (
	MinCopies        = 1
	MaxCopies        = 999
	MaxJobNameLength = 255
	DefaultJobName   = "printbridge job"
)

// PrintOptions is the normalized option set handed to a backend.
type PrintOptions struct {
	Copies      int
	Duplex      bool
	Color       bool
	PaperSize   string
	Orientation string // "portrait", "landscape" or "" when unset
	JobName     string
}

// Overrides carries caller-supplied options. Nil pointers and empty
// strings are absent and keep the default.
type Overrides struct {
	Copies      *int
	Duplex      *bool
	Color       *bool
	PaperSize   string
	Orientation string
	JobName     string
}

// DefaultOptions returns the option set used when nothing is overridden.
func DefaultOptions() PrintOptions {
	return PrintOptions{
		Copies:      1,
		Orientation: "portrait",
		JobName:     DefaultJobName,
	}
}

var paperSizes = map[string]string{
	"A3":        "A3",
	"A4":        "A4",
	"A5":        "A5",
	"LETTER":    "Letter",
	"LEGAL":     "Legal",
	"LEDGER":    "Ledger",
	"TABLOID":   "Tabloid",
	"EXECUTIVE": "Executive",
	"FOLIO":     "Folio",
	"STATEMENT": "Statement",
	"10X14":     "10x14",
	"11X17":     "11x17",
}

// NormalizePaperSize returns the canonical spelling of a known paper size.
// Unknown names pass through unchanged so driver-specific forms still work.
func NormalizePaperSize(size string) string {
	if canonical, ok := paperSizes[strings.ToUpper(size)]; ok {
		return canonical
	}
	return size
}

// NormalizeOrientation maps "p"/"portrait" and "l"/"landscape" (any case)
// to their canonical names and everything else to "".
func NormalizeOrientation(o string) string {
	switch strings.ToLower(o) {
	case "p", "portrait":
		return "portrait"
	case "l", "landscape":
		return "landscape"
	}
	return ""
}

// ValidateCopies clamps n into [MinCopies, MaxCopies].
func ValidateCopies(n int) int {
	if n < MinCopies {
		return MinCopies
	}
	if n > MaxCopies {
		return MaxCopies
	}
	return n
}

// TruncateJobName limits name to MaxJobNameLength characters.
func TruncateJobName(name string) string {
	r := []rune(name)
	if len(r) <= MaxJobNameLength {
		return name
	}
	return string(r[:MaxJobNameLength])
}

// MergeWithDefaults overlays the present fields of o onto DefaultOptions
// and normalizes the result.
func MergeWithDefaults(o Overrides) PrintOptions {
	opts := DefaultOptions()

	if o.Copies != nil {
		opts.Copies = ValidateCopies(*o.Copies)
	}
	if o.Duplex != nil {
		opts.Duplex = *o.Duplex
	}
	if o.Color != nil {
		opts.Color = *o.Color
	}
	if o.PaperSize != "" {
		opts.PaperSize = NormalizePaperSize(o.PaperSize)
	}
	if orientation := NormalizeOrientation(o.Orientation); orientation != "" {
		opts.Orientation = orientation
	}
	if o.JobName != "" {
		opts.JobName = TruncateJobName(o.JobName)
	}
	return opts
}

// CupsOptions projects opts onto the CUPS option vocabulary.
func CupsOptions(opts PrintOptions) map[string]string {
	out := make(map[string]string)

	if opts.Copies > 1 {
		out["copies"] = strconv.Itoa(opts.Copies)
	}
	if opts.Duplex {
		out["sides"] = "two-sided-long-edge"
	} else {
		out["sides"] = "one-sided"
	}
	if opts.Color {
		out["ColorModel"] = "RGB"
		out["print-color-mode"] = "color"
	} else {
		out["ColorModel"] = "Gray"
		out["print-color-mode"] = "monochrome"
	}
	switch opts.Orientation {
	case "landscape":
		out["orientation-requested"] = "4"
	case "portrait":
		out["orientation-requested"] = "3"
	}
	if opts.PaperSize != "" {
		out["PageSize"] = opts.PaperSize
		out["media"] = opts.PaperSize
	}
	if opts.JobName != "" {
		out["job-name"] = opts.JobName
	}
	return out
}

// IPP orientation-requested enum values.
const (
	ippOrientationPortrait  = 3
	ippOrientationLandscape = 4
)

// IPPJobAttributes projects opts onto typed IPP job template attributes.
// The job name travels as an operation attribute and is not included.
func IPPJobAttributes(opts PrintOptions) map[string]interface{} {
	attrs := map[string]interface{}{
		"sides": "one-sided",
	}
	if opts.Copies > 1 {
		attrs["copies"] = opts.Copies
	}
	if opts.Duplex {
		attrs["sides"] = "two-sided-long-edge"
	}
	if opts.Color {
		attrs["print-color-mode"] = "color"
	} else {
		attrs["print-color-mode"] = "monochrome"
	}
	switch opts.Orientation {
	case "landscape":
		attrs["orientation-requested"] = ippOrientationLandscape
	case "portrait":
		attrs["orientation-requested"] = ippOrientationPortrait
	}
	if opts.PaperSize != "" {
		attrs["media"] = opts.PaperSize
	}
	return attrs
}
