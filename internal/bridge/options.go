package bridge

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/adcondev/printbridge/internal/printing"
)

// Option keys accepted in an options map.
const (
	OptCopies      = "copies"
	OptDuplex      = "duplex"
	OptColor       = "color"
	OptPaperSize   = "paperSize"
	OptOrientation = "orientation"
	OptJobName     = "jobName"
)

// OptionsFromMap converts a loosely typed options map into normalized
// print options. Unknown keys are ignored; a known key with a value of the
// wrong type is an INVALID_ARGUMENTS error.
func OptionsFromMap(m map[string]any) (printing.PrintOptions, error) {
	var o printing.Overrides

	if v, ok := m[OptCopies]; ok && v != nil {
		n, err := intValue(v)
		if err != nil {
			return printing.PrintOptions{}, printing.InvalidArguments(fmt.Sprintf("%s: %v", OptCopies, err))
		}
		o.Copies = &n
	}
	for key, dst := range map[string]**bool{OptDuplex: &o.Duplex, OptColor: &o.Color} {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		b, isBool := v.(bool)
		if !isBool {
			return printing.PrintOptions{}, printing.InvalidArguments(fmt.Sprintf("%s: expected boolean, got %T", key, v))
		}
		*dst = &b
	}
	for key, dst := range map[string]*string{
		OptPaperSize:   &o.PaperSize,
		OptOrientation: &o.Orientation,
		OptJobName:     &o.JobName,
	} {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		s, isString := v.(string)
		if !isString {
			return printing.PrintOptions{}, printing.InvalidArguments(fmt.Sprintf("%s: expected string, got %T", key, v))
		}
		*dst = s
	}

	return printing.MergeWithDefaults(o), nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(math.Max(math.MinInt32, math.Min(n, math.MaxInt32))), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n.String())
		}
		return int(i), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}
