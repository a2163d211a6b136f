// Package printer contains shared types to avoid import cycles.
package printer

import "github.com/adcondev/printbridge/internal/printing"

// Summary provides lightweight overview for health checks
type Summary struct {
	Status        string `json:"status"` // "ok", "warning", "error"
	DetectedCount int    `json:"detected_count"`
	ReadyCount    int    `json:"ready_count"`
	DefaultName   string `json:"default_name,omitempty"`
}

// Summarize derives a Summary from an enumeration. A printer is ready when
// it is idle or printing; no ready printer is a warning, none at all an error.
func Summarize(printers []printing.PrinterInfo, defaultName string) Summary {
	ready := 0
	for _, p := range printers {
		if p.State == printing.PrinterIdle || p.State == printing.PrinterPrinting {
			ready++
		}
		if defaultName == "" && p.IsDefault {
			defaultName = p.Name
		}
	}

	status := "ok"
	if len(printers) == 0 {
		status = "error"
	} else if ready == 0 {
		status = "warning"
	}

	return Summary{
		Status:        status,
		DetectedCount: len(printers),
		ReadyCount:    ready,
		DefaultName:   defaultName,
	}
}
