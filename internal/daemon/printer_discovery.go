package daemon

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printer"
	"github.com/adcondev/printbridge/internal/printing"
)

// PrinterDiscovery caches printer enumeration for health reporting. Bridge
// operations never go through this cache.
type PrinterDiscovery struct {
	api         printing.PrinterAPI
	cache       []printing.PrinterInfo
	lastRefresh time.Time
	cacheTTL    time.Duration
	mu          sync.RWMutex
	log         *zap.Logger
}

// NewPrinterDiscovery creates a new discovery service
func NewPrinterDiscovery(api printing.PrinterAPI, ttl time.Duration, log *zap.Logger) *PrinterDiscovery {
	if log == nil {
		log = zap.NewNop()
	}
	return &PrinterDiscovery{
		api:      api,
		cacheTTL: ttl,
		log:      log,
	}
}

// GetPrinters returns cached printers or refreshes if stale
func (pd *PrinterDiscovery) GetPrinters(forceRefresh bool) ([]printing.PrinterInfo, error) {
	pd.mu.RLock()
	if !forceRefresh && time.Since(pd.lastRefresh) < pd.cacheTTL && pd.cache != nil {
		result := make([]printing.PrinterInfo, len(pd.cache))
		copy(result, pd.cache)
		pd.mu.RUnlock()
		return result, nil
	}
	pd.mu.RUnlock()

	pd.mu.Lock()
	defer pd.mu.Unlock()

	// Another caller may have refreshed while we waited for the write lock
	if !forceRefresh && time.Since(pd.lastRefresh) < pd.cacheTTL && pd.cache != nil {
		result := make([]printing.PrinterInfo, len(pd.cache))
		copy(result, pd.cache)
		return result, nil
	}

	printers, err := pd.api.GetPrinters()
	if err != nil {
		if pd.cache != nil {
			result := make([]printing.PrinterInfo, len(pd.cache))
			copy(result, pd.cache)
			return result, err // Return stale cache copy on error
		}
		return nil, err
	}
	if printers == nil {
		printers = []printing.PrinterInfo{}
	}

	pd.cache = printers
	pd.lastRefresh = time.Now()

	result := make([]printing.PrinterInfo, len(printers))
	copy(result, printers)
	return result, nil
}

// GetSummary returns a lightweight summary for health checks
func (pd *PrinterDiscovery) GetSummary() printer.Summary {
	printers, err := pd.GetPrinters(false)
	if err != nil {
		pd.log.Debug("printer enumeration failed", zap.Error(err))
		return printer.Summary{Status: "error"}
	}
	return printer.Summarize(printers, pd.api.GetDefaultPrinterName())
}

// LogStartupDiagnostics logs printer info at service start
func (pd *PrinterDiscovery) LogStartupDiagnostics() {
	printers, err := pd.GetPrinters(true)
	if err != nil {
		pd.log.Warn("error enumerating printers", zap.Error(err))
		return
	}

	summary := printer.Summarize(printers, pd.api.GetDefaultPrinterName())
	pd.log.Info("printers detected",
		zap.Int("count", summary.DetectedCount),
		zap.Int("ready", summary.ReadyCount),
		zap.String("default", summary.DefaultName))

	if summary.DetectedCount == 0 {
		pd.log.Warn("no printers installed")
	}
	for _, p := range printers {
		pd.log.Debug("printer",
			zap.String("name", p.Name),
			zap.String("state", string(p.State)),
			zap.Strings("formats", p.Formats),
			zap.Bool("default", p.IsDefault))
	}
}
