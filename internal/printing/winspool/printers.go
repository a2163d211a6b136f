package winspool

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printing"
)

// supportedFormats are the datatypes the default print processor accepts.
var supportedFormats = []string{
	printing.FormatRaw,
	printing.FormatText,
	printing.FormatCommand,
}

// Printers implements printing.PrinterAPI on the Windows spooler.
type Printers struct {
	sp  Spooler
	log *zap.Logger
}

// NewPrinters returns the printer backend. A nil logger disables logging.
func NewPrinters(sp Spooler, log *zap.Logger) *Printers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Printers{sp: sp, log: log}
}

// GetPrinters enumerates local printers and printer connections.
func (p *Printers) GetPrinters() ([]printing.PrinterInfo, error) {
	records, err := p.sp.EnumPrinters()
	if err != nil {
		return nil, classify(err, "Failed to enumerate printers")
	}

	def := p.GetDefaultPrinterName()
	printers := make([]printing.PrinterInfo, 0, len(records))
	for _, r := range records {
		if r.Name == "" {
			p.log.Warn("skipping printer entry without a name")
			continue
		}
		printers = append(printers, p.printerInfo(r, def))
	}
	return printers, nil
}

// GetPrinter opens name and reads its PRINTER_INFO_2.
func (p *Printers) GetPrinter(name string) (printing.PrinterInfo, error) {
	r, err := p.record(name)
	if err != nil {
		return printing.PrinterInfo{}, err
	}
	return p.printerInfo(r, p.GetDefaultPrinterName()), nil
}

// GetDefaultPrinterName returns "" when no default printer is set.
func (p *Printers) GetDefaultPrinterName() string {
	name, err := p.sp.DefaultPrinter()
	if err != nil {
		p.log.Debug("no default printer", zap.Error(err))
		return ""
	}
	return name
}

// GetSupportedFormats returns the spooler datatypes PrintRaw accepts.
func (p *Printers) GetSupportedFormats() []string {
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// GetCapabilities reads paper names, duplex and color support from the
// driver. Only a missing printer is an error.
func (p *Printers) GetCapabilities(name string) (printing.PrinterCapabilities, error) {
	r, err := p.record(name)
	if err != nil {
		if printing.CodeOf(err) == printing.CodePrinterNotFound {
			return printing.PrinterCapabilities{}, err
		}
		p.log.Warn("capabilities unavailable", zap.String("printer", name), zap.Error(err))
		return printing.PrinterCapabilities{Formats: p.GetSupportedFormats()}, nil
	}

	caps := printing.PrinterCapabilities{Formats: p.GetSupportedFormats()}
	dc, err := p.sp.DeviceCapabilities(r.Name, r.PortName)
	if err != nil {
		p.log.Debug("device capabilities unavailable", zap.String("printer", name), zap.Error(err))
		return caps, nil
	}
	caps.PaperSizes = dc.PaperNames
	caps.Duplex = dc.Duplex
	caps.Color = dc.Color
	return caps, nil
}

// GetDriverOptions reports PRINTER_INFO_2 members as strings. When the
// printer opens but cannot be queried the basic set is returned.
func (p *Printers) GetDriverOptions(name string) (map[string]string, error) {
	if name == "" {
		return nil, printing.InvalidArguments("printer name is required")
	}
	h, err := p.sp.Open(name, nil)
	if err != nil {
		return nil, openError(err, name)
	}
	defer closeHandle(h, p.log)

	r, err := h.Printer()
	if err != nil {
		p.log.Warn("driver options unavailable", zap.String("printer", name), zap.Error(err))
		return map[string]string{"printer-name": name}, nil
	}
	return driverOptions(r), nil
}

func (p *Printers) record(name string) (PrinterRecord, error) {
	if name == "" {
		return PrinterRecord{}, printing.InvalidArguments("printer name is required")
	}
	h, err := p.sp.Open(name, nil)
	if err != nil {
		return PrinterRecord{}, openError(err, name)
	}
	defer closeHandle(h, p.log)

	r, err := h.Printer()
	if err != nil {
		return PrinterRecord{}, classify(err, "Failed to query printer '"+name+"'")
	}
	if r.Name == "" {
		r.Name = name
	}
	return r, nil
}

func (p *Printers) printerInfo(r PrinterRecord, defaultName string) printing.PrinterInfo {
	info := printing.PrinterInfo{
		Name:        r.Name,
		IsDefault:   defaultName != "" && strings.EqualFold(r.Name, defaultName),
		State:       printing.MapPrinterState(r.Status),
		Location:    r.Location,
		Description: r.Comment,
		Formats:     p.GetSupportedFormats(),
	}
	dc, err := p.sp.DeviceCapabilities(r.Name, r.PortName)
	if err != nil {
		p.log.Debug("device capabilities unavailable", zap.String("printer", r.Name), zap.Error(err))
		return info
	}
	info.PaperSizes = dc.PaperNames
	info.SupportsDuplex = dc.Duplex
	info.SupportsColor = dc.Color
	return info
}

func driverOptions(r PrinterRecord) map[string]string {
	return map[string]string{
		"printer-name":    r.Name,
		"Status":          strconv.FormatUint(uint64(r.Status), 10),
		"StatusFlags":     strings.Join(printing.PrinterStatusFlags(r.Status), ","),
		"Attributes":      strconv.FormatUint(uint64(r.Attributes), 10),
		"Priority":        strconv.FormatUint(uint64(r.Priority), 10),
		"DefaultPriority": strconv.FormatUint(uint64(r.DefaultPriority), 10),
		"DriverName":      r.DriverName,
		"PortName":        r.PortName,
		"PrintProcessor":  r.PrintProcessor,
		"Datatype":        r.Datatype,
		"Location":        r.Location,
		"Comment":         r.Comment,
		"ShareName":       r.ShareName,
		"Jobs":            strconv.FormatUint(uint64(r.Jobs), 10),
	}
}

// openError classifies an OpenPrinter failure, naming the printer when it
// does not exist.
func openError(err error, name string) error {
	err = classify(err, "Failed to open printer '"+name+"'")
	if printing.CodeOf(err) != printing.CodePrinterNotFound {
		return err
	}
	nf := printing.PrinterNotFound(name)
	nf.PlatformCode = printing.PlatformCodeOf(err)
	nf.Err = err
	return nf
}

func closeHandle(h Handle, log *zap.Logger) {
	if err := h.Close(); err != nil {
		log.Warn("failed to close printer handle", zap.Error(err))
	}
}
