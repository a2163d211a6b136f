package cups

import (
	"strings"

	"github.com/phin1x/go-ipp"
	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printing"
)

var printerAttributes = []string{
	"printer-name",
	"printer-state",
	"printer-location",
	"printer-info",
	"printer-make-and-model",
	"printer-is-accepting-jobs",
	"document-format-supported",
	"media-supported",
	"sides-supported",
	"color-supported",
	"print-color-mode-supported",
}

// supportedFormats is the static CUPS submission vocabulary.
var supportedFormats = []string{
	printing.FormatRaw,
	printing.FormatText,
	printing.FormatPDF,
	printing.FormatPostScript,
	printing.FormatImage,
	printing.FormatAuto,
}

// Printers implements printing.PrinterAPI against CUPS.
type Printers struct {
	s *Session
}

// NewPrinters returns the printer backend bound to s.
func NewPrinters(s *Session) *Printers {
	return &Printers{s: s}
}

// GetPrinters lists every destination known to the scheduler.
func (p *Printers) GetPrinters() ([]printing.PrinterInfo, error) {
	req := p.s.newRequest(ipp.OperationCupsGetPrinters)
	req.OperationAttributes["requested-attributes"] = printerAttributes

	resp, err := p.s.do("/", req)
	if err != nil {
		return nil, classify(err, "printer", "failed to enumerate printers")
	}

	def := p.GetDefaultPrinterName()
	printers := make([]printing.PrinterInfo, 0, len(resp.PrinterAttributes))
	for _, a := range resp.PrinterAttributes {
		name := attrString(a, "printer-name")
		if name == "" {
			p.s.log.Warn("skipping destination without printer-name")
			continue
		}
		printers = append(printers, printerFromAttributes(name, a, def))
	}
	return printers, nil
}

// GetPrinter returns one destination by name.
func (p *Printers) GetPrinter(name string) (printing.PrinterInfo, error) {
	a, err := p.printerAttributes(name, printerAttributes)
	if err != nil {
		return printing.PrinterInfo{}, err
	}
	return printerFromAttributes(name, a, p.GetDefaultPrinterName()), nil
}

// GetDefaultPrinterName asks the scheduler for its default destination.
// Any failure yields "".
func (p *Printers) GetDefaultPrinterName() string {
	req := p.s.newRequest(ipp.OperationCupsGetDefault)
	req.OperationAttributes["requested-attributes"] = []string{"printer-name"}

	resp, err := p.s.do("/", req)
	if err != nil {
		p.s.log.Debug("no default destination", zap.Error(err))
		return ""
	}
	if len(resp.PrinterAttributes) == 0 {
		return ""
	}
	return attrString(resp.PrinterAttributes[0], "printer-name")
}

// GetSupportedFormats returns the formats PrintRaw accepts on CUPS.
func (p *Printers) GetSupportedFormats() []string {
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// GetCapabilities reads formats, media, duplex and color support. Only a
// missing printer is an error; other failures return the basic set.
func (p *Printers) GetCapabilities(name string) (printing.PrinterCapabilities, error) {
	a, err := p.printerAttributes(name, printerAttributes)
	if err != nil {
		if printing.CodeOf(err) == printing.CodePrinterNotFound {
			return printing.PrinterCapabilities{}, err
		}
		p.s.log.Warn("capabilities unavailable", zap.String("printer", name), zap.Error(err))
		return printing.PrinterCapabilities{Formats: []string{printing.FormatRaw, printing.FormatText}}, nil
	}
	info := printerFromAttributes(name, a, "")
	return printing.PrinterCapabilities{
		Formats:    info.Formats,
		PaperSizes: info.PaperSizes,
		Duplex:     info.SupportsDuplex,
		Color:      info.SupportsColor,
	}, nil
}

// GetDriverOptions returns every printer attribute the scheduler reports,
// rendered as strings.
func (p *Printers) GetDriverOptions(name string) (map[string]string, error) {
	a, err := p.printerAttributes(name, []string{"all"})
	if err != nil {
		if printing.CodeOf(err) == printing.CodePrinterNotFound {
			return nil, err
		}
		p.s.log.Warn("driver options unavailable", zap.String("printer", name), zap.Error(err))
		return map[string]string{"printer-name": name}, nil
	}
	return flatten(a), nil
}

func (p *Printers) printerAttributes(name string, requested []string) (ipp.Attributes, error) {
	if name == "" {
		return nil, printing.InvalidArguments("printer name is required")
	}
	req := p.s.newRequest(ipp.OperationGetPrinterAttributes)
	req.OperationAttributes["printer-uri"] = p.s.printerURI(name)
	req.OperationAttributes["requested-attributes"] = requested

	resp, err := p.s.do(printerPath(name), req)
	if err != nil {
		err = classify(err, "printer", "failed to query printer '"+name+"'")
		if printing.CodeOf(err) == printing.CodePrinterNotFound {
			nf := printing.PrinterNotFound(name)
			nf.PlatformCode = printing.PlatformCodeOf(err)
			nf.Err = err
			return nil, nf
		}
		return nil, err
	}
	if len(resp.PrinterAttributes) == 0 {
		return nil, printing.PrinterNotFound(name)
	}
	return resp.PrinterAttributes[0], nil
}

func printerFromAttributes(name string, a ipp.Attributes, defaultName string) printing.PrinterInfo {
	info := printing.PrinterInfo{
		Name:        name,
		IsDefault:   defaultName != "" && name == defaultName,
		State:       printing.MapCupsPrinterState(attrInt(a, "printer-state")),
		Location:    attrString(a, "printer-location"),
		Description: attrString(a, "printer-info"),
		Formats:     []string{printing.FormatRaw, printing.FormatText},
		PaperSizes:  attrStrings(a, "media-supported"),
	}

	var pdf, image bool
	for _, f := range attrStrings(a, "document-format-supported") {
		switch {
		case f == "application/pdf":
			pdf = true
		case strings.HasPrefix(f, "image/"):
			image = true
		}
	}
	if pdf {
		info.Formats = append(info.Formats, printing.FormatPDF)
	}
	if image {
		info.Formats = append(info.Formats, printing.FormatImage)
	}

	for _, s := range attrStrings(a, "sides-supported") {
		if strings.HasPrefix(s, "two-sided") {
			info.SupportsDuplex = true
		}
	}
	info.SupportsColor = attrBool(a, "color-supported")
	for _, m := range attrStrings(a, "print-color-mode-supported") {
		if m == "color" {
			info.SupportsColor = true
		}
	}
	return info
}
