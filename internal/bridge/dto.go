package bridge

import (
	"errors"
	"time"

	"github.com/adcondev/printbridge/internal/printing"
)

// PrinterDTO is the boundary form of printing.PrinterInfo.
type PrinterDTO struct {
	Name           string   `json:"name"`
	IsDefault      bool     `json:"isDefault"`
	State          string   `json:"state"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description,omitempty"`
	Formats        []string `json:"formats"`
	PaperSizes     []string `json:"paperSizes"`
	SupportsDuplex bool     `json:"supportsDuplex"`
	SupportsColor  bool     `json:"supportsColor"`
}

// CapabilitiesDTO is the boundary form of printing.PrinterCapabilities.
type CapabilitiesDTO struct {
	Formats    []string `json:"formats"`
	PaperSizes []string `json:"paperSizes"`
	Duplex     bool     `json:"duplex"`
	Color      bool     `json:"color"`
}

// JobDTO is the boundary form of printing.JobInfo. Times that were never
// reached are nil.
type JobDTO struct {
	ID             int        `json:"id"`
	State          string     `json:"state"`
	Printer        string     `json:"printer"`
	Title          string     `json:"title"`
	User           string     `json:"user"`
	CreationTime   *time.Time `json:"creationTime"`
	ProcessingTime *time.Time `json:"processingTime"`
	CompletedTime  *time.Time `json:"completedTime"`
	Pages          int        `json:"pages"`
	Size           int64      `json:"size"`
}

// JobResultDTO identifies a submitted job.
type JobResultDTO struct {
	ID      int    `json:"id"`
	Printer string `json:"printer"`
}

// ErrorDTO is the boundary form of a failure.
type ErrorDTO struct {
	Code         printing.ErrorCode `json:"code"`
	PlatformCode int                `json:"platformCode,omitempty"`
	Message      string             `json:"message"`
}

// Error implements error so an ErrorDTO can travel as one.
func (e ErrorDTO) Error() string { return string(e.Code) + ": " + e.Message }

// NewPrinterDTO converts p.
func NewPrinterDTO(p printing.PrinterInfo) PrinterDTO {
	return PrinterDTO{
		Name:           p.Name,
		IsDefault:      p.IsDefault,
		State:          string(p.State),
		Location:       p.Location,
		Description:    p.Description,
		Formats:        nonNil(p.Formats),
		PaperSizes:     nonNil(p.PaperSizes),
		SupportsDuplex: p.SupportsDuplex,
		SupportsColor:  p.SupportsColor,
	}
}

// NewCapabilitiesDTO converts c.
func NewCapabilitiesDTO(c printing.PrinterCapabilities) CapabilitiesDTO {
	return CapabilitiesDTO{
		Formats:    nonNil(c.Formats),
		PaperSizes: nonNil(c.PaperSizes),
		Duplex:     c.Duplex,
		Color:      c.Color,
	}
}

// NewJobDTO converts j.
func NewJobDTO(j printing.JobInfo) JobDTO {
	return JobDTO{
		ID:             j.ID,
		State:          string(j.State),
		Printer:        j.Printer,
		Title:          j.Title,
		User:           j.User,
		CreationTime:   unixTime(j.CreationTime),
		ProcessingTime: unixTime(j.ProcessingTime),
		CompletedTime:  unixTime(j.CompletedTime),
		Pages:          j.Pages,
		Size:           j.Size,
	}
}

// NewErrorDTO converts err. Errors outside the taxonomy become UNKNOWN.
func NewErrorDTO(err error) *ErrorDTO {
	if err == nil {
		return nil
	}
	var dto ErrorDTO
	if errors.As(err, &dto) {
		return &dto
	}
	var pe *printing.Error
	if errors.As(err, &pe) {
		msg := pe.Message
		if msg == "" && pe.Err != nil {
			msg = pe.Err.Error()
		}
		return &ErrorDTO{Code: pe.Code, PlatformCode: pe.PlatformCode, Message: msg}
	}
	return &ErrorDTO{Code: printing.CodeUnknown, Message: err.Error()}
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
