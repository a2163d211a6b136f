package cups

import (
	"bytes"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/phin1x/go-ipp"
	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printing"
)

var jobAttributes = []string{
	"job-id",
	"job-state",
	"job-printer-uri",
	"job-name",
	"job-originating-user-name",
	"time-at-creation",
	"time-at-processing",
	"time-at-completed",
	"job-media-sheets-completed",
	"job-impressions-completed",
	"job-k-octets",
}

var mimeTypes = map[string]string{
	printing.FormatRaw:        "application/vnd.cups-raw",
	printing.FormatText:       "text/plain",
	printing.FormatPDF:        "application/pdf",
	printing.FormatJPEG:       "image/jpeg",
	printing.FormatImage:      "image/jpeg",
	printing.FormatPostScript: "application/postscript",
	printing.FormatAuto:       "application/octet-stream",
}

// mimeFor maps a raw format name to a document-format. Unknown formats
// are sent raw.
func mimeFor(format string) string {
	if m, ok := mimeTypes[strings.ToUpper(format)]; ok {
		return m
	}
	return mimeTypes[printing.FormatRaw]
}

// Jobs implements printing.JobAPI against CUPS.
type Jobs struct {
	s *Session
}

// NewJobs returns the job backend bound to s.
func NewJobs(s *Session) *Jobs {
	return &Jobs{s: s}
}

// PrintFile submits a file with Print-Job. The file is opened before the
// scheduler is contacted and streamed in bounded chunks.
func (j *Jobs) PrintFile(req printing.PrintFileRequest) (int, error) {
	format := printing.FormatAuto
	if req.Datatype != "" {
		format = req.Datatype
	}
	opts := req.Options
	if opts.JobName == "" || opts.JobName == printing.DefaultJobName {
		opts.JobName = filepath.Base(req.Path)
	}
	return j.printFile(req.Printer, req.Path, format, opts)
}

// PrintRaw submits an in-memory payload. Payloads above the streaming
// threshold are staged to a temporary file and follow the PrintFile path.
// An empty format is sent raw on both paths.
func (j *Jobs) PrintRaw(req printing.PrintRawRequest) (int, error) {
	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = printing.FormatRaw
	}
	if printing.ShouldStage(len(req.Data)) {
		staged, err := printing.StageBytes(j.s.cfg.TempDir, req.Data)
		if err != nil {
			return 0, err
		}
		defer func() {
			if err := staged.Close(); err != nil {
				j.s.log.Warn("failed to remove staged payload", zap.String("path", staged.Path), zap.Error(err))
			}
		}()
		return j.printFile(req.Printer, staged.Path, format, req.Options)
	}
	return j.printBuffer(req.Printer, req.Data, format, req.Options)
}

func (j *Jobs) printFile(printer, path, format string, opts printing.PrintOptions) (int, error) {
	f, size, err := printing.OpenSource(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	req := j.s.newRequest(ipp.OperationPrintJob)
	j.fillSubmission(req, printer, format, opts)
	req.File = printing.ChunkedReader(f)
	req.FileSize = int(size)

	resp, err := j.s.do(printerPath(printer), req)
	if err != nil {
		return 0, classify(err, "printer", "failed to submit print job")
	}
	return jobIDFrom(resp)
}

// printBuffer runs Create-Job and Send-Document under one lock hold. A job
// whose document could not be sent is cancelled.
func (j *Jobs) printBuffer(printer string, data []byte, format string, opts printing.PrintOptions) (int, error) {
	var id int
	err := j.s.exclusive(func() error {
		create := j.s.newRequest(ipp.OperationCreateJob)
		j.fillSubmission(create, printer, "", opts)

		resp, err := j.s.send(printerPath(printer), create)
		if err != nil {
			return classify(err, "printer", "failed to create print job")
		}
		if id, err = jobIDFrom(resp); err != nil {
			return err
		}

		doc := j.s.newRequest(ipp.OperationSendDocument)
		doc.OperationAttributes["printer-uri"] = j.s.printerURI(printer)
		doc.OperationAttributes["job-id"] = id
		doc.OperationAttributes["document-format"] = mimeFor(format)
		doc.OperationAttributes["last-document"] = true
		doc.File = printing.ChunkedReader(bytes.NewReader(data))
		doc.FileSize = len(data)

		if _, err := j.s.send(printerPath(printer), doc); err != nil {
			j.cancelLocked(printer, id)
			return classify(err, "printer", "failed to send document")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (j *Jobs) fillSubmission(req *ipp.Request, printer, format string, opts printing.PrintOptions) {
	req.OperationAttributes["printer-uri"] = j.s.printerURI(printer)
	req.OperationAttributes["job-name"] = opts.JobName
	j.s.log.Debug("job options", zap.String("printer", printer), zap.Any("options", printing.CupsOptions(opts)))
	if format != "" {
		req.OperationAttributes["document-format"] = mimeFor(format)
	}
	for k, v := range printing.IPPJobAttributes(opts) {
		if _, known := ipp.AttributeTagMapping[k]; !known {
			j.s.log.Warn("dropping attribute without IPP tag", zap.String("attribute", k))
			continue
		}
		req.JobAttributes[k] = v
	}
}

func (j *Jobs) cancelLocked(printer string, id int) {
	req := j.s.newRequest(ipp.OperationCancelJob)
	req.OperationAttributes["printer-uri"] = j.s.printerURI(printer)
	req.OperationAttributes["job-id"] = id
	if _, err := j.s.send(printerPath(printer), req); err != nil {
		j.s.log.Warn("failed to cancel incomplete job", zap.Int("job_id", id), zap.Error(err))
	}
}

func jobIDFrom(resp *ipp.Response) (int, error) {
	if len(resp.JobAttributes) > 0 {
		if id := attrInt(resp.JobAttributes[0], "job-id"); id > 0 {
			return id, nil
		}
	}
	if id := attrInt(resp.OperationAttributes, "job-id"); id > 0 {
		return id, nil
	}
	return 0, printing.NewError(printing.CodeUnknown, "Failed to queue print job")
}

// GetJob returns one job. A job that exists on another queue is reported
// as not found.
func (j *Jobs) GetJob(printer string, id int) (printing.JobInfo, error) {
	if id <= 0 {
		return printing.JobInfo{}, printing.InvalidArguments("job id must be positive")
	}
	req := j.s.newRequest(ipp.OperationGetJobAttributes)
	req.OperationAttributes["printer-uri"] = j.s.printerURI(printer)
	req.OperationAttributes["job-id"] = id
	req.OperationAttributes["requested-attributes"] = jobAttributes

	resp, err := j.s.do("/jobs", req)
	if err != nil {
		err = classify(err, "job", "failed to query job")
		if printing.CodeOf(err) == printing.CodeJobNotFound {
			nf := printing.JobNotFound(id)
			nf.PlatformCode = printing.PlatformCodeOf(err)
			nf.Err = err
			return printing.JobInfo{}, nf
		}
		return printing.JobInfo{}, err
	}
	if len(resp.JobAttributes) == 0 {
		return printing.JobInfo{}, printing.JobNotFound(id)
	}
	job := jobFromAttributes(resp.JobAttributes[0], printer)
	if printer != "" && job.Printer != printer {
		return printing.JobInfo{}, printing.JobNotFound(id)
	}
	return job, nil
}

// GetJobs lists the jobs of printer, or of every queue when printer is "".
func (j *Jobs) GetJobs(printer string) ([]printing.JobInfo, error) {
	req := j.s.newRequest(ipp.OperationGetJobs)
	req.OperationAttributes["printer-uri"] = j.s.printerURI(printer)
	req.OperationAttributes["which-jobs"] = "all"
	req.OperationAttributes["requested-attributes"] = jobAttributes

	path := "/"
	if printer != "" {
		path = printerPath(printer)
	}
	resp, err := j.s.do(path, req)
	if err != nil {
		return nil, classify(err, "printer", "failed to list jobs")
	}

	jobs := make([]printing.JobInfo, 0, len(resp.JobAttributes))
	for _, a := range resp.JobAttributes {
		if attrInt(a, "job-id") <= 0 {
			j.s.log.Warn("skipping job entry without job-id")
			continue
		}
		jobs = append(jobs, jobFromAttributes(a, printer))
	}
	return jobs, nil
}

// SetJob cancels a job. CUPS offers no pause or resume for a single job
// through this backend.
func (j *Jobs) SetJob(printer string, id int, cmd printing.JobCommand) error {
	switch cmd {
	case printing.JobPause, printing.JobResume:
		return printing.Unsupported("Pause/Resume not supported")
	case printing.JobCancel:
	default:
		return printing.InvalidArguments("unknown job command")
	}

	req := j.s.newRequest(ipp.OperationCancelJob)
	req.OperationAttributes["printer-uri"] = j.s.printerURI(printer)
	req.OperationAttributes["job-id"] = id

	if _, err := j.s.do(printerPath(printer), req); err != nil {
		return classify(err, "job", "failed to cancel job")
	}
	return nil
}

func jobFromAttributes(a ipp.Attributes, printer string) printing.JobInfo {
	job := printing.JobInfo{
		ID:             attrInt(a, "job-id"),
		State:          printing.MapCupsJobState(attrInt(a, "job-state")),
		Printer:        printer,
		Title:          attrString(a, "job-name"),
		User:           attrString(a, "job-originating-user-name"),
		CreationTime:   int64(attrInt(a, "time-at-creation")),
		ProcessingTime: int64(attrInt(a, "time-at-processing")),
		CompletedTime:  int64(attrInt(a, "time-at-completed")),
		Pages:          attrInt(a, "job-media-sheets-completed"),
		Size:           int64(attrInt(a, "job-k-octets")) * 1024,
	}
	if job.Pages == 0 {
		job.Pages = attrInt(a, "job-impressions-completed")
	}
	if uri := attrString(a, "job-printer-uri"); uri != "" {
		if name, err := url.PathUnescape(lastPathSegment(uri)); err == nil && name != "" {
			job.Printer = name
		}
	}
	return job
}
