package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/printbridge/internal/printing"
	"github.com/adcondev/printbridge/internal/worker"
)

func wait[T any](t *testing.T, c *Call[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Wait(ctx)
}

func TestBridge_GetPrinters(t *testing.T) {
	p := &fakePrinters{printers: []printing.PrinterInfo{
		{Name: "Office", IsDefault: true, State: printing.PrinterIdle, Formats: []string{"RAW"}},
		{Name: "Label", State: printing.PrinterStopped},
	}}
	b := newTestBridge(t, p, &fakeJobs{})

	got, err := wait(t, b.GetPrinters())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Office", got[0].Name)
	assert.True(t, got[0].IsDefault)
	assert.Equal(t, "idle", got[0].State)
	assert.Equal(t, "stopped", got[1].State)
	assert.NotNil(t, got[1].Formats)
	assert.NotNil(t, got[1].PaperSizes)
}

func TestBridge_GetPrinter(t *testing.T) {
	p := &fakePrinters{printers: []printing.PrinterInfo{{Name: "Office"}}}
	b := newTestBridge(t, p, &fakeJobs{})

	got, err := wait(t, b.GetPrinter("Office"))
	require.NoError(t, err)
	assert.Equal(t, "Office", got.Name)

	_, err = wait(t, b.GetPrinter("Missing"))
	assert.ErrorIs(t, err, printing.ErrPrinterNotFound)

	_, err = wait(t, b.GetPrinter(""))
	assert.ErrorIs(t, err, printing.ErrInvalidArguments)
}

func TestBridge_GetDefaultPrinterName(t *testing.T) {
	b := newTestBridge(t, &fakePrinters{}, &fakeJobs{})
	got, err := wait(t, b.GetDefaultPrinterName())
	require.NoError(t, err)
	assert.Nil(t, got)

	b = newTestBridge(t, &fakePrinters{defaultName: "Office"}, &fakeJobs{})
	got, err = wait(t, b.GetDefaultPrinterName())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Office", *got)
}

func TestBridge_CapabilitiesAndDriverOptions(t *testing.T) {
	p := &fakePrinters{caps: printing.PrinterCapabilities{Formats: []string{"RAW"}, Duplex: true}}
	b := newTestBridge(t, p, &fakeJobs{})

	caps, err := wait(t, b.GetPrinterCapabilities("Office"))
	require.NoError(t, err)
	assert.Equal(t, []string{"RAW"}, caps.Formats)
	assert.Equal(t, []string{}, caps.PaperSizes)
	assert.True(t, caps.Duplex)

	opts, err := wait(t, b.GetPrinterDriverOptions("Office"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{}, opts)

	formats, err := wait(t, b.GetSupportedPrintFormats())
	require.NoError(t, err)
	assert.Equal(t, []string{"RAW", "TEXT"}, formats)
}

func TestBridge_PrintFile(t *testing.T) {
	j := &fakeJobs{nextID: 17}
	b := newTestBridge(t, &fakePrinters{}, j)

	got, err := wait(t, b.PrintFile("/tmp/doc.pdf", "Office", map[string]any{"copies": float64(2), "duplex": true}))
	require.NoError(t, err)
	assert.Equal(t, JobResultDTO{ID: 17, Printer: "Office"}, got)

	require.Len(t, j.fileReqs, 1)
	req := j.fileReqs[0]
	assert.Equal(t, "/tmp/doc.pdf", req.Path)
	assert.Equal(t, 2, req.Options.Copies)
	assert.True(t, req.Options.Duplex)
	assert.Equal(t, printing.DefaultJobName, req.Options.JobName)
}

func TestBridge_PrintFile_ValidatesSynchronously(t *testing.T) {
	j := &fakeJobs{nextID: 1}
	b := newTestBridge(t, &fakePrinters{}, j)

	tests := []struct {
		name     string
		file     string
		printer  string
		options  map[string]any
		wantCode printing.ErrorCode
	}{
		{"missing printer", "/tmp/a", "", nil, printing.CodeInvalidArguments},
		{"missing file", "", "Office", nil, printing.CodeInvalidArguments},
		{"bad copies type", "/tmp/a", "Office", map[string]any{"copies": "two"}, printing.CodeInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := b.PrintFile(tt.file, tt.printer, tt.options)
			select {
			case <-c.Done():
			default:
				t.Fatal("validation failure should resolve immediately")
			}
			_, err := wait(t, c)
			assert.Equal(t, tt.wantCode, printing.CodeOf(err))
		})
	}
	assert.Empty(t, j.fileReqs)
}

func TestBridge_PrintDirect(t *testing.T) {
	j := &fakeJobs{nextID: 3}
	b := newTestBridge(t, &fakePrinters{}, j)

	got, err := wait(t, b.PrintDirect([]byte("hello"), "Label", "", map[string]any{"jobName": "receipt", "extra": 1}))
	require.NoError(t, err)
	assert.Equal(t, 3, got.ID)

	require.Len(t, j.rawReqs, 1)
	assert.Equal(t, printing.FormatRaw, j.rawReqs[0].Format)
	assert.Equal(t, "receipt", j.rawReqs[0].Options.JobName)

	_, err = wait(t, b.PrintDirect(nil, "Label", "RAW", nil))
	assert.ErrorIs(t, err, printing.ErrInvalidArguments)
}

func TestBridge_PrintDirect_ZeroJobID(t *testing.T) {
	b := newTestBridge(t, &fakePrinters{}, &fakeJobs{nextID: 0})

	_, err := wait(t, b.PrintDirect([]byte("x"), "Label", "RAW", nil))
	require.Error(t, err)
	assert.Equal(t, printing.CodeUnknown, printing.CodeOf(err))
	assert.Contains(t, err.Error(), "Failed to queue print job")
}

func TestBridge_PrintDirect_BackendError(t *testing.T) {
	b := newTestBridge(t, &fakePrinters{}, &fakeJobs{err: printing.PrinterNotFound("Ghost")})

	_, err := wait(t, b.PrintDirect([]byte("x"), "Ghost", "RAW", nil))
	assert.ErrorIs(t, err, printing.ErrPrinterNotFound)
}

func TestBridge_Jobs(t *testing.T) {
	j := &fakeJobs{jobs: []printing.JobInfo{
		{ID: 5, Printer: "Office", State: printing.JobPrinting, CreationTime: 1700000000},
	}}
	b := newTestBridge(t, &fakePrinters{}, j)

	job, err := wait(t, b.GetJob("Office", 5))
	require.NoError(t, err)
	assert.Equal(t, "printing", job.State)
	require.NotNil(t, job.CreationTime)
	assert.Equal(t, int64(1700000000), job.CreationTime.Unix())
	assert.Nil(t, job.CompletedTime)

	_, err = wait(t, b.GetJob("Office", 0))
	assert.ErrorIs(t, err, printing.ErrInvalidArguments)

	_, err = wait(t, b.GetJob("Office", 9))
	assert.ErrorIs(t, err, printing.ErrJobNotFound)

	jobs, err := wait(t, b.GetJobs(""))
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestBridge_GetJobs_EmptyIsNotNil(t *testing.T) {
	b := newTestBridge(t, &fakePrinters{}, &fakeJobs{})

	jobs, err := wait(t, b.GetJobs("Office"))
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestBridge_SetJob(t *testing.T) {
	j := &fakeJobs{}
	b := newTestBridge(t, &fakePrinters{}, j)

	ok, err := wait(t, b.SetJob("Office", 5, "Cancel"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []printing.JobCommand{printing.JobCancel}, j.commands)

	_, err = wait(t, b.SetJob("Office", 5, "restart"))
	assert.ErrorIs(t, err, printing.ErrInvalidArguments)

	_, err = wait(t, b.SetJob("", 5, "pause"))
	assert.ErrorIs(t, err, printing.ErrInvalidArguments)
}

func TestBridge_QueueFullResolvesCall(t *testing.T) {
	j := &fakeJobs{nextID: 1, block: make(chan struct{})}
	pool := worker.NewPool(worker.Config{Workers: 1, QueueSize: 1}, nil)
	pool.Start()
	defer pool.Stop()
	b := New(&fakePrinters{}, j, pool, nil)

	first := b.PrintDirect([]byte("a"), "Label", "RAW", nil)
	// Wait until the single worker picked up the first task.
	require.Eventually(t, func() bool { return pool.Stats().Queued == 0 }, 5*time.Second, 5*time.Millisecond)
	second := b.PrintDirect([]byte("b"), "Label", "RAW", nil)
	third := b.PrintDirect([]byte("c"), "Label", "RAW", nil)

	_, err := wait(t, third)
	assert.ErrorIs(t, err, worker.ErrQueueFull)

	close(j.block)
	_, err = wait(t, first)
	assert.NoError(t, err)
	_, err = wait(t, second)
	assert.NoError(t, err)
}

func TestNewErrorDTO(t *testing.T) {
	assert.Nil(t, NewErrorDTO(nil))

	dto := NewErrorDTO(printing.FromWindowsError(5, "Failed to open printer"))
	assert.Equal(t, printing.CodeAccessDenied, dto.Code)
	assert.Equal(t, 5, dto.PlatformCode)
	assert.Equal(t, "Failed to open printer", dto.Message)

	dto = NewErrorDTO(errors.New("boom"))
	assert.Equal(t, printing.CodeUnknown, dto.Code)
	assert.Equal(t, "boom", dto.Message)

	raw, err := json.Marshal(NewErrorDTO(printing.JobNotFound(4)))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "platformCode")
	assert.Contains(t, string(raw), `"code":"JOB_NOT_FOUND"`)
}

func TestJobDTO_JSONTimes(t *testing.T) {
	raw, err := json.Marshal(NewJobDTO(printing.JobInfo{ID: 1, CreationTime: 86400}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"creationTime":"1970-01-02T00:00:00Z"`)
	assert.Contains(t, string(raw), `"completedTime":null`)
}
