package cups

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phin1x/go-ipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/printbridge/internal/printing"
)

func TestSession_PrinterURI(t *testing.T) {
	s := newTestSession(newFakeTransport())

	assert.Equal(t, "ipp://cups.test:631/printers/Office", s.printerURI("Office"))
	assert.Equal(t, "ipp://cups.test:631/printers/Front%20Desk", s.printerURI("Front Desk"))
	assert.Equal(t, "ipp://cups.test:631/", s.printerURI(""))
	assert.Equal(t, "/printers/Office", printerPath("Office"))
}

func TestSession_Defaults(t *testing.T) {
	s := NewSession(newFakeTransport(), Config{}, nil)
	assert.Equal(t, "localhost", s.cfg.Host)
	assert.Equal(t, 631, s.cfg.Port)
	assert.NotEmpty(t, s.user)
}

func TestSession_RequestCarriesUser(t *testing.T) {
	s := newTestSession(newFakeTransport())
	req := s.newRequest(ipp.OperationGetJobs)
	assert.Equal(t, "tester", req.OperationAttributes["requesting-user-name"])
	assert.Equal(t, int16(ipp.OperationGetJobs), req.Operation)
}

func TestSession_StatusBecomesError(t *testing.T) {
	ft := newFakeTransport()
	ft.on(ipp.OperationGetJobs, failing(0x0406, "The printer or class does not exist."))
	s := newTestSession(ft)

	_, err := s.do("/", s.newRequest(ipp.OperationGetJobs))
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 0x0406, se.Status)
	assert.Contains(t, se.Error(), "ipp status: 1030")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		subject  string
		wantCode printing.ErrorCode
		wantPlat int
	}{
		{"printer not found status", &StatusError{Status: 0x0406}, "printer", printing.CodePrinterNotFound, 0x0406},
		{"job not found status", &StatusError{Status: 0x0406}, "job", printing.CodeJobNotFound, 0x0406},
		{"forbidden", &StatusError{Status: 0x0401}, "printer", printing.CodeAccessDenied, 0x0401},
		{"status text in foreign error", errors.New("received ipp status: 1282 from server"), "printer", printing.CodePrinterOffline, 1282},
		{"unknown status falls back to text", &StatusError{Status: 0x0499, Message: "destination stopped"}, "printer", printing.CodePrinterOffline, 0x0499},
		{"transport failure", errors.New("dial tcp: connection refused"), "printer", printing.CodeUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, tt.subject, "context")
			assert.Equal(t, tt.wantCode, printing.CodeOf(err))
			assert.Equal(t, tt.wantPlat, printing.PlatformCodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_PassesTaggedErrorsThrough(t *testing.T) {
	in := printing.FileNotFound("/tmp/x")
	assert.Same(t, in, classify(in, "printer", "ctx"))
}

func TestSession_SerializesCalls(t *testing.T) {
	ft := newFakeTransport()
	ft.delay = 2 * time.Millisecond
	ft.on(ipp.OperationCupsGetPrinters, withPrinters(attrs("printer-name", "A", "printer-state", 3)))
	ft.on(ipp.OperationCupsGetDefault, withPrinters(attrs("printer-name", "A")))
	ft.on(ipp.OperationGetJobs, withJobs(attrs("job-id", 1, "job-state", 3)))
	ft.on(ipp.OperationCreateJob, withJobs(attrs("job-id", 9)))
	ft.on(ipp.OperationSendDocument, withJobs())

	s := newTestSession(ft)
	printers := NewPrinters(s)
	jobs := NewJobs(s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := printers.GetPrinters()
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := jobs.GetJobs("A")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := jobs.PrintRaw(printing.PrintRawRequest{
				Printer: "A",
				Data:    []byte("hello"),
				Format:  printing.FormatText,
				Options: printing.DefaultOptions(),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ft.maxSeen.Load())
}

func TestSession_CreateAndSendStayAdjacent(t *testing.T) {
	ft := newFakeTransport()
	ft.delay = time.Millisecond
	ft.on(ipp.OperationGetJobs, withJobs())
	ft.on(ipp.OperationCreateJob, withJobs(attrs("job-id", 5)))
	ft.on(ipp.OperationSendDocument, withJobs())

	s := newTestSession(ft)
	jobs := NewJobs(s)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = jobs.PrintRaw(printing.PrintRawRequest{Printer: "A", Data: []byte("x"), Options: printing.DefaultOptions()})
		}()
		go func() {
			defer wg.Done()
			_, _ = jobs.GetJobs("A")
		}()
	}
	wg.Wait()

	ops := ft.ops()
	for i, op := range ops {
		if op == ipp.OperationCreateJob {
			require.Less(t, i+1, len(ops))
			assert.Equal(t, int16(ipp.OperationSendDocument), ops[i+1])
		}
	}
}
