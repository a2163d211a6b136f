package cups

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phin1x/go-ipp"
)

type call struct {
	path string
	op   int16
	req  *ipp.Request
	body []byte
}

// fakeTransport answers requests from per-operation handlers and records
// every call it sees.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []call
	handlers map[int16]func(*ipp.Request) (*ipp.Response, error)

	delay    time.Duration
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[int16]func(*ipp.Request) (*ipp.Response, error))}
}

func (f *fakeTransport) on(op int16, h func(*ipp.Request) (*ipp.Response, error)) {
	f.handlers[op] = h
}

func (f *fakeTransport) Do(path string, req *ipp.Request) (*ipp.Response, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	var body []byte
	if req.File != nil {
		b, err := io.ReadAll(req.File)
		if err != nil {
			return nil, err
		}
		body = b
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{path: path, op: req.Operation, req: req, body: body})
	h := f.handlers[req.Operation]
	f.mu.Unlock()

	if h == nil {
		return nil, errors.New("unexpected operation")
	}
	return h(req)
}

func (f *fakeTransport) ops() []int16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int16, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

func (f *fakeTransport) last(op int16) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].op == op {
			return f.calls[i], true
		}
	}
	return call{}, false
}

func attrs(kv ...interface{}) ipp.Attributes {
	a := make(ipp.Attributes)
	for i := 0; i+1 < len(kv); i += 2 {
		name := kv[i].(string)
		switch v := kv[i+1].(type) {
		case []string:
			for _, s := range v {
				a[name] = append(a[name], ipp.Attribute{Value: s})
			}
		default:
			a[name] = append(a[name], ipp.Attribute{Value: v})
		}
	}
	return a
}

func ok() *ipp.Response {
	return &ipp.Response{OperationAttributes: make(ipp.Attributes)}
}

func status(code int16, msg string) *ipp.Response {
	r := ok()
	r.StatusCode = code
	r.OperationAttributes = attrs("status-message", msg)
	return r
}

func withPrinters(as ...ipp.Attributes) func(*ipp.Request) (*ipp.Response, error) {
	return func(*ipp.Request) (*ipp.Response, error) {
		r := ok()
		r.PrinterAttributes = as
		return r, nil
	}
}

func withJobs(as ...ipp.Attributes) func(*ipp.Request) (*ipp.Response, error) {
	return func(*ipp.Request) (*ipp.Response, error) {
		r := ok()
		r.JobAttributes = as
		return r, nil
	}
}

func failing(code int16, msg string) func(*ipp.Request) (*ipp.Response, error) {
	return func(*ipp.Request) (*ipp.Response, error) {
		return status(code, msg), nil
	}
}

func newTestSession(t *fakeTransport) *Session {
	return NewSession(t, Config{Host: "cups.test", Port: 631, User: "tester"}, nil)
}
