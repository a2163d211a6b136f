// Package cups implements the printer and job backends on top of the CUPS
// scheduler, speaking IPP to it.
package cups

import (
	"errors"
	"fmt"
	"net/url"
	"os/user"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/phin1x/go-ipp"
	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/printing"
)

// Config describes how to reach the CUPS scheduler.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool
	// TempDir receives staged payloads; empty means os.TempDir.
	TempDir string
}

// DefaultConfig targets the local scheduler.
func DefaultConfig() Config {
	return Config{Host: "localhost", Port: 631}
}

// Transport sends one IPP request to the scheduler. path is the HTTP
// resource, e.g. "/" or "/printers/Office".
type Transport interface {
	Do(path string, req *ipp.Request) (*ipp.Response, error)
}

type httpTransport struct {
	client  *ipp.IPPClient
	baseURL string
}

// NewTransport returns a Transport backed by go-ipp's HTTP adapter.
func NewTransport(cfg Config) Transport {
	scheme := "http"
	if cfg.TLS {
		scheme = "https"
	}
	return &httpTransport{
		client:  ipp.NewIPPClient(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.TLS),
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
	}
}

func (t *httpTransport) Do(path string, req *ipp.Request) (*ipp.Response, error) {
	return t.client.SendRequest(t.baseURL+path, req, nil)
}

// Session owns the transport and the lock that serializes every scheduler
// call made by the printer and job backends. One Session is shared by both.
type Session struct {
	mu        sync.Mutex
	transport Transport
	cfg       Config
	user      string
	requestID atomic.Int32
	log       *zap.Logger
}

// NewSession creates a session over t. A nil logger disables logging.
func NewSession(t Transport, cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 631
	}
	name := cfg.User
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		} else {
			name = "printbridge"
		}
	}
	return &Session{transport: t, cfg: cfg, user: name, log: log}
}

// Close releases the session. Calls made afterwards still work; the
// scheduler keeps no per-client state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Debug("cups session closed")
	return nil
}

func (s *Session) newRequest(op int16) *ipp.Request {
	req := ipp.NewRequest(op, s.requestID.Add(1))
	req.OperationAttributes["requesting-user-name"] = s.user
	return req
}

func (s *Session) printerURI(name string) string {
	if name == "" {
		return fmt.Sprintf("ipp://%s:%d/", s.cfg.Host, s.cfg.Port)
	}
	return fmt.Sprintf("ipp://%s:%d/printers/%s", s.cfg.Host, s.cfg.Port, url.PathEscape(name))
}

func printerPath(name string) string {
	return "/printers/" + url.PathEscape(name)
}

// do sends one request under the session lock.
func (s *Session) do(path string, req *ipp.Request) (*ipp.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(path, req)
}

// exclusive runs fn while holding the session lock; fn must use send.
func (s *Session) exclusive(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// send requires s.mu to be held.
func (s *Session) send(path string, req *ipp.Request) (*ipp.Response, error) {
	resp, err := s.transport.Do(path, req)
	if err != nil {
		return resp, err
	}
	if resp == nil {
		return nil, errors.New("empty response from scheduler")
	}
	if int(resp.StatusCode) > 0x00FF {
		return resp, &StatusError{Status: int(resp.StatusCode), Message: statusMessage(resp)}
	}
	return resp, nil
}

// StatusError is a non-successful IPP status returned by the scheduler.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ipp status: %d, message: %s", e.Status, e.Message)
}

func statusMessage(resp *ipp.Response) string {
	if msg := attrString(resp.OperationAttributes, "status-message"); msg != "" {
		return msg
	}
	return "no status message returned"
}

var ippStatusPattern = regexp.MustCompile(`ipp status: (\d+)`)

func ippStatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	if m := ippStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			return n
		}
	}
	return 0
}

// classify tags a scheduler failure. subject names the object a
// not-found status refers to: "printer", "job" or "file".
func classify(err error, subject, context string) error {
	var pe *printing.Error
	if errors.As(err, &pe) {
		return err
	}
	status := ippStatusOf(err)
	code := printing.CodeUnknown
	if status != 0 {
		code = printing.MapIPPStatus(status, subject)
	}
	if code == printing.CodeUnknown {
		code = printing.MapCupsError(err.Error())
	}
	return &printing.Error{
		Code:         code,
		Message:      context + ": " + err.Error(),
		PlatformCode: status,
		Err:          err,
	}
}
