// Package server exposes the printing bridge over a WebSocket JSON protocol.
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adcondev/printbridge/internal/bridge"
	"github.com/adcondev/printbridge/internal/printing"
	workererrors "github.com/adcondev/printbridge/internal/worker/errors"
)

// Message types
const (
	TypeGetPrinters       = "get_printers"
	TypeGetPrinter        = "get_printer"
	TypeGetDefaultPrinter = "get_default_printer"
	TypeGetFormats        = "get_formats"
	TypeGetCapabilities   = "get_capabilities"
	TypeGetDriverOptions  = "get_driver_options"
	TypePrintFile         = "print_file"
	TypePrintRaw          = "print_raw"
	TypeGetJob            = "get_job"
	TypeGetJobs           = "get_jobs"
	TypeSetJob            = "set_job"
	TypeStatus            = "status"
	TypePing              = "ping"
)

// ErrRateLimited rejects submissions over the per-client budget.
var ErrRateLimited = printing.NewError(printing.CodeUnknown, "rate limit exceeded")

// TokenChecker authorizes mutating messages.
type TokenChecker interface {
	Enabled() bool
	Check(client, token string) error
}

// Config holds server configuration
type Config struct {
	// AllowedOrigins are origin patterns; empty allows same-origin only.
	AllowedOrigins []string
	// JobsPerMinute bounds print submissions per client address.
	JobsPerMinute int
	// MaxMessageBytes bounds a single incoming message.
	MaxMessageBytes int64
	// NotifyTimeout bounds the delivery of an asynchronous result.
	NotifyTimeout time.Duration
}

// Message represents incoming WebSocket message
type Message struct {
	Tipo  string          `json:"tipo"`
	ID    string          `json:"id,omitempty"`
	Token string          `json:"token,omitempty"`
	Datos json.RawMessage `json:"datos,omitempty"`
}

// Response represents outgoing WebSocket message
type Response struct {
	Tipo    string           `json:"tipo"`
	ID      string           `json:"id,omitempty"`
	Status  string           `json:"status,omitempty"`
	Mensaje string           `json:"mensaje,omitempty"`
	Data    any              `json:"data,omitempty"`
	Error   *bridge.ErrorDTO `json:"error,omitempty"`
}

// Status is the payload of a status response.
type Status struct {
	Platform string `json:"platform,omitempty"`
	Clients  int    `json:"clients"`
	Queued   int    `json:"queued"`
	Capacity int    `json:"capacity"`
	Workers  int    `json:"workers"`
	Running  bool   `json:"running"`
	Auth     bool   `json:"auth"`
}

type printerRequest struct {
	Printer string `json:"printer"`
}

type jobRequest struct {
	Printer string `json:"printer"`
	JobID   int    `json:"jobId"`
	Command string `json:"command,omitempty"`
}

type printFileRequest struct {
	Printer string         `json:"printer"`
	File    string         `json:"file"`
	Options map[string]any `json:"options,omitempty"`
}

type printRawRequest struct {
	Printer  string         `json:"printer"`
	Data     string         `json:"data"`
	Encoding string         `json:"encoding,omitempty"` // "text" (default) or "base64"
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// Server manages WebSocket connections and routes messages to the bridge
type Server struct {
	cfg          Config
	bridge       *bridge.Bridge
	auth         TokenChecker
	platform     string
	clients      *ClientRegistry
	limiter      *JobRateLimiter
	shutdownOnce sync.Once
	shutdownChan chan struct{}
	log          *zap.Logger
}

// NewServer creates a new WebSocket server. auth may be nil to disable
// token checks.
func NewServer(cfg Config, b *bridge.Bridge, auth TokenChecker, platform string, log *zap.Logger) *Server {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 32 << 20
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{
		cfg:          cfg,
		bridge:       b,
		auth:         auth,
		platform:     platform,
		clients:      NewClientRegistry(),
		limiter:      NewJobRateLimiter(cfg.JobsPerMinute),
		shutdownChan: make(chan struct{}),
		log:          log,
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.clients.Count()
}

// HandleWebSocket handles WebSocket connections
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedOrigins) > 0 {
		opts.OriginPatterns = s.cfg.AllowedOrigins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.log.Warn("error accepting client",
			zap.String("remote", r.RemoteAddr),
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err))
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageBytes)

	addr := clientHost(r.RemoteAddr)
	s.clients.Add(conn, addr)
	s.log.Info("client connected", zap.String("remote", addr), zap.Int("total", s.clients.Count()))

	ctx := r.Context()
	welcome := Response{
		Tipo:    "info",
		Status:  "connected",
		Mensaje: "printbridge ready",
		Data:    map[string]string{"platform": s.platform},
	}
	_ = wsjson.Write(ctx, conn, welcome)

	s.handleMessages(ctx, conn, addr)

	s.clients.Remove(conn)
	_ = conn.Close(websocket.StatusNormalClosure, "disconnected")
	s.log.Info("client disconnected", zap.String("remote", addr), zap.Int("remaining", s.clients.Count()))
}

// handleMessages processes incoming messages from a client
func (s *Server) handleMessages(ctx context.Context, conn *websocket.Conn, addr string) {
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}

		var msg Message
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			// Normal closure or context cancelled
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				ctx.Err() != nil {
				return
			}
			s.log.Warn("error reading message", zap.String("remote", addr), zap.Error(err))
			return
		}

		s.routeMessage(ctx, conn, addr, &msg)
	}
}

// routeMessage routes message to appropriate handler
func (s *Server) routeMessage(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	s.log.Debug("message received", zap.String("tipo", msg.Tipo), zap.String("id", msg.ID), zap.String("remote", addr))

	switch msg.Tipo {
	case TypePing:
		s.write(ctx, conn, Response{Tipo: "pong", ID: msg.ID, Status: "ok"})
	case TypeStatus:
		s.write(ctx, conn, Response{Tipo: "status", ID: msg.ID, Status: "ok", Data: s.status()})

	case TypeGetPrinters:
		dispatch(ctx, s, conn, msg, s.bridge.GetPrinters())
	case TypeGetDefaultPrinter:
		dispatch(ctx, s, conn, msg, s.bridge.GetDefaultPrinterName())
	case TypeGetFormats:
		dispatch(ctx, s, conn, msg, s.bridge.GetSupportedPrintFormats())
	case TypeGetPrinter, TypeGetCapabilities, TypeGetDriverOptions:
		var req printerRequest
		if !s.decode(ctx, conn, msg, &req) {
			return
		}
		switch msg.Tipo {
		case TypeGetPrinter:
			dispatch(ctx, s, conn, msg, s.bridge.GetPrinter(req.Printer))
		case TypeGetCapabilities:
			dispatch(ctx, s, conn, msg, s.bridge.GetPrinterCapabilities(req.Printer))
		default:
			dispatch(ctx, s, conn, msg, s.bridge.GetPrinterDriverOptions(req.Printer))
		}
	case TypeGetJob:
		var req jobRequest
		if !s.decode(ctx, conn, msg, &req) {
			return
		}
		dispatch(ctx, s, conn, msg, s.bridge.GetJob(req.Printer, req.JobID))
	case TypeGetJobs:
		var req printerRequest
		if !s.decode(ctx, conn, msg, &req) {
			return
		}
		dispatch(ctx, s, conn, msg, s.bridge.GetJobs(req.Printer))

	case TypeSetJob:
		var req jobRequest
		if !s.authorize(ctx, conn, addr, msg) || !s.decode(ctx, conn, msg, &req) {
			return
		}
		dispatch(ctx, s, conn, msg, s.bridge.SetJob(req.Printer, req.JobID, req.Command))
	case TypePrintFile:
		var req printFileRequest
		if !s.authorize(ctx, conn, addr, msg) || !s.admit(ctx, conn, addr, msg) || !s.decode(ctx, conn, msg, &req) {
			return
		}
		dispatch(ctx, s, conn, msg, s.bridge.PrintFile(req.File, req.Printer, req.Options))
	case TypePrintRaw:
		var req printRawRequest
		if !s.authorize(ctx, conn, addr, msg) || !s.admit(ctx, conn, addr, msg) || !s.decode(ctx, conn, msg, &req) {
			return
		}
		data, err := payload(req)
		if err != nil {
			s.sendError(ctx, conn, msg.ID, err)
			return
		}
		dispatch(ctx, s, conn, msg, s.bridge.PrintDirect(data, req.Printer, req.Format, req.Options))

	default:
		s.log.Warn("unknown message type", zap.String("tipo", msg.Tipo), zap.String("remote", addr))
		s.sendError(ctx, conn, msg.ID, printing.InvalidArguments("Unknown message type: "+msg.Tipo))
	}
}

// dispatch acknowledges msg and delivers the outcome of c once it resolves.
// The ack is written first, so it always precedes the result.
func dispatch[T any](ctx context.Context, s *Server, conn *websocket.Conn, msg *Message, c *bridge.Call[T]) {
	s.write(ctx, conn, Response{Tipo: "ack", ID: msg.ID, Status: "accepted", Mensaje: msg.Tipo})

	id := msg.ID
	c.Then(func(v T, err error) {
		if err != nil {
			s.notify(conn, errorResponse(id, err))
			return
		}
		s.notify(conn, Response{Tipo: "result", ID: id, Status: "ok", Data: v})
	})
}

// authorize checks the message token when authentication is enabled.
func (s *Server) authorize(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) bool {
	if s.auth == nil || !s.auth.Enabled() {
		return true
	}
	if err := s.auth.Check(addr, msg.Token); err != nil {
		s.log.Warn("message rejected", zap.String("tipo", msg.Tipo), zap.String("remote", addr), zap.Error(err))
		s.sendError(ctx, conn, msg.ID, err)
		return false
	}
	return true
}

// admit applies the per-client submission budget.
func (s *Server) admit(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) bool {
	if s.limiter.Allow(addr) {
		return true
	}
	s.log.Warn("rate limit exceeded", zap.String("remote", addr), zap.String("id", msg.ID))
	s.sendError(ctx, conn, msg.ID, ErrRateLimited)
	return false
}

// decode unmarshals msg.Datos into dst. Missing datos decode as an empty
// object. Numbers stay json.Number so option values keep their form.
func (s *Server) decode(ctx context.Context, conn *websocket.Conn, msg *Message, dst any) bool {
	raw := msg.Datos
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return true
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		s.sendError(ctx, conn, msg.ID, printing.InvalidArguments("Field 'datos' is malformed for type '"+msg.Tipo+"'"))
		return false
	}
	return true
}

func payload(req printRawRequest) ([]byte, error) {
	switch strings.ToLower(req.Encoding) {
	case "", "text":
		return []byte(req.Data), nil
	case "base64":
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return nil, printing.InvalidArguments("data is not valid base64")
		}
		return data, nil
	}
	return nil, printing.InvalidArguments("unknown encoding '" + req.Encoding + "'")
}

func (s *Server) status() Status {
	stats := s.bridge.Stats()
	return Status{
		Platform: s.platform,
		Clients:  s.clients.Count(),
		Queued:   stats.Queued,
		Capacity: stats.QueueSize,
		Workers:  stats.Workers,
		Running:  stats.IsRunning,
		Auth:     s.auth != nil && s.auth.Enabled(),
	}
}

func errorResponse(id string, err error) Response {
	return Response{
		Tipo:    "error",
		ID:      id,
		Status:  "error",
		Mensaje: workererrors.ExtractUserFriendlyError(err),
		Error:   bridge.NewErrorDTO(err),
	}
}

// sendError sends error response to client
func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, id string, err error) {
	s.write(ctx, conn, errorResponse(id, err))
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, response Response) {
	if err := wsjson.Write(ctx, conn, response); err != nil {
		s.log.Debug("write failed", zap.String("tipo", response.Tipo), zap.String("id", response.ID), zap.Error(err))
	}
}

// notify sends an asynchronous result back to a specific client. The
// request context may be gone by now, so it uses its own deadline.
func (s *Server) notify(conn *websocket.Conn, response Response) {
	if conn == nil || !s.clients.Contains(conn) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
	defer cancel()

	s.write(ctx, conn, response)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)

		s.log.Info("shutting down, disconnecting clients", zap.Int("clients", s.clients.Count()))

		// Close waits for each peer's close frame, so clients close in parallel
		var wg sync.WaitGroup
		s.clients.ForEach(func(conn *websocket.Conn, _ Client) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
			}()
		})
		wg.Wait()
	})
}

func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
