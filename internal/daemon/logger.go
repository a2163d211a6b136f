// Package daemon hosts the printbridge service: logging, wiring and health.
package daemon

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log rotation
const (
	maxLogSize   = 5 * 1024 * 1024 // 5MB
	keepLogLines = 1000
)

// RotatingFile is a zapcore.WriteSyncer that appends to a log file and,
// once the file exceeds its size limit, trims it to the last lines.
type RotatingFile struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	size    int64
	maxSize int64
	keep    int
}

// OpenRotatingFile opens path for appending, trimming it first if it is
// already over maxSize.
func OpenRotatingFile(path string, maxSize int64, keep int) (*RotatingFile, error) {
	if maxSize <= 0 {
		maxSize = maxLogSize
	}
	if keep <= 0 {
		keep = keepLogLines
	}
	if err := rotateLogIfNeeded(path, maxSize, keep); err != nil {
		return nil, fmt.Errorf("log rotation failed: %w", err)
	}

	f := &RotatingFile{path: path, maxSize: maxSize, keep: keep}
	if err := f.open(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RotatingFile) open() error {
	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) //nolint:gosec
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	f.file = file
	f.size = info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file over the limit.
func (f *RotatingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return 0, fmt.Errorf("log file not open")
	}
	if f.size+int64(len(p)) > f.maxSize {
		if err := f.trimLocked(f.keep); err != nil {
			return 0, err
		}
	}
	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

// Sync flushes the file to disk.
func (f *RotatingFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	return f.file.Sync()
}

// Close closes the file. Later writes fail.
func (f *RotatingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Size returns the current file size.
func (f *RotatingFile) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Flush keeps the last keep lines and clears the rest.
func (f *RotatingFile) Flush(keep int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trimLocked(keep)
}

func (f *RotatingFile) trimLocked(keep int) error {
	if f.file != nil {
		if err := f.file.Close(); err != nil {
			return err
		}
		f.file = nil
	}

	lines := readLastNLines(f.path, keep)
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(f.path, []byte(content), 0600); err != nil {
		return err
	}
	return f.open()
}

// rotateLogIfNeeded trims the log if it exceeds maxSize
func rotateLogIfNeeded(path string, maxSize int64, keep int) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.Size() < maxSize {
		return nil
	}

	lines := readLastNLines(path, keep)
	if len(lines) == 0 {
		return nil
	}

	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(path, []byte(content), 0600)
}

// readLastNLines reads last N lines from file
func readLastNLines(path string, n int) []string {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return []string{}
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return []string{}
	}

	size := stat.Size()
	if size == 0 {
		return []string{}
	}

	// Read last 64KB max
	bufSize := int64(64 * 1024)
	if size < bufSize {
		bufSize = size
	}

	buf := make([]byte, bufSize)
	if _, err := file.ReadAt(buf, size-bufSize); err != nil && err != io.EOF {
		return []string{}
	}

	allLines := strings.Split(string(buf), "\n")

	// Clean empty lines at end
	for len(allLines) > 0 && allLines[len(allLines)-1] == "" {
		allLines = allLines[:len(allLines)-1]
	}

	// If we started mid-line, discard first partial line
	if size > bufSize && len(allLines) > 0 {
		allLines = allLines[1:]
	}

	if len(allLines) <= n {
		return allLines
	}
	return allLines[len(allLines)-n:]
}

// LogConfig selects the logger outputs.
type LogConfig struct {
	Path    string    // empty disables the file output
	Verbose bool      // debug level when true, info otherwise
	Format  string    // "console" or "json"
	Console io.Writer // nil disables the console output
}

// Logging owns the service logger and its file.
type Logging struct {
	Logger *zap.Logger
	level  zap.AtomicLevel
	file   *RotatingFile
}

// NewLogging builds a zap logger writing to the rotating file and,
// optionally, to a console writer.
func NewLogging(cfg LogConfig) (*Logging, error) {
	l := &Logging{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
	if cfg.Verbose {
		l.level.SetLevel(zapcore.DebugLevel)
	}

	var cores []zapcore.Core
	if cfg.Path != "" {
		file, err := OpenRotatingFile(cfg.Path, maxLogSize, keepLogLines)
		if err != nil {
			return nil, err
		}
		l.file = file
		cores = append(cores, zapcore.NewCore(newEncoder("json"), file, l.level))
	}
	if cfg.Console != nil {
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(cfg.Console), l.level))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

// SetVerbose changes the verbosity level at runtime
func (l *Logging) SetVerbose(v bool) {
	if v {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
	l.Logger.Info("log verbosity changed", zap.Bool("verbose", v))
}

// Verbose returns current verbosity level
func (l *Logging) Verbose() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// LogFileSize returns current log file size
func (l *Logging) LogFileSize() int64 {
	if l.file == nil {
		return 0
	}
	return l.file.Size()
}

// Close flushes the logger and closes the file.
func (l *Logging) Close() error {
	_ = l.Logger.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
