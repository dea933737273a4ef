package diagnostic

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"
	"sync"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service builds the root logger and hands out per-service diagnostic
// handlers. Every service declares its own narrow Diagnostic interface
// and the handlers here implement them.
type Service struct {
	c Config

	mu     sync.Mutex
	logger *zap.Logger
	level  zap.AtomicLevel

	stdout io.Writer
	stderr io.Writer

	closer io.Closer
}

func NewService(c Config, stdout, stderr io.Writer) *Service {
	return &Service{
		c:      c,
		level:  zap.NewAtomicLevel(),
		stdout: stdout,
		stderr: stderr,
	}
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var output io.Writer
	switch s.c.File {
	case "STDERR":
		output = s.stderr
	case "STDOUT":
		output = s.stdout
	default:
		dir := path.Dir(s.c.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}

		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		output = f
		s.closer = f
	}

	if err := s.setLogLevelFromName(s.c.Level); err != nil {
		return err
	}

	core := zapcore.NewCore(
		zaplogfmt.NewEncoder(newEncoderConfig()),
		zapcore.AddSync(output),
		s.level,
	)
	s.logger = zap.New(core)

	// Point the default logger at our output.
	// Nothing should use it but third party code may.
	log.SetPrefix("[log] ")
	log.SetFlags(log.LstdFlags)
	log.SetOutput(output)

	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logger != nil {
		// Sync errors on stderr outputs are expected, ignore them.
		_ = s.logger.Sync()
		s.logger = nil
	}
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "lvl",
		MessageKey:     "msg",
		NameKey:        "logger",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
	}
}

// SetLogLevelFromName changes the level of the root logger and all handlers.
// Expects the name to be one of DEBUG, INFO, WARN or ERROR.
func (s *Service) SetLogLevelFromName(lvl string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLogLevelFromName(lvl)
}

func (s *Service) setLogLevelFromName(lvl string) error {
	switch strings.ToUpper(lvl) {
	case "DEBUG":
		s.level.SetLevel(zapcore.DebugLevel)
	case "INFO":
		s.level.SetLevel(zapcore.InfoLevel)
	case "WARN":
		s.level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		s.level.SetLevel(zapcore.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level %s", lvl)
	}
	return nil
}

// root returns the root logger, creating a usable logger even if the
// service was never opened. Tests construct handlers without Open.
func (s *Service) root() *zap.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logger == nil {
		core := zapcore.NewCore(
			zaplogfmt.NewEncoder(newEncoderConfig()),
			zapcore.AddSync(os.Stderr),
			s.level,
		)
		s.logger = zap.New(core)
	}
	return s.logger
}
