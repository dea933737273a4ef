package diagnostic

import (
	"log"
	"os"
	"runtime"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/streamwatch/streamwatch/keyvalue"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func fieldsFromContext(ctx []keyvalue.T) []zap.Field {
	fields := make([]zap.Field, len(ctx))
	for i, kv := range ctx {
		fields[i] = zap.String(kv.Key, kv.Value)
	}
	return fields
}

func logError(l *zap.Logger, msg string, err error, ctx []keyvalue.T) {
	if len(ctx) == 0 {
		l.Error(msg, zap.Error(err))
		return
	}
	fields := make([]zap.Field, 0, len(ctx)+1)
	fields = append(fields, zap.Error(err))
	for _, kv := range ctx {
		fields = append(fields, zap.String(kv.Key, kv.Value))
	}
	l.Error(msg, fields...)
}

// Cmd handler

type CmdHandler struct {
	l *zap.Logger
}

// BootstrapMainHandler returns a handler for logging errors that occur
// before the diagnostic service is configured and opened.
func BootstrapMainHandler() *CmdHandler {
	s := NewService(NewConfig(), nil, os.Stderr)
	// Should never error
	_ = s.Open()

	return s.NewCmdHandler()
}

func (s *Service) NewCmdHandler() *CmdHandler {
	return &CmdHandler{
		l: s.root().With(zap.String("service", "run")),
	}
}

func (h *CmdHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *CmdHandler) StreamwatchStarting(version, branch, commit string) {
	h.l.Info("streamwatchd starting",
		zap.String("version", version),
		zap.String("branch", branch),
		zap.String("commit", commit),
	)
}

func (h *CmdHandler) GoVersion() {
	h.l.Info("go version", zap.String("version", runtime.Version()))
}

func (h *CmdHandler) Info(msg string) {
	h.l.Info(msg)
}

// Server handler

type ServerHandler struct {
	l *zap.Logger
}

func (s *Service) NewServerHandler() *ServerHandler {
	return &ServerHandler{
		l: s.root().With(zap.String("source", "srv")),
	}
}

func (h *ServerHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	logError(h.l, msg, err, ctx)
}

func (h *ServerHandler) Info(msg string, ctx ...keyvalue.T) {
	h.l.Info(msg, fieldsFromContext(ctx)...)
}

func (h *ServerHandler) Debug(msg string, ctx ...keyvalue.T) {
	h.l.Debug(msg, fieldsFromContext(ctx)...)
}

// HTTPD handler

type HTTPDHandler struct {
	l *zap.Logger
}

func (s *Service) NewHTTPDHandler() *HTTPDHandler {
	return &HTTPDHandler{
		l: s.root().With(zap.String("service", "http")),
	}
}

func (h *HTTPDHandler) NewHTTPServerErrorLogger() *log.Logger {
	l, err := zap.NewStdLogAt(
		h.l.With(zap.String("service", "httpd_server_errors")),
		zapcore.ErrorLevel,
	)
	if err != nil {
		// Should be unreachable code
		panic(err)
	}
	return l
}

func (h *HTTPDHandler) StartingService() {
	h.l.Info("starting HTTP service")
}

func (h *HTTPDHandler) StoppedService() {
	h.l.Info("closed HTTP service")
}

func (h *HTTPDHandler) ShutdownTimeout() {
	h.l.Error("shutdown timedout, forcefully closing all remaining connections")
}

func (h *HTTPDHandler) AuthenticationEnabled(enabled bool) {
	h.l.Info("authentication", zap.Bool("enabled", enabled))
}

func (h *HTTPDHandler) ListeningOn(addr string, proto string) {
	h.l.Info("listening on", zap.String("addr", addr), zap.String("protocol", proto))
}

func (h *HTTPDHandler) HTTP(
	host string,
	username string,
	start time.Time,
	method string,
	uri string,
	proto string,
	status int,
	referer string,
	userAgent string,
	reqID string,
	duration time.Duration,
) {
	h.l.Debug("http request",
		zap.String("host", host),
		zap.String("username", username),
		zap.Time("start", start),
		zap.String("method", method),
		zap.String("uri", uri),
		zap.String("protocol", proto),
		zap.Int("status", status),
		zap.String("referer", referer),
		zap.String("user-agent", userAgent),
		zap.String("request-id", reqID),
		zap.Duration("duration", duration),
	)
}

func (h *HTTPDHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *HTTPDHandler) RecoveryError(
	msg string,
	err string,
	host string,
	username string,
	start time.Time,
	method string,
	uri string,
	proto string,
	status int,
	referer string,
	userAgent string,
	reqID string,
	duration time.Duration,
) {
	h.l.Error(msg,
		zap.String("err", err),
		zap.String("host", host),
		zap.String("username", username),
		zap.Time("start", start),
		zap.String("method", method),
		zap.String("uri", uri),
		zap.String("protocol", proto),
		zap.Int("status", status),
		zap.String("referer", referer),
		zap.String("user-agent", userAgent),
		zap.String("request-id", reqID),
		zap.Duration("duration", duration),
	)
}

// Storage handler

type StorageHandler struct {
	l *zap.Logger
}

func (s *Service) NewStorageHandler() *StorageHandler {
	return &StorageHandler{
		l: s.root().With(zap.String("service", "storage")),
	}
}

func (h *StorageHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *StorageHandler) OpenedDB(path string, size int64) {
	h.l.Info("opened bolt database",
		zap.String("path", path),
		zap.String("size", humanize.Bytes(uint64(size))),
	)
}

// Auth handler

type AuthHandler struct {
	l *zap.Logger
}

func (s *Service) NewAuthHandler() *AuthHandler {
	return &AuthHandler{
		l: s.root().With(zap.String("service", "auth")),
	}
}

func (h *AuthHandler) Debug(msg string, ctx ...keyvalue.T) {
	h.l.Debug(msg, fieldsFromContext(ctx)...)
}

// NoAuth handler

type NoAuthHandler struct {
	l *zap.Logger
}

func (s *Service) NewNoAuthHandler() *NoAuthHandler {
	return &NoAuthHandler{
		l: s.root().With(zap.String("service", "noauth")),
	}
}

func (h *NoAuthHandler) FakedUserAuthentication(username string) {
	h.l.Warn("using noauth auth backend. Faked authentication for user",
		zap.String("user", username),
	)
}

// Streams handler

type StreamsHandler struct {
	l *zap.Logger
}

func (s *Service) NewStreamsHandler() *StreamsHandler {
	return &StreamsHandler{
		l: s.root().With(zap.String("service", "streams")),
	}
}

func (h *StreamsHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	logError(h.l, msg, err, ctx)
}

func (h *StreamsHandler) CreatedStream(id string) {
	h.l.Info("created stream", zap.String("stream", id))
}

func (h *StreamsHandler) UpdatedStream(id string) {
	h.l.Info("updated stream", zap.String("stream", id))
}

func (h *StreamsHandler) DeletedStream(id string) {
	h.l.Info("deleted stream", zap.String("stream", id))
}

// Condition handler

type ConditionHandler struct {
	l *zap.Logger
}

func (s *Service) NewConditionHandler() *ConditionHandler {
	return &ConditionHandler{
		l: s.root().With(zap.String("service", "condition")),
	}
}

func (h *ConditionHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	logError(h.l, msg, err, ctx)
}

func (h *ConditionHandler) CreatedCondition(id, conditionType, streamID string) {
	h.l.Info("created alert condition",
		zap.String("condition", id),
		zap.String("type", conditionType),
		zap.String("stream", streamID),
	)
}

func (h *ConditionHandler) UpdatedCondition(id string) {
	h.l.Info("updated alert condition", zap.String("condition", id))
}

func (h *ConditionHandler) DeletedCondition(id string) {
	h.l.Info("deleted alert condition", zap.String("condition", id))
}

func (h *ConditionHandler) ValidationFailure(conditionType, streamID string, err error) {
	h.l.Warn("rejected alert condition",
		zap.String("type", conditionType),
		zap.String("stream", streamID),
		zap.Error(err),
	)
}

// Trigger handler

type TriggerHandler struct {
	l *zap.Logger
}

func (s *Service) NewTriggerHandler() *TriggerHandler {
	return &TriggerHandler{
		l: s.root().With(zap.String("service", "trigger")),
	}
}

func (h *TriggerHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	logError(h.l, msg, err, ctx)
}

func (h *TriggerHandler) RecordedTrigger(id, conditionID string) {
	h.l.Debug("recorded trigger",
		zap.String("trigger", id),
		zap.String("condition", conditionID),
	)
}

func (h *TriggerHandler) DeletedConditionTriggers(conditionID string) {
	h.l.Info("deleted trigger history", zap.String("condition", conditionID))
}

// Stats handler

type StatsHandler struct {
	l *zap.Logger
}

func (s *Service) NewStatsHandler() *StatsHandler {
	return &StatsHandler{
		l: s.root().With(zap.String("service", "stats")),
	}
}

func (h *StatsHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}
