package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// SlowLockThreshold applies to SELECT ... FOR UPDATE on cache rows, which
	// wait on concurrent recalculations and are expected to be slower.
	SlowLockThreshold    time.Duration
	IgnoreRecordNotFound bool
}

// DefaultGormLoggerConfig returns production-safe defaults.
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		SlowLockThreshold:    time.Second,
		IgnoreRecordNotFound: true,
	}
}

// ParseGormLevel maps DB_LOG_LEVEL values onto gorm levels.
func ParseGormLevel(value string) (gormlogger.LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "silent", "off":
		return gormlogger.Silent, true
	case "error":
		return gormlogger.Error, true
	case "warn", "warning":
		return gormlogger.Warn, true
	case "info", "debug":
		return gormlogger.Info, true
	default:
		return gormlogger.Warn, false
	}
}

// GormLogger implements gormlogger.Interface with zap-backed structured logging.
type GormLogger struct {
	cfg GormLoggerConfig
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level < gormlogger.Info {
		return
	}
	FromContext(ctx).Info(msg, l.messageFields(data)...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level < gormlogger.Warn {
		return
	}
	FromContext(ctx).Warn(msg, l.messageFields(data)...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level < gormlogger.Error {
		return
	}
	FromContext(ctx).Error(msg, l.messageFields(data)...)
}

func (l *GormLogger) messageFields(data []interface{}) []zap.Field {
	fields := []zap.Field{zap.String("component", "gorm")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	return fields
}

// Trace logs failed and slow statements, and every statement at Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	stmt := describeSQL(sql)

	threshold := l.cfg.SlowThreshold
	if stmt.locking && l.cfg.SlowLockThreshold > 0 {
		threshold = l.cfg.SlowLockThreshold
	}

	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error && (!errors.Is(err, gormlogger.ErrRecordNotFound) || !l.cfg.IgnoreRecordNotFound):
		l.logQuery(ctx, sql, rows, stmt, elapsed, err, zap.ErrorLevel)
	case threshold != 0 && elapsed > threshold && l.cfg.Level >= gormlogger.Warn:
		l.logQuery(ctx, sql, rows, stmt, elapsed, nil, zap.WarnLevel)
	case l.cfg.Level >= gormlogger.Info:
		l.logQuery(ctx, sql, rows, stmt, elapsed, nil, zap.DebugLevel)
	}
}

// ParamsFilter drops bound values; buyer names and prices stay out of logs.
func (l *GormLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) logQuery(ctx context.Context, sql string, rows int64, stmt sqlStatement, elapsed time.Duration, err error, level zapcore.Level) {
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", stmt.operation),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if stmt.table != "" {
		fields = append(fields, zap.String("table", stmt.table))
	}
	if stmt.locking {
		fields = append(fields, zap.Bool("row_lock", true))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	log := FromContext(ctx)
	switch level {
	case zap.ErrorLevel:
		log.Error("gorm.query", fields...)
	case zap.WarnLevel:
		log.Warn("gorm.query", fields...)
	default:
		log.Debug("gorm.query", fields...)
	}
}

type sqlStatement struct {
	operation string
	table     string
	locking   bool
}

func describeSQL(sql string) sqlStatement {
	normalized := strings.ToUpper(strings.TrimSpace(sql))
	stmt := sqlStatement{operation: "UNKNOWN"}
	if normalized == "" {
		return stmt
	}
	stmt.locking = strings.Contains(normalized, "FOR UPDATE")

	tokens := strings.Fields(strings.TrimSpace(sql))
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if stmt.operation == "UNKNOWN" {
				stmt.operation = token
			}
			if token == "UPDATE" && stmt.table == "" && i+1 < len(tokens) {
				stmt.table = tableName(tokens[i+1])
			}
		case "FROM", "INTO":
			if stmt.table == "" && i+1 < len(tokens) {
				stmt.table = tableName(tokens[i+1])
			}
		}
	}
	return stmt
}

func tableName(token string) string {
	return strings.ToLower(strings.Trim(token, "\"`();,"))
}

var _ gormlogger.Interface = (*GormLogger)(nil)
