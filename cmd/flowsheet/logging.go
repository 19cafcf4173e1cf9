package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"flowsheet/internal/progress"
)

// newLogger builds a zap logger writing to stderr, or to a rotated
// log file when logFilePath is non-empty.
func newLogger(logFilePath string) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if logFilePath == "" {
		writer := zapcore.Lock(zapcore.AddSync(os.Stderr))
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, zap.InfoLevel)
		return zap.New(core)
	}

	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), zap.InfoLevel)
	return zap.New(core)
}

// zapPhase renders one progress.Event as structured log fields.
func zapPhase(e progress.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("phase", string(e.Phase)),
		zap.Int("processed", e.Processed),
	}
	if e.Total != nil {
		fields = append(fields, zap.Int("total", *e.Total))
	}
	return fields
}
