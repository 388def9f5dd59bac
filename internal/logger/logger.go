package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/scamps86/sct-binance-bot/internal/models"
)

var sugaredLogger *zap.SugaredLogger

// Init builds the global zap logger from the log section of the config file.
// Depending on the output setting, entries go to the console, a rotated log
// file, or both.
func Init(cfg models.LogConfig) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	var cores []zapcore.Core

	output := strings.ToLower(cfg.Output)
	if output == "file" || output == "both" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(consoleEncoder, fileWriter, logLevel))
	}
	if output == "console" || output == "both" || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), logLevel))
	}

	sugaredLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
}

// S returns the global sugared logger. Before Init has run (early startup,
// tests) it falls back to a development logger.
func S() *zap.SugaredLogger {
	if sugaredLogger == nil {
		l, _ := zap.NewDevelopment()
		return l.Sugar()
	}
	return sugaredLogger
}
