// internal/logger/pretty.go
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// PrettyEncoder creates a user-friendly console encoder
func PrettyEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	})
}

func bufferEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// customLevelEncoder formats log levels with colors
func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(ColorCyan + "[DEBUG]" + ColorReset)
	case zapcore.InfoLevel:
		enc.AppendString(ColorGreen + "[INFO]" + ColorReset)
	case zapcore.WarnLevel:
		enc.AppendString(ColorYellow + "[WARN]" + ColorReset)
	case zapcore.ErrorLevel:
		enc.AppendString(ColorRed + "[ERROR]" + ColorReset)
	case zapcore.FatalLevel:
		enc.AppendString(ColorRed + ColorBold + "[FATAL]" + ColorReset)
	default:
		enc.AppendString(fmt.Sprintf("[%s]", level.CapitalString()))
	}
}

// customTimeEncoder formats time in a readable way
func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

// FormatMessage делает сообщения о ключевых событиях читаемыми в консоли.
func FormatMessage(msg string, fields []zapcore.Field) string {
	switch {
	case strings.Contains(msg, "Mint account created"):
		return fmt.Sprintf("%s🪙 Mint account created: %s%s", ColorGreen, shortenSignature(extractField(fields, "signature")), ColorReset)
	case strings.Contains(msg, "Metadata attached"):
		return fmt.Sprintf("%s🏷  Metadata attached to %s%s", ColorGreen, shortenAddress(extractField(fields, "mint")), ColorReset)
	case strings.Contains(msg, "Transaction confirmed"):
		return fmt.Sprintf("%s✅ Transaction confirmed: %s%s", ColorGreen, shortenSignature(extractField(fields, "signature")), ColorReset)
	case strings.Contains(msg, "Token discovery completed"):
		return fmt.Sprintf("%s📋 Discovered %s tokens%s", ColorBlue, extractField(fields, "tokens"), ColorReset)
	case strings.Contains(msg, "Token added by lookup"):
		return fmt.Sprintf("%s🔎 Token added: %s%s", ColorBlue, shortenAddress(extractField(fields, "mint")), ColorReset)
	case strings.Contains(msg, "Simulated pool created"):
		return fmt.Sprintf("%s🧪 Simulated pool created: %s%s", ColorPurple, extractField(fields, "pool_id"), ColorReset)
	case strings.Contains(msg, "Simulated swap executed"):
		return fmt.Sprintf("%s🧪 Simulated swap executed%s", ColorPurple, ColorReset)
	default:
		return msg
	}
}

func extractField(fields []zapcore.Field, key string) string {
	for _, field := range fields {
		if field.Key != key {
			continue
		}
		switch field.Type {
		case zapcore.StringType:
			return field.String
		case zapcore.Int64Type, zapcore.Int32Type:
			return fmt.Sprintf("%d", field.Integer)
		case zapcore.StringerType:
			if s, ok := field.Interface.(fmt.Stringer); ok {
				return s.String()
			}
		}
		if field.Interface != nil {
			return fmt.Sprintf("%v", field.Interface)
		}
		return fmt.Sprintf("%d", field.Integer)
	}
	return ""
}

// ShortenAddress сокращает адрес до вида "AbCd...WxYz".
func ShortenAddress(addr string) string { return shortenAddress(addr) }

func shortenAddress(addr string) string {
	if len(addr) > 8 {
		return addr[:4] + "..." + addr[len(addr)-4:]
	}
	return addr
}

func shortenSignature(sig string) string {
	if len(sig) > 16 {
		return sig[:8] + "..." + sig[len(sig)-8:]
	}
	return sig
}

// prettyCore переписывает известные сообщения и убирает их поля.
type prettyCore struct {
	zapcore.Core
	fields []zapcore.Field
}

func (c *prettyCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &prettyCore{Core: c.Core, fields: merged}
}

func (c *prettyCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *prettyCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field{}, c.fields...), fields...)
	pretty := FormatMessage(entry.Message, all)
	if pretty == entry.Message {
		return c.Core.Write(entry, all)
	}
	entry.Message = pretty
	entry.LoggerName = ""
	return c.Core.Write(entry, nil)
}
