package log

import (
	"fmt"
	"strings"
	"time"
)

// Logger provides structured logging capabilities.
// Implementations can wrap zerolog, zap, logrus, or any other logging library.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Hex creates a field rendering value as a 0x-prefixed hexadecimal string.
// Used for symbology bit masks.
func Hex(key string, value uint32) Field {
	return Field{Key: key, Value: fmt.Sprintf("%#x", value)}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// maskKeep is the number of leading characters Masked leaves readable.
const maskKeep = 6

// Masked creates a string field that only shows the first few characters of
// a secret such as a license key.
func Masked(key, secret string) Field {
	if secret == "" {
		return Field{Key: key, Value: ""}
	}
	if len(secret) <= maskKeep {
		return Field{Key: key, Value: strings.Repeat("*", len(secret))}
	}
	return Field{Key: key, Value: secret[:maskKeep] + "*****"}
}
