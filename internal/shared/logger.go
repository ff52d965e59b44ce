package shared

import (
	"fmt"
)

// Logger implements interfaces.LoggerService over the package's colored
// writers (colors.go) and debug helpers (debug.go), matching the teacher's
// direct-color-print style rather than introducing a structured logging
// library the teacher itself never reaches for.
type Logger struct {
	debug bool
}

// NewLogger constructs a Logger. InitializeColors should be called once at
// process start (main) to set color.NoColor from TTY detection.
func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) SetDebugMode(enabled bool) { l.debug = enabled }

func (l *Logger) Info(message string, args ...interface{}) {
	ColorInfo.Println(fmt.Sprintf(message, args...))
}

func (l *Logger) Warning(message string, args ...interface{}) {
	ColorWarning.Println(fmt.Sprintf(message, args...))
}

func (l *Logger) Error(message string, args ...interface{}) {
	ColorError.Println(fmt.Sprintf(message, args...))
}

func (l *Logger) Success(message string, args ...interface{}) {
	ColorSuccess.Println(fmt.Sprintf(message, args...))
}

func (l *Logger) Debug(message string, args ...interface{}) {
	DebugPrint(l.debug, message, args...)
}
