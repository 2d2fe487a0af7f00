// Package logging provides categorized file-based logging for the research
// engine. Logs are written to <dir>/logs/ with one file per category per day.
// Until Initialize is called the package is a silent no-op, so embedding the
// engine as a library never writes files implicitly.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryLoop      Category = "loop"      // State machine transitions
	CategoryPlanner   Category = "planner"   // Plan and query generation
	CategoryExecutor  Category = "executor"  // Search, retrieval, summarization
	CategoryReflector Category = "reflector" // KG extraction, reflect-and-decide
	CategoryReporter  Category = "reporter"  // Final report synthesis
	CategoryLLM       Category = "llm"       // LLM facade, rate gate, recovery
	CategorySearch    Category = "search"    // Search provider adapters
	CategoryRetriever Category = "retriever" // Content retrieval
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	stateMu  sync.RWMutex
	logsDir  string
	enabled  bool
	logLevel = LevelInfo
)

// Initialize enables logging under dir/logs at the given level
// ("debug", "info", "warn", "error"). Safe to call more than once.
func Initialize(dir, level string) error {
	if dir == "" {
		return fmt.Errorf("log directory required")
	}

	target := filepath.Join(dir, "logs")
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	stateMu.Lock()
	logsDir = target
	enabled = true
	switch level {
	case "debug":
		logLevel = LevelDebug
	case "info", "":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	stateMu.Unlock()

	Get(CategoryLoop).Info("=== research logging initialized (dir=%s, level=%s) ===", target, level)
	return nil
}

// IsEnabled reports whether Initialize has been called.
func IsEnabled() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger when logging is disabled.
func Get(category Category) *Logger {
	stateMu.RLock()
	on, dir := enabled, logsDir
	stateMu.RUnlock()
	if !on || dir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation trivial.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) emit(level int, tag, format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	stateMu.RLock()
	min := logLevel
	stateMu.RUnlock()
	if level < min {
		return
	}
	l.logger.Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit(LevelDebug, "DEBUG", format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(LevelWarn, "WARN", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(LevelError, "ERROR", format, args...)
}

// CloseAll closes all open log files. Call on shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for cat, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
		delete(loggers, cat)
	}
}

// Convenience helpers, one pair per category.

func Loop(format string, args ...interface{})      { Get(CategoryLoop).Info(format, args...) }
func LoopDebug(format string, args ...interface{}) { Get(CategoryLoop).Debug(format, args...) }

func Planner(format string, args ...interface{})      { Get(CategoryPlanner).Info(format, args...) }
func PlannerDebug(format string, args ...interface{}) { Get(CategoryPlanner).Debug(format, args...) }

func Executor(format string, args ...interface{})      { Get(CategoryExecutor).Info(format, args...) }
func ExecutorDebug(format string, args ...interface{}) { Get(CategoryExecutor).Debug(format, args...) }

func Reflector(format string, args ...interface{}) { Get(CategoryReflector).Info(format, args...) }
func ReflectorDebug(format string, args ...interface{}) {
	Get(CategoryReflector).Debug(format, args...)
}

func Reporter(format string, args ...interface{})      { Get(CategoryReporter).Info(format, args...) }
func ReporterDebug(format string, args ...interface{}) { Get(CategoryReporter).Debug(format, args...) }

func LLM(format string, args ...interface{})      { Get(CategoryLLM).Info(format, args...) }
func LLMDebug(format string, args ...interface{}) { Get(CategoryLLM).Debug(format, args...) }

func Search(format string, args ...interface{})      { Get(CategorySearch).Info(format, args...) }
func SearchDebug(format string, args ...interface{}) { Get(CategorySearch).Debug(format, args...) }

func Retriever(format string, args ...interface{}) { Get(CategoryRetriever).Info(format, args...) }
func RetrieverDebug(format string, args ...interface{}) {
	Get(CategoryRetriever).Debug(format, args...)
}
