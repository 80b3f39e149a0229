package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvWritablePath names a directory the process may write logs under.
const EnvWritablePath = "LLM_ADAPTER_WRITABLE_PATH"

const mainLogName = "llm-adapter.log"

var (
	setupOnce sync.Once
	fileMu    sync.Mutex
	fileOut   *lumberjack.Logger
)

// SetupBaseLogger routes gin's own output through the logger. Safe to call
// more than once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		SetOutput(os.Stdout)
		SetDebug(false)
		gin.SetMode(gin.ReleaseMode)
		gin.DefaultWriter = LevelWriter(slog.LevelInfo)
		gin.DefaultErrorWriter = LevelWriter(slog.LevelError)
		gin.DebugPrintFunc = func(format string, values ...any) {
			Debugf(strings.TrimRight(format, "\n"), values...)
		}
		RegisterExitHandler(closeFileOutput)
	})
}

// DefaultLogsDir is the logs directory under EnvWritablePath, or ./logs.
func DefaultLogsDir() string {
	if base := strings.TrimSpace(os.Getenv(EnvWritablePath)); base != "" {
		return filepath.Join(filepath.Clean(base), "logs")
	}
	return "logs"
}

// ConfigureLogOutput switches between stdout and a rotating file in
// DefaultLogsDir.
func ConfigureLogOutput(toFile bool) error {
	SetupBaseLogger()

	fileMu.Lock()
	defer fileMu.Unlock()
	if fileOut != nil {
		_ = fileOut.Close()
		fileOut = nil
	}
	if !toFile {
		SetOutput(os.Stdout)
		return nil
	}

	dir := DefaultLogsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("logging: create log directory: %w", err)
	}
	fileOut = &lumberjack.Logger{
		Filename:   filepath.Join(dir, mainLogName),
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	SetOutput(fileOut)
	return nil
}

func closeFileOutput() {
	fileMu.Lock()
	defer fileMu.Unlock()
	if fileOut != nil {
		_ = fileOut.Close()
		fileOut = nil
	}
}
