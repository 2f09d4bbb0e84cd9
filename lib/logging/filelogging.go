package logging

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/ziflex/lecho/v3"
)

// Logger builds the gateway's logger, writing to STDOUT by default or
// to a timestamped file when a log file path is configured.
func Logger(logFilePath string) *lecho.Logger {
	logger := lecho.New(
		os.Stdout,
		lecho.WithLevel(log.DEBUG),
		lecho.WithTimestamp(),
	)
	if logFilePath != "" {
		file, err := openLogFile(logFilePath)
		if err != nil {
			logger.Errorf("failed to create logging file: %v", err)
			return logger
		}
		logger.SetOutput(file)
	}
	return logger
}

func openLogFile(path string) (*os.File, error) {
	extension := filepath.Ext(path)
	stamp := time.Now().Format("2006-01-02 15:04:05")
	if extension != "" {
		path = strings.Replace(path, extension, stamp+extension, 1)
	} else {
		path = path + stamp
	}
	return os.Create(path)
}
