package boot

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logLevels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

func ParseLogLevel(level string) (log.Lvl, error) {
	lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return 0, fmt.Errorf("unknown log level: %q", level)
	}
	return lvl, nil
}

// ConfigureLogging applies LOG_LEVEL to the global logger and, when LOG_FILE is
// set, tees output into a rotated file. The returned closer flushes that file.
func (c *Config) ConfigureLogging() (log.Lvl, io.Closer, error) {
	lvl, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return 0, nil, err
	}
	log.SetLevel(lvl)

	if c.LogFile == "" {
		return lvl, io.NopCloser(nil), nil
	}

	file := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return lvl, file, nil
}
