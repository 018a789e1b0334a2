package common

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/ValentinKolb/dCfg/lib/hooks"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dCfgLogger implements the ILogger interface with custom formatting
type dCfgLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *dCfgLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *dCfgLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *dCfgLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *dCfgLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *dCfgLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *dCfgLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *dCfgLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger is the dragonboat logger factory producing dCfgLogger instances
func CreateLogger(pkgName string) logger.ILogger {
	stdLogger := log.New(os.Stdout, "", log.Ldate|log.Ltime)

	return &dCfgLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// LoggerNames lists every logger used by dCfg
var LoggerNames = []string{
	"tree", "store", "cfgio", "hooks",
	"transport", "rpc", "server", "client",
}

var (
	factoryOnce  sync.Once
	levelMu      sync.Mutex
	currentLevel = "info"
)

// InitLoggers installs the custom logger factory and sets the level of all
// dCfg loggers.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	levelMu.Lock()
	defer levelMu.Unlock()
	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	currentLevel = strings.ToLower(level)
	return nil
}

// CurrentLogLevel returns the level last applied by InitLoggers
func CurrentLogLevel() string {
	levelMu.Lock()
	defer levelMu.Unlock()
	return currentLevel
}

// NewLogLevelHook returns a change hook that applies the log level stored
// under key whenever key (or the whole config) changes. An invalid level is
// reported and the current level is written back.
func NewLogLevelHook(s store.IStore, key string) hooks.ChangeHook {
	return func(changed string) bool {
		if changed != key && changed != hooks.FullConfigKey {
			return false
		}

		current := CurrentLogLevel()
		level, ok := store.GetString(s, key, current)
		if !ok || level == current {
			return false
		}

		if err := InitLoggers(level); err != nil {
			logger.GetLogger("rpc").Warningf("ignoring log level from %s: %v", key, err)
			store.PutString(s, key, current)
			return false
		}

		logger.GetLogger("rpc").Infof("log level changed to %s", level)
		return true
	}
}
