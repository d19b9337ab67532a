// Package harborlog wires a single logrus logger shared by every Harbor
// binary and service, the way the teacher's core package shares a
// package-level logger (core/wallet.go's globalLogger) rather than
// threading a logger through every constructor.
package harborlog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once   sync.Once
	logger *logrus.Logger
)

// Logger returns the process-wide logger, initializing it with sane
// defaults on first use.
func Logger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.InfoLevel)
	})
	return logger
}

// SetLevel parses and applies a textual log level, mirroring
// cmd/cli/network.go's netInit (logrus.ParseLevel from Viper config).
func SetLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger().SetLevel(lv)
	return nil
}

// With returns a logging entry scoped to a component, e.g.
// harborlog.With("transport").Warn("dial failed").
func With(component string) *logrus.Entry {
	return Logger().WithField("component", component)
}
