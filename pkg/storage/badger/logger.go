package badger

import (
	"strings"

	"github.com/marmos91/tablestore/internal/logger"
)

// badgerLogger routes BadgerDB's internal logging to the process logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error("badger: "+strings.TrimRight(format, "\n"), args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn("badger: "+strings.TrimRight(format, "\n"), args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug("badger: "+strings.TrimRight(format, "\n"), args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug("badger: "+strings.TrimRight(format, "\n"), args...)
}
