package cdc

import (
	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// SaramaLoggerAdapter routes sarama's standard-library style logging
// through the worker's zap logger.
type SaramaLoggerAdapter struct {
	*zap.SugaredLogger
}

var _ sarama.StdLogger = &SaramaLoggerAdapter{}

func (a *SaramaLoggerAdapter) Print(v ...interface{}) {
	a.Debug(v...)
}

func (a *SaramaLoggerAdapter) Printf(format string, v ...interface{}) {
	a.Debugf(format, v...)
}

func (a *SaramaLoggerAdapter) Println(v ...interface{}) {
	a.Debug(v...)
}
