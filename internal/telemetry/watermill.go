package telemetry

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/ivlev/slidefeed/internal/logger"
)

const watermillModule = "Watermill"

// watermillLogger routes watermill's own logging into ILogger.
type watermillLogger struct {
	log    logger.ILogger
	fields watermill.LogFields
}

func NewWatermillLogger(log logger.ILogger) watermill.LoggerAdapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &watermillLogger{log: log}
}

func (l *watermillLogger) details(fields watermill.LogFields) map[string]interface{} {
	out := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	d := l.details(fields)
	if err != nil {
		d["error"] = err.Error()
	}
	l.log.Error(watermillModule, msg, d)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.log.Info(watermillModule, msg, l.details(fields))
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug(watermillModule, msg, l.details(fields))
}

// Trace is folded into Debug.
func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.log.Debug(watermillModule, msg, l.details(fields))
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: l.log, fields: l.details(fields)}
}
