package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

type contextKey string

// RequestIDKey is the context key under which handlers store the request ID
const RequestIDKey contextKey = "request_id"

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	// Set output format
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithField creates a new logger entry with a single field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithContext creates a logger with context-aware fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithFields(logrus.Fields{})
	if ctx == nil {
		return entry
	}

	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}

	return entry
}

// HL7Message logs generation or parsing of an ADT message
func (l *Logger) HL7Message(ctx context.Context, messageType, controlID, patientID string, success bool, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"hl7":          true,
		"message_type": messageType,
		"control_id":   controlID,
		"patient_id":   patientID,
		"success":      success,
		"details":      details,
	})

	if success {
		entry.Info("HL7 message processed")
	} else {
		entry.Warn("HL7 message rejected")
	}
}

// AccessionIssued logs a newly issued accession number
func (l *Logger) AccessionIssued(ctx context.Context, modality, accession string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"accession": accession,
		"modality":  modality,
	}).Info("Accession number issued")
}

// WorklistTransition logs a worklist entry state change
func (l *Logger) WorklistTransition(ctx context.Context, patientID, from, to string, success bool, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"worklist":   true,
		"patient_id": patientID,
		"from":       from,
		"to":         to,
		"success":    success,
		"details":    details,
	})

	if success {
		entry.Info("Worklist entry transitioned")
	} else {
		entry.Warn("Worklist transition rejected")
	}
}

// ExternalTool logs the outcome of an external process or service call
func (l *Logger) ExternalTool(ctx context.Context, tool string, duration int64, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"tool":        tool,
		"duration_ms": duration,
	})

	if err != nil {
		entry.WithError(err).Error("External tool failed")
		return
	}
	entry.Debug("External tool completed")
}

// HTTPRequest logs HTTP request events
func (l *Logger) HTTPRequest(ctx context.Context, method, path, userAgent, clientIP string, statusCode int, duration int64, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"user_agent":   userAgent,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  duration,
		"details":      details,
	})

	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}

// DatabaseOperation logs database operation events
func (l *Logger) DatabaseOperation(ctx context.Context, operation, table string, duration int64, rowsAffected int64, success bool, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"database":      true,
		"operation":     operation,
		"table":         table,
		"duration_ms":   duration,
		"rows_affected": rowsAffected,
		"success":       success,
		"details":       details,
	})

	if success {
		entry.Debug("Database operation completed")
	} else {
		entry.Error("Database operation failed")
	}
}
