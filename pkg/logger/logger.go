package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with helpers for authorization events.
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

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

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithUserID creates a new logger entry with user ID field
func (l *Logger) WithUserID(userID string) *logrus.Entry {
	return l.Logger.WithField("user_id", userID)
}

// WithRequestID creates a new logger entry with request ID field
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.Logger.WithField("request_id", requestID)
}

// Decision logs the outcome of a permission check. Denied checks are
// logged at the same level as allowed ones so they stay visible without
// raising verbosity.
func (l *Logger) Decision(user, permission string, allowed bool, source string) {
	l.Logger.WithFields(logrus.Fields{
		"decision":   true,
		"user_id":    user,
		"permission": permission,
		"allowed":    allowed,
		"source":     source,
	}).Info("Authorization decision")
}

// Audit logs administrative mutations with structured format
func (l *Logger) Audit(actor, action, subject string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":   true,
		"actor":   actor,
		"action":  action,
		"subject": subject,
		"success": success,
		"details": details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// Security logs security-related events
func (l *Logger) Security(event string, userID string, details map[string]interface{}) {
	l.Logger.WithFields(logrus.Fields{
		"security": true,
		"event":    event,
		"user_id":  userID,
		"details":  details,
	}).Warn("Security event")
}

// EmergencyAccess logs break-glass access events with enhanced context
func (l *Logger) EmergencyAccess(requester, patient, condition string, granted bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"emergency": true,
		"requester": requester,
		"patient":   patient,
		"condition": condition,
		"granted":   granted,
		"details":   details,
	})

	if granted {
		entry.Warn("Emergency access granted")
	} else {
		entry.Warn("Emergency access denied")
	}
}

// HTTPRequest logs HTTP request events
func (l *Logger) HTTPRequest(method, path, clientIP string, statusCode int, duration int64) {
	entry := l.Logger.WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  duration,
	})

	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}
