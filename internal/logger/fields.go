package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldSource   = "source"
	FieldKeywords = "keywords"
	FieldLocation = "location"
	FieldAlertID  = "alert_id"
	FieldOwner    = "owner"
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced with a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// QueryFields describes a search: keywords and, when present, location.
func QueryFields(keywords, location string) []zap.Field {
	return StringFields(
		StringField{Key: FieldKeywords, Value: keywords},
		StringField{Key: FieldLocation, Value: location},
	)
}

// ForSource returns a logger scoped to one job source.
func ForSource(logger *zap.Logger, source string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldSource, Value: source})...)
}

// ForAlert returns a logger scoped to one alert and its owner.
func ForAlert(logger *zap.Logger, id, owner string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldAlertID, Value: id},
		StringField{Key: FieldOwner, Value: owner},
	)...)
}

// AIFields describes the AI provider and model. Empty values are skipped.
func AIFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}
