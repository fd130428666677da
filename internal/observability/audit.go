package observability

import "log/slog"

// Audit emits a structured audit record for a security-relevant event.
// Callers must never pass secret material (passwords, hashes, TOTP secrets)
// in attrs.
func Audit(logger *slog.Logger, event string, success bool, attrs ...any) {
	if logger == nil {
		logger = NewLogger()
	}
	base := []any{
		"event", event,
		"success", success,
	}
	base = append(base, attrs...)
	logger.Info("audit", base...)
}
