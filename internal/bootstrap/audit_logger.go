package bootstrap

import "context"

// AuditLog records an operational event worth keeping outside the regular
// request logs (startup, shutdown, config problems).
type AuditLog struct {
	Action  string
	Message string
	Meta    map[string]any
}

type AuditLogger interface {
	Log(ctx context.Context, entry AuditLog)
}
