package health

import "context"

// DBPinger checks vector store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an upstream collaborator's availability.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
