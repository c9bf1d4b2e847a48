package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a service with a start/stop lifecycle and a health check.
// A dependency injection container is one: starting it verifies every
// registration and stopping it disposes the instances it tracks.
type Component interface {
	// Name returns the unique name of the component within a Group.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description is a short self-report of a component, used in startup logs.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component, e.g. "container".
	Type string
	// Details is a one-liner such as "12 registrations, 3 scopes".
	Details string
}

// Describable is optionally implemented by Components. A Group logs the
// description of each component it starts.
type Describable interface {
	Describe() Description
}
