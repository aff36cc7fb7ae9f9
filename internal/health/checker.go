package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// Checker defines the interface for checking a dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PostgresChecker adapts pgxpool.Pool to Checker.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

func (p *PostgresChecker) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Component is a named dependency.
type Component struct {
	Name    string
	Checker Checker
}

// Report is the outcome of one health check.
type Report struct {
	Status     string
	Components map[string]string
}

// Monitor checks the storage backend and any other registered dependency.
type Monitor struct {
	components []Component
	timeout    time.Duration
	logger     *zap.Logger
}

// NewMonitor creates a monitor; each ping is bounded by timeout.
func NewMonitor(timeout time.Duration, logger *zap.Logger, components ...Component) *Monitor {
	return &Monitor{components: components, timeout: timeout, logger: logger}
}

// Check pings every component. Any failure degrades the overall status.
func (m *Monitor) Check(ctx context.Context) Report {
	report := Report{Status: StatusOK, Components: make(map[string]string, len(m.components))}

	for _, c := range m.components {
		pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.Checker.Ping(pingCtx)

		cancel()

		if err != nil {
			m.logger.Warn("dependency unhealthy", zap.String("component", c.Name), zap.Error(err))

			report.Components[c.Name] = Unhealthy
			report.Status = StatusDegraded

			continue
		}

		report.Components[c.Name] = Healthy
	}

	return report
}
