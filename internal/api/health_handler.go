package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/beneficiary-import/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the service.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single dependency.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// ArchiveProbe checks the upload archive, usually an *archive.S3Archiver.
type ArchiveProbe interface {
	Ping(ctx context.Context) error
	Bucket() string
}

// HealthChecker reports on the database, the import schema, Redis and the
// archive bucket.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	archive     ArchiveProbe
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
// Any dependency can be nil; its check then reports "not configured".
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, archive ArchiveProbe) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		archive:     archive,
		startTime:   time.Now(),
	}
}

const (
	healthVersion = "1.0.0"
	notConfigured = "not configured"
)

// HandleHealth returns the status of every component. It always answers 200;
// the body carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 when the service cannot take imports.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	probes := map[string]func(context.Context) ComponentCheck{
		"database": hc.checkDatabase,
		"schema":   hc.checkSchema,
		"redis":    hc.checkRedis,
		"archive":  hc.checkArchive,
	}

	ch := make(chan result, len(probes))
	for name, probe := range probes {
		name, probe := name, probe
		go func() { ch <- result{name, probe(ctx)} }()
	}

	checks := make(map[string]ComponentCheck, len(probes))
	for range probes {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return timedCheck(time.Since(start), time.Second, err, "connected")
}

// checkSchema confirms the migrations have created the import tables.
func (hc *HealthChecker) checkSchema(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	queryCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	var ready bool
	err := hc.db.QueryRowContext(queryCtx, `
		SELECT to_regclass('beneficiaries') IS NOT NULL
		   AND to_regclass('enrollment_links') IS NOT NULL
		   AND to_regclass('beneficiary_imports') IS NOT NULL
	`).Scan(&ready)
	latency := time.Since(start)

	switch {
	case err != nil:
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("schema check failed: %v", err)}
	case !ready:
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: "import tables missing, run migrations"}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "import tables present"}
}

// checkRedis pings the lock store. Without Redis imports fall back to
// Postgres advisory locks, so a missing client is not an error.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	return timedCheck(time.Since(start), 500*time.Millisecond, err, "connected")
}

func (hc *HealthChecker) checkArchive(ctx context.Context) ComponentCheck {
	if hc.archive == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	s3Ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.archive.Ping(s3Ctx)
	return timedCheck(time.Since(start), 2*time.Second, err, fmt.Sprintf("bucket %q accessible", hc.archive.Bucket()))
}

// timedCheck turns a probe outcome into a ComponentCheck, marking it degraded
// when it answered slower than slow.
func timedCheck(latency, slow time.Duration, err error, okMsg string) ComponentCheck {
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("check failed: %v", err)}
	}
	if latency > slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: okMsg}
}

// determineOverallStatus derives the aggregate status:
//   - "unhealthy" if the database or the schema is down
//   - "degraded" if any check is degraded or a configured optional one is down
//   - "healthy" otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	for _, critical := range []string{"database", "schema"} {
		if c, ok := checks[critical]; ok && c.Status == "down" && c.Message != notConfigured {
			return "unhealthy"
		}
	}
	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != notConfigured {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
