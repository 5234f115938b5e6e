package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Dependency is an additional backing service reported by the health endpoint.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// CheckDependencies pings each dependency and returns a name -> status map
// along with whether all of them answered.
func CheckDependencies(ctx context.Context, deps []Dependency) (map[string]string, bool) {
	results := make(map[string]string, len(deps))
	healthy := true
	for _, d := range deps {
		if err := d.Ping(ctx); err != nil {
			results[d.Name] = err.Error()
			healthy = false
			continue
		}
		results[d.Name] = "ok"
	}
	return results, healthy
}

// HealthHandler reports the database and any extra dependencies.
func HealthHandler(pool *pgxpool.Pool, extra ...Dependency) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		deps := append([]Dependency{{Name: "postgres", Ping: pool.Ping}}, extra...)
		results, healthy := CheckDependencies(ctx, deps)

		body := map[string]interface{}{
			"status":       "healthy",
			"dependencies": results,
			"pool":         GetPoolStats(pool),
		}
		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
