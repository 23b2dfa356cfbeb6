package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Health is a simple liveness endpoint for load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// HealthHandler reports the state of the service's dependencies. Redis and
// AMQP are optional: a nil client or empty URL reports "disabled".
type HealthHandler struct {
	DB      *sql.DB
	Redis   *redis.Client
	AMQPURL string
}

type componentHealth struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Detailed pings each dependency. It answers 503 only when the database is
// down; the optional dependencies degrade the report but not the status.
func (h *HealthHandler) Detailed(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out := map[string]componentHealth{
		"database": probe(func() error { return h.DB.PingContext(ctx) }),
	}
	if h.Redis == nil {
		out["redis"] = componentHealth{Status: "disabled"}
	} else {
		out["redis"] = probe(func() error { return h.Redis.Ping(ctx).Err() })
	}
	if h.AMQPURL == "" {
		out["amqp"] = componentHealth{Status: "disabled"}
	} else {
		out["amqp"] = probe(func() error {
			conn, err := amqp.DialConfig(h.AMQPURL, amqp.Config{Dial: amqp.DefaultDial(2 * time.Second)})
			if err != nil {
				return err
			}
			return conn.Close()
		})
	}

	status := http.StatusOK
	overall := "ok"
	if out["database"].Status != "ok" {
		status, overall = http.StatusServiceUnavailable, "down"
	}
	return c.JSON(status, echo.Map{"status": overall, "components": out})
}

func probe(fn func() error) componentHealth {
	start := time.Now()
	if err := fn(); err != nil {
		return componentHealth{Status: "down", Error: err.Error()}
	}
	return componentHealth{Status: "ok", LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
}
