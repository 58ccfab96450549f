package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/middleware"
	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/neogan74/auditledger/internal/store"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Uptime    string       `json:"uptime"`
	Timestamp time.Time    `json:"timestamp"`
	Audits    AuditHealth  `json:"audits"`
	System    SystemHealth `json:"system"`
}

type AuditHealth struct {
	Total    int                  `json:"total"`
	ByStatus map[store.Status]int `json:"by_status"`
}

type SystemHealth struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_bytes"`
	MemorySys   uint64 `json:"memory_sys_bytes"`
	NumGC       uint32 `json:"num_gc"`
}

// HealthHandler handles health check operations
type HealthHandler struct {
	engine    persistence.Engine
	dir       directory.Directory
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine persistence.Engine, dir directory.Directory, version string) *HealthHandler {
	return &HealthHandler{
		engine:    engine,
		dir:       dir,
		startTime: time.Now(),
		version:   version,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	audits := AuditHealth{ByStatus: make(map[store.Status]int)}
	err := h.engine.View(func(tx persistence.Txn) error {
		list, err := store.ListAudits(tx, store.AuditFilter{})
		if err != nil {
			return err
		}
		audits.Total = len(list)
		for _, a := range list {
			audits.ByStatus[a.Status]++
		}
		return nil
	})

	status := "healthy"
	if err != nil {
		middleware.GetLogger(c).Error("Health check could not read audits", logger.Error(err))
		status = "degraded"
	}

	return c.JSON(HealthStatus{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now(),
		Audits:    audits,
		System: SystemHealth{
			Goroutines:  runtime.NumGoroutine(),
			MemoryAlloc: m.Alloc,
			MemorySys:   m.Sys,
			NumGC:       m.NumGC,
		},
	})
}

// Liveness is a simple liveness check
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness checks the storage engine and, for remote catalogs, the asset
// directory.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	checks := fiber.Map{}
	ready := true

	if err := h.engine.View(func(persistence.Txn) error { return nil }); err != nil {
		checks["storage"] = err.Error()
		ready = false
	} else {
		checks["storage"] = "ok"
	}

	if pinger, ok := h.dir.(directory.Pinger); ok {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			checks["directory"] = err.Error()
			ready = false
		} else {
			checks["directory"] = "ok"
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "not_ready",
			"checks":    checks,
			"timestamp": time.Now(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "ready",
		"checks":    checks,
		"timestamp": time.Now(),
	})
}
