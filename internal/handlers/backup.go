package handlers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/middleware"
	"github.com/neogan74/auditledger/internal/persistence"
)

const backupPrefix = "auditledger-backup-"

// BackupHandler handles backup operations
type BackupHandler struct {
	engine persistence.Engine
	dir    string
	log    logger.Logger
}

// BackupFile describes one snapshot in the backup directory.
type BackupFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(engine persistence.Engine, backupDir string, log logger.Logger) *BackupHandler {
	return &BackupHandler{
		engine: engine,
		dir:    backupDir,
		log:    log,
	}
}

// CreateBackup snapshots audits, items and ledger chains.
func (h *BackupHandler) CreateBackup(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	timestamp := time.Now().UTC().Format("20060102-150405")
	backupPath := filepath.Join(h.dir, fmt.Sprintf("%s%s.bak", backupPrefix, timestamp))

	if err := h.engine.Backup(backupPath); err != nil {
		log.Error("Failed to create backup", logger.Error(err))
		return middleware.InternalServerError(c, "Failed to create backup")
	}

	log.Info("Backup created successfully",
		logger.String("path", backupPath),
		logger.ActorID(actorOf(c)))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Backup created successfully",
		"backup_path": backupPath,
		"timestamp":   timestamp,
	})
}

// ListBackups lists snapshot files, newest first.
func (h *BackupHandler) ListBackups(c *fiber.Ctx) error {
	entries, err := os.ReadDir(h.dir)
	if errors.Is(err, os.ErrNotExist) {
		return c.JSON(fiber.Map{"backups": []BackupFile{}, "count": 0})
	}
	if err != nil {
		middleware.GetLogger(c).Error("Failed to read backup directory", logger.Error(err))
		return middleware.InternalServerError(c, "Failed to list backups")
	}

	backups := []BackupFile{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupFile{
			Name:      entry.Name(),
			Path:      filepath.Join(h.dir, entry.Name()),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	slices.SortFunc(backups, func(a, b BackupFile) int {
		return strings.Compare(b.Name, a.Name)
	})

	return c.JSON(fiber.Map{"backups": backups, "count": len(backups)})
}
