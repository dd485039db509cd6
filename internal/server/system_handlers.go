package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/marginwatch/internal/database"
	"github.com/aristath/marginwatch/internal/quotecache"
	"github.com/aristath/marginwatch/internal/reliability"
	"github.com/aristath/marginwatch/internal/scheduler"
	"github.com/aristath/marginwatch/internal/stream"
)

// SystemHandlers handles monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	db          *database.DB
	refreshJob  *scheduler.RefreshCycleJob
	backups     *reliability.BackupService // nil when backups are not configured
	quotes      *quotecache.Cache
	streamHub   *stream.Hub
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	dataDir string,
	db *database.DB,
	refreshJob *scheduler.RefreshCycleJob,
	backups *reliability.BackupService,
	quotes *quotecache.Cache,
	streamHub *stream.Hub,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		db:          db,
		refreshJob:  refreshJob,
		backups:     backups,
		quotes:      quotes,
		streamHub:   streamHub,
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	UptimeSeconds  int64                  `json:"uptime_seconds"`
	CPUPercent     float64                `json:"cpu_percent"`
	MemoryPercent  float64                `json:"memory_percent"`
	MemoryUsedMB   float64                `json:"memory_used_mb"`
	WatchedStocks  int                    `json:"watched_stocks"`
	CachedQuotes   int                    `json:"cached_quotes"`
	StreamClients  int                    `json:"stream_clients"`
	LastCycle      *scheduler.CycleResult `json:"last_cycle,omitempty"`
	LastCycleAt    string                 `json:"last_cycle_at,omitempty"`
	BackupsEnabled bool                   `json:"backups_enabled"`
}

// HandleStatus returns system status
// GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		UptimeSeconds:  int64(time.Since(h.startupTime).Seconds()),
		CachedQuotes:   h.quotes.Len(),
		StreamClients:  h.streamHub.ClientCount(),
		BackupsEnabled: h.backups != nil,
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		response.CPUPercent = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		response.MemoryPercent = memStat.UsedPercent
		response.MemoryUsedMB = float64(memStat.Used) / 1024 / 1024
	}

	if err := h.db.QueryRow("SELECT COUNT(*) FROM watched_stocks").Scan(&response.WatchedStocks); err != nil {
		h.log.Error().Err(err).Msg("Failed to count watched stocks")
	}

	if result, lastRun := h.refreshJob.LastResult(); result != nil {
		response.LastCycle = result
		response.LastCycleAt = lastRun.UTC().Format(time.RFC3339)
	}

	h.writeJSON(w, response)
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	MainDB      DBInfo  `json:"main_db"`
	DailyDBs    int     `json:"daily_dbs"`
	TotalSizeMB float64 `json:"total_size_mb"`
	LastChecked string  `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Path     string  `json:"path"`
	SizeMB   float64 `json:"size_mb"`
	RowCount int     `json:"row_count"`
}

// HandleDatabaseStats returns database statistics
// GET /api/system/db-stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{
		MainDB:      DBInfo{Path: h.db.Path()},
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}

	if info, err := os.Stat(h.db.Path()); err == nil {
		response.MainDB.SizeMB = float64(info.Size()) / 1024 / 1024
		response.TotalSizeMB += response.MainDB.SizeMB
	}
	if err := h.db.QueryRow("SELECT COUNT(*) FROM price_history").Scan(&response.MainDB.RowCount); err != nil {
		h.log.Error().Err(err).Msg("Failed to count price history rows")
	}

	dailyDir := filepath.Join(h.dataDir, "daily")
	if entries, err := os.ReadDir(dailyDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
				continue
			}
			response.DailyDBs++
			if info, err := entry.Info(); err == nil {
				response.TotalSizeMB += float64(info.Size()) / 1024 / 1024
			}
		}
	}

	h.writeJSON(w, response)
}

// HandleTriggerRefresh runs a refresh cycle immediately
// POST /api/system/refresh
func (h *SystemHandlers) HandleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("Manual refresh cycle triggered")

	result, err := h.refreshJob.TriggerNow()
	if errors.Is(err, scheduler.ErrCycleRunning) {
		http.Error(w, "Refresh cycle already running", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Manual refresh cycle failed")
		http.Error(w, "Refresh cycle failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"status": "success",
		"result": result,
	})
}

// HandleTriggerBackup creates and uploads a backup immediately
// POST /api/system/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backups are not configured", http.StatusNotImplemented)
		return
	}

	h.log.Info().Msg("Manual backup triggered")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	if err := h.backups.CreateAndUpload(ctx); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		http.Error(w, "Backup failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{"status": "success"})
}

// HandleListBackups lists stored backups
// GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backups are not configured", http.StatusNotImplemented)
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, backups)
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
