package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/trivault/trivault/internal/database"
	"github.com/trivault/trivault/internal/modules/settings"
	"github.com/trivault/trivault/internal/reliability"
	"github.com/trivault/trivault/internal/scheduler"
)

// SystemHandlers exposes process and database diagnostics
type SystemHandlers struct {
	databases map[string]*database.DB
	health    *reliability.DatabaseHealthService
	sched     *scheduler.Scheduler
	settings  *settings.Repository
	startTime time.Time
	log       zerolog.Logger

	backupJob      scheduler.Job
	maintenanceJob scheduler.Job
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(
	databases map[string]*database.DB,
	health *reliability.DatabaseHealthService,
	sched *scheduler.Scheduler,
	settingsRepo *settings.Repository,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		databases: databases,
		health:    health,
		sched:     sched,
		settings:  settingsRepo,
		startTime: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// SetJobs registers jobs that can be triggered manually
func (h *SystemHandlers) SetJobs(backup, maintenance scheduler.Job) {
	h.backupJob = backup
	h.maintenanceJob = maintenance
}

// HandleSystemInfo processes GET /info
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		info["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		info["memory_percent"] = memStat.UsedPercent
		info["memory_used_bytes"] = memStat.Used
	}
	if hostInfo, err := host.Info(); err == nil {
		info["hostname"] = hostInfo.Hostname
		info["os"] = hostInfo.OS
		info["platform"] = hostInfo.Platform
	}

	if h.settings != nil {
		if all, err := h.settings.GetAll(); err == nil {
			jobs := make(map[string]string)
			for key, value := range all {
				if name, ok := strings.CutPrefix(key, "last_run_"); ok {
					jobs[name] = value
				}
			}
			if len(jobs) > 0 {
				info["job_last_runs"] = jobs
			}
		}
	}

	h.writeJSON(w, http.StatusOK, info)
}

// HandleDatabaseStats processes GET /databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{}, len(h.databases))
	for name, db := range h.databases {
		s, err := db.GetStats()
		if err != nil {
			stats[name] = map[string]string{"error": err.Error()}
			continue
		}
		stats[name] = map[string]interface{}{
			"size_bytes":     s.SizeBytes,
			"wal_size_bytes": s.WALSizeBytes,
			"page_count":     s.PageCount,
			"page_size":      s.PageSize,
			"freelist_count": s.FreelistCount,
		}
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// HandleDatabaseHealth processes GET /databases/health
func (h *SystemHandlers) HandleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	reports := h.health.CheckAll(ctx)

	healthy := true
	for _, report := range reports {
		if !report.Healthy {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]interface{}{
		"healthy":   healthy,
		"databases": reports,
	})
}

// HandleTriggerBackup processes POST /backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backupJob == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Backup job not configured")
		return
	}

	if err := h.sched.RunNow(h.backupJob); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "backup_completed"})
}

// HandleTriggerMaintenance processes POST /maintenance
func (h *SystemHandlers) HandleTriggerMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.maintenanceJob == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Maintenance job not configured")
		return
	}

	if err := h.sched.RunNow(h.maintenanceJob); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "maintenance_completed"})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
