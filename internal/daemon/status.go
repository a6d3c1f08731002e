package daemon

import (
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/repodeploy/internal/config"
	"git.home.luguber.info/inful/repodeploy/internal/engine"
	"git.home.luguber.info/inful/repodeploy/internal/fsutil"
	"git.home.luguber.info/inful/repodeploy/internal/source"
	"git.home.luguber.info/inful/repodeploy/internal/versionstore"
)

// Snapshot describes the deployment state on disk.
type Snapshot struct {
	Identity     string `json:"identity" yaml:"identity"`
	Repository   string `json:"repository" yaml:"repository"`
	Kind         string `json:"kind" yaml:"kind"`
	Directory    string `json:"directory" yaml:"directory"`
	ActivePath   string `json:"active_path" yaml:"active_path"`
	ActiveTarget string `json:"active_target,omitempty" yaml:"active_target,omitempty"`
	Linked       bool   `json:"linked" yaml:"linked"`
	Version      string `json:"version,omitempty" yaml:"version,omitempty"`
	VersionFile  string `json:"version_file" yaml:"version_file"`
}

// CycleSummary is the public view of an engine.Result.
type CycleSummary struct {
	ID       string `json:"id" yaml:"id"`
	Outcome  string `json:"outcome" yaml:"outcome"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	Previous string `json:"previous,omitempty" yaml:"previous,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Duration string `json:"duration" yaml:"duration"`
}

// StatusReport is served on /status.
type StatusReport struct {
	Status    Status        `json:"status"`
	StartTime time.Time     `json:"start_time"`
	Uptime    string        `json:"uptime"`
	NextCheck *time.Time    `json:"next_check,omitempty"`
	Snapshot  Snapshot      `json:"deployment"`
	LastCycle *CycleSummary `json:"last_cycle,omitempty"`
}

// Inspect reads the deployment state described by cfg without touching it.
func Inspect(cfg *config.Config) (Snapshot, error) {
	snap := Snapshot{
		Identity:    cfg.Identity,
		Repository:  cfg.Repository,
		Directory:   cfg.Directory,
		ActivePath:  cfg.ActiveDir(),
		VersionFile: cfg.VersionFile(),
	}
	if loc, err := source.Parse(cfg.Repository); err == nil {
		snap.Kind = loc.Kind.String()
	}

	if fsutil.IsSymlink(snap.ActivePath) {
		snap.Linked = true
		if target, err := filepath.EvalSymlinks(snap.ActivePath); err == nil {
			snap.ActiveTarget = target
		} else if target, err := os.Readlink(snap.ActivePath); err == nil {
			snap.ActiveTarget = target
		}
	}

	v, found, err := versionstore.New(snap.VersionFile).Read()
	if err != nil {
		return snap, err
	}
	if found {
		snap.Version = v
	}
	return snap, nil
}

// Summarize converts a cycle result for display.
func Summarize(res engine.Result) CycleSummary {
	sum := CycleSummary{
		ID:       res.ID,
		Outcome:  string(res.Outcome),
		Version:  string(res.Version),
		Previous: string(res.Previous),
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
	if res.Err != nil {
		sum.Error = res.Err.Error()
	}
	return sum
}

// Report assembles the current status.
func (d *Daemon) Report() StatusReport {
	d.mu.RLock()
	cfg, last, sched, jobID, start := d.cfg, d.last, d.scheduler, d.jobID, d.startTime
	d.mu.RUnlock()

	report := StatusReport{Status: d.GetStatus(), StartTime: start}
	if !start.IsZero() {
		report.Uptime = time.Since(start).Round(time.Second).String()
	}
	if sched != nil {
		if next, ok := sched.NextRun(jobID); ok && !next.IsZero() {
			report.NextCheck = &next
		}
	}
	report.Snapshot, _ = Inspect(cfg)
	if last != nil {
		sum := Summarize(*last)
		report.LastCycle = &sum
	}
	return report
}
