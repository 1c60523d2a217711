package app

import (
	"context"
	"log/slog"
	"sync"

	"chatvault/pkg/broadcast"
	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
	"chatvault/pkg/progress"
	"chatvault/pkg/storage"
	"chatvault/pkg/store"
	"chatvault/pkg/summarize"
)

// Config wires the app's collaborators.
type Config struct {
	Store      store.Store
	Objects    storage.ObjectStore
	Progress   progress.Store
	Registry   *chat.Registry
	Dispatcher *broadcast.Dispatcher
	Summarizer *summarize.Summarizer
	StagingDir string
	ExportRoot string
}

// App owns the harvester's task pipelines: media downloads, history dumps,
// broadcasts and summaries.
type App struct {
	store      store.Store
	objects    storage.ObjectStore
	progress   progress.Store
	registry   *chat.Registry
	dispatcher *broadcast.Dispatcher
	summarizer *summarize.Summarizer
	stagingDir string
	exportRoot string

	tasksMu sync.Mutex
	cancels map[string]context.CancelFunc
}

// New constructs the app core.
func New(cfg Config) *App {
	return &App{
		store:      cfg.Store,
		objects:    cfg.Objects,
		progress:   cfg.Progress,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		summarizer: cfg.Summarizer,
		stagingDir: cfg.StagingDir,
		exportRoot: cfg.ExportRoot,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// GetSession looks up a session and reports whether it exists and is active.
func (a *App) GetSession(id int64) (domain.Session, bool, error) {
	sess, ok, err := a.store.GetSession(id)
	if err != nil || !ok {
		return domain.Session{}, ok, err
	}
	return sess, true, nil
}

// report pushes one progress tick, logging instead of failing on error: a
// lost tick must never abort a running pipeline.
func (a *App) report(ctx context.Context, taskID, phase string, current, total int, status string) {
	p := domain.TaskProgress{
		Phase:   phase,
		Current: current,
		Total:   total,
		Percent: progress.Percent(current, total),
		Status:  status,
	}
	if err := a.progress.Report(ctx, taskID, p); err != nil {
		slog.Debug("progress report failed", "task", taskID, "error", err)
	}
}

func (a *App) shouldTick(index, total int) bool {
	return progress.ShouldReport(index, total)
}
