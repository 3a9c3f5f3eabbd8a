package simlog

import (
	"context"
	"log/slog"
)

// SlogLogger renders events through a standard structured logger.
// Phase starts and ends log at info, retries and rejections at warn,
// everything else at debug.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlog wraps l. A nil l falls back to slog.Default.
func NewSlog(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Log(ev Event) {
	level := slog.LevelDebug
	switch ev.Phase {
	case PhaseStart, PhaseEnd:
		level = slog.LevelInfo
	case PhaseRetry, PhaseReject:
		level = slog.LevelWarn
	}
	if ev.Phase == PhaseEnd && !ev.Converged {
		level = slog.LevelWarn
	}
	if !s.l.Enabled(context.Background(), level) {
		return
	}

	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("analysis", ev.Analysis),
		slog.String("phase", ev.Phase),
	)
	if ev.Iter > 0 {
		attrs = append(attrs, slog.Int("iter", ev.Iter))
	}
	if ev.Gmin > 0 {
		attrs = append(attrs, slog.Float64("gmin", ev.Gmin))
	}
	if ev.SimTime > 0 {
		attrs = append(attrs, slog.Float64("sim_time", ev.SimTime))
	}
	if ev.Step > 0 {
		attrs = append(attrs, slog.Float64("step", ev.Step))
	}
	if ev.Freq > 0 {
		attrs = append(attrs, slog.Float64("freq", ev.Freq))
	}
	if ev.Sweep != 0 {
		attrs = append(attrs, slog.Float64("sweep", ev.Sweep))
	}
	if ev.Phase == PhaseEnd {
		attrs = append(attrs, slog.Bool("converged", ev.Converged))
	}
	if ev.Detail != "" {
		attrs = append(attrs, slog.String("detail", ev.Detail))
	}
	s.l.LogAttrs(context.Background(), level, "engine", attrs...)
}
