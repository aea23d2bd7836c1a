// Package jobs contains the scheduled jobs of GamerMatch.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/infrastructure/external/telegram"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// StatsQuerier is satisfied by *query.GetStatsHandler.
type StatsQuerier interface {
	Handle(ctx context.Context, q query.GetStatsQuery) (*query.StatsDTO, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH STATS
// ══════════════════════════════════════════════════════════════════════════════

// RefreshStatsJob recomputes the operator snapshot so /stats and the admin API
// read a warm cache.
type RefreshStatsJob struct {
	stats  StatsQuerier
	logger *slog.Logger
}

// NewRefreshStatsJob creates a RefreshStatsJob.
func NewRefreshStatsJob(stats StatsQuerier, log *slog.Logger) *RefreshStatsJob {
	return &RefreshStatsJob{stats: stats, logger: logger.OrDefault(log)}
}

func (j *RefreshStatsJob) Name() string { return "refresh_stats" }

func (j *RefreshStatsJob) Run(ctx context.Context) error {
	st, err := j.stats.Handle(ctx, query.GetStatsQuery{Fresh: true})
	if err != nil {
		return fmt.Errorf("refresh_stats: %w", err)
	}
	j.logger.Debug("stats refreshed", "total", st.Total, "matches", st.TotalMatches)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

// Sweeper drops expired entries. Implemented by session.MemoryBackend.
type Sweeper interface {
	Sweep() int
}

// SweepSessionsJob evicts abandoned wizard sessions from process memory.
// Redis expires its own keys, so the job is only registered for the memory backend.
type SweepSessionsJob struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// NewSweepSessionsJob creates a SweepSessionsJob.
func NewSweepSessionsJob(sweeper Sweeper, log *slog.Logger) *SweepSessionsJob {
	return &SweepSessionsJob{sweeper: sweeper, logger: logger.OrDefault(log)}
}

func (j *SweepSessionsJob) Name() string { return "sweep_sessions" }

func (j *SweepSessionsJob) Run(context.Context) error {
	if n := j.sweeper.Sweep(); n > 0 {
		j.logger.Info("expired wizard sessions dropped", "count", n)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY REPORT
// ══════════════════════════════════════════════════════════════════════════════

// MessageSender is satisfied by *telegram.Client.
type MessageSender interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
}

// DailyReportJob sends the operator snapshot to every admin once a day.
type DailyReportJob struct {
	stats  StatsQuerier
	sender MessageSender
	admins []int64
	logger *slog.Logger
}

// NewDailyReportJob creates a DailyReportJob.
func NewDailyReportJob(stats StatsQuerier, sender MessageSender, admins []int64, log *slog.Logger) *DailyReportJob {
	return &DailyReportJob{stats: stats, sender: sender, admins: admins, logger: logger.OrDefault(log)}
}

func (j *DailyReportJob) Name() string { return "daily_report" }

// Run delivers to all admins and reports the joined delivery errors.
func (j *DailyReportJob) Run(ctx context.Context) error {
	if len(j.admins) == 0 {
		return nil
	}

	st, err := j.stats.Handle(ctx, query.GetStatsQuery{Fresh: true})
	if err != nil {
		return fmt.Errorf("daily_report: %w", err)
	}
	text := FormatReport(st)

	var errs []error
	for _, id := range j.admins {
		_, err := j.sender.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:              id,
			Text:                text,
			ParseMode:           "HTML",
			DisableNotification: true,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("daily_report: %w", errors.Join(errs...))
	}
	j.logger.Info("daily report sent", "admins", len(j.admins))
	return nil
}

// FormatReport renders the snapshot as a Telegram HTML message.
func FormatReport(st *query.StatsDTO) string {
	var b strings.Builder
	b.WriteString("📊 <b>Ежедневный отчёт GamerMatch</b>\n\n")
	fmt.Fprintf(&b, "👥 Анкет: <b>%d</b> (активных %d, скрытых %d)\n", st.Total, st.Visible, st.Hidden)
	fmt.Fprintf(&b, "🆕 За сутки: <b>%d</b> (сегодня %d)\n", st.CreatedLast24h, st.CreatedToday)
	fmt.Fprintf(&b, "📸 С фото: %d\n", st.WithAttachments)
	fmt.Fprintf(&b, "❤️ Лайков: %d\n", st.TotalLikes)
	fmt.Fprintf(&b, "🎉 Мэтчей: %d", st.TotalMatches)
	return b.String()
}
