// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночная очистка истории
// уведомлений и ежечасная уборка устаревших кулдаунов.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/features/ledger"
	"campushub.ru/gamification/internal/notify"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron *cron.Cron

	history *notify.Repository
	ledger  *ledger.Repository

	retentionDays int
	// порог уборки кулдаунов — самый длинный кулдаун таблицы правил
	maxCooldown time.Duration
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(history *notify.Repository, ledgerRepo *ledger.Repository, retentionDays int, maxCooldown time.Duration) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:          cron.New(cron.WithLocation(loc)),
		history:       history,
		ledger:        ledgerRepo,
		retentionDays: retentionDays,
		maxCooldown:   maxCooldown,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ночная очистка истории уведомлений в 03:00 по Москве
	s.cron.AddFunc("0 3 * * *", func() {
		log.Info("[CRON] Очистка истории уведомлений")
		deleted, err := s.history.PurgeOlderThan(ctx, s.retentionDays)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка очистки истории")
			return
		}
		log.WithField("deleted", deleted).Info("[CRON] История уведомлений очищена")
	})

	// Уборка мёртвых кулдаунов каждый час.
	// Запись старше максимального кулдауна уже ни на что не влияет.
	s.cron.AddFunc("0 * * * *", func() {
		log.Debug("[CRON] Уборка кулдаунов")
		deleted, err := s.ledger.DeleteStaleCooldowns(ctx, int64(s.maxCooldown.Seconds()))
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка уборки кулдаунов")
			return
		}
		if deleted > 0 {
			log.WithField("deleted", deleted).Debug("[CRON] Кулдауны убраны")
		}
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
