// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, лимитер,
// диспетчер уведомлений и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/api"
	"campushub.ru/gamification/internal/config"
	"campushub.ru/gamification/internal/db/postgres"
	"campushub.ru/gamification/internal/engine"
	"campushub.ru/gamification/internal/features/clubs"
	"campushub.ru/gamification/internal/features/events"
	"campushub.ru/gamification/internal/features/ledger"
	"campushub.ru/gamification/internal/features/members"
	"campushub.ru/gamification/internal/jobs"
	"campushub.ru/gamification/internal/messaging"
	"campushub.ru/gamification/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	Engine     *engine.Engine
	Handler    *api.Handler
	Scheduler  *jobs.Scheduler
	Dispatcher *notify.Dispatcher
	Limiter    engine.Limiter
	DB         *pgxpool.Pool
	NATS       *messaging.Client
}

// nopNotifier используется при выключенных уведомлениях:
// движок работает, исходящих сообщений нет.
type nopNotifier struct{}

func (nopNotifier) NotifyAction(notify.Notice) {}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Репозитории ===
	memberRepo := members.NewRepository(pool)
	clubRepo := clubs.NewRepository(pool)
	eventRepo := events.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	notifyRepo := notify.NewRepository(pool)

	// === 3. Сервисы ===
	memberService := members.NewService(memberRepo)
	ledgerService := ledger.NewService(ledgerRepo)

	// === 4. Таблица начислений и лимитер ===
	registry := engine.NewRegistry()

	var limiter engine.Limiter
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendMemory:
		limiter = engine.NewMemoryLimiter(registry.MaxCooldown())
	default:
		limiter = engine.NewPGLimiter(pool)
	}
	log.WithField("backend", cfg.RateLimitBackend).Info("Лимитер повторных действий готов")

	// === 5. Уведомления ===
	var (
		notifier   engine.Notifier = nopNotifier{}
		dispatcher *notify.Dispatcher
		natsClient *messaging.Client
	)
	if cfg.FeatureNotifyEnabled {
		natsClient, err = messaging.ConnectWithRetry(cfg.NATSURL, 30*time.Second)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к NATS: %w", err)
		}

		synth := notify.NewSynthesizer(memberRepo, clubRepo, eventRepo)
		dispatcher = notify.NewDispatcher(
			synth,
			notifyRepo,
			messaging.JetStreamPublisher{JS: natsClient.JS},
			cfg.NotifyQueueSize,
			cfg.NotifyWorkers,
		)
		notifier = dispatcher
	} else {
		log.Warn("Уведомления отключены конфигурацией")
	}

	// === 6. Движок начислений ===
	eng := engine.New(registry, limiter, memberRepo, ledgerRepo, notifier)

	// === 7. HTTP-обработчик ===
	handler := api.NewHandler(eng, memberService, ledgerService,
		clubRepo, eventRepo, notifyRepo, cfg.AdminTokenHash)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(notifyRepo, ledgerRepo,
		cfg.NotifyRetentionDays, registry.MaxCooldown())

	return &App{
		Engine:     eng,
		Handler:    handler,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
		Limiter:    limiter,
		DB:         pool,
		NATS:       natsClient,
	}, nil
}

// Close останавливает фоновые компоненты в обратном порядке сборки.
func (a *App) Close() {
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	if a.NATS != nil {
		a.NATS.Close()
	}
	a.DB.Close()
}

// runMigrations применяет схему движка по порядку версий.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return postgres.Migrate(ctx, pool, []postgres.Migration{
		{Version: 1, SQL: migration001Members},
		{Version: 2, SQL: migration002Clubs},
		{Version: 3, SQL: migration003Events},
		{Version: 4, SQL: migration004Activities},
		{Version: 5, SQL: migration005Cooldowns},
		{Version: 6, SQL: migration006Notifications},
	})
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id TEXT PRIMARY KEY,
    username VARCHAR(255),
    display_name VARCHAR(255) NOT NULL DEFAULT '',
    is_banned BOOLEAN DEFAULT FALSE,
    total_points BIGINT DEFAULT 0,
    telegram_chat_id BIGINT,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
CREATE INDEX IF NOT EXISTS idx_members_total_points ON members(total_points DESC);
`

var migration002Clubs = `
CREATE TABLE IF NOT EXISTS clubs (
    id TEXT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    owner_id TEXT REFERENCES members(id),
    total_points BIGINT DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_clubs_owner_id ON clubs(owner_id);
`

var migration003Events = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    club_id TEXT REFERENCES clubs(id),
    title VARCHAR(255) NOT NULL,
    total_points BIGINT DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_club_id ON events(club_id);
`

var migration004Activities = `
CREATE TABLE IF NOT EXISTS activities (
    id TEXT PRIMARY KEY,
    actor_id TEXT NOT NULL REFERENCES members(id),
    action VARCHAR(64) NOT NULL,
    target_id TEXT,
    actor_delta BIGINT DEFAULT 0,
    target_delta BIGINT DEFAULT 0,
    collective_delta BIGINT DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activities_actor_id ON activities(actor_id);
CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
-- activity_id без FK: маркер ставится раньше записи аудита
-- внутри одной транзакции
CREATE TABLE IF NOT EXISTS processed_actions (
    idempotency_key TEXT PRIMARY KEY,
    activity_id TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
`

var migration005Cooldowns = `
CREATE TABLE IF NOT EXISTS cooldowns (
    actor_id TEXT NOT NULL,
    action VARCHAR(64) NOT NULL,
    target_id TEXT NOT NULL DEFAULT '',
    last_invoked_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (actor_id, action, target_id)
);
CREATE INDEX IF NOT EXISTS idx_cooldowns_last_invoked ON cooldowns(last_invoked_at);
`

var migration006Notifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id BIGSERIAL PRIMARY KEY,
    recipient_id TEXT NOT NULL,
    category VARCHAR(32) NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    metadata JSONB,
    delivery_status VARCHAR(16) DEFAULT 'queued',
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at);
`
