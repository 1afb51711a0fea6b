// Package main — точка входа воркера доставки push-уведомлений.
// Подписывается на стрим NOTIFY и доставляет сообщения в Telegram.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/config"
	"campushub.ru/gamification/internal/db/postgres"
	"campushub.ru/gamification/internal/features/members"
	"campushub.ru/gamification/internal/messaging"
	"campushub.ru/gamification/internal/push"
)

func main() {
	setupLogging()

	log.Info("=== Воркер доставки запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN обязателен для воркера доставки")
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// БД нужна только для привязок получателей к чатам
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось подключиться к БД")
	}
	defer pool.Close()

	bot, err := telego.NewBot(cfg.TelegramBotToken)
	if err != nil {
		log.WithError(err).Fatal("Не удалось создать Telegram-клиент")
	}

	natsClient, err := messaging.ConnectWithRetry(cfg.NATSURL, 30*time.Second)
	if err != nil {
		log.WithError(err).Fatal("Не удалось подключиться к NATS")
	}
	defer natsClient.Close()

	worker := push.NewWorker(bot, members.NewRepository(pool))
	sub, err := worker.Subscribe(ctx, natsClient.JS)
	if err != nil {
		log.WithError(err).Fatal("Не удалось подписаться на стрим уведомлений")
	}
	defer sub.Unsubscribe()

	log.Info("=== Воркер доставки готов к работе ===")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Infof("Получен сигнал %s, останавливаемся...", sig)

	cancel()

	log.Info("=== Воркер доставки остановлен ===")
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
