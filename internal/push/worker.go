// Package push — воркер доставки уведомлений в Telegram.
// Потребляет сообщения из стрима NOTIFY и доставляет их в привязанный
// чат получателя. Это внешний относительно движка коллаборатор:
// его сбои видны только в его логах и никогда — вызывающему фасада.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/features/members"
	"campushub.ru/gamification/internal/messaging"
	"campushub.ru/gamification/internal/notify"
)

// имя очереди подписчиков: несколько воркеров делят стрим
const queueGroup = "push-workers"

const sendTimeout = 10 * time.Second

// Worker доставляет уведомления получателям.
type Worker struct {
	bot     *telego.Bot
	members *members.Repository
}

// NewWorker создаёт воркер доставки.
func NewWorker(bot *telego.Bot, membersRepo *members.Repository) *Worker {
	return &Worker{bot: bot, members: membersRepo}
}

// Subscribe подписывает воркер на стрим уведомлений.
//
// Семантика подтверждений:
//   - битый payload — Term (повтор бессмыслен)
//   - получатель без привязанного чата — Ack (доставлять некуда)
//   - сбой Telegram или БД — Nak (повторим позже)
func (w *Worker) Subscribe(ctx context.Context, js nats.JetStreamContext) (*nats.Subscription, error) {
	sub, err := js.QueueSubscribe(messaging.NotifySubjects, queueGroup, func(msg *nats.Msg) {
		w.handle(ctx, msg)
	}, nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("ошибка подписки на %s: %w", messaging.NotifySubjects, err)
	}
	log.WithField("subject", messaging.NotifySubjects).Info("Воркер доставки слушает стрим")
	return sub, nil
}

func (w *Worker) handle(ctx context.Context, msg *nats.Msg) {
	var m notify.Message
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		log.WithError(err).Warn("Битое уведомление отброшено")
		_ = msg.Term()
		return
	}

	logger := log.WithFields(log.Fields{
		"recipient_id": m.RecipientID,
		"category":     m.Category,
	})

	handleCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	member, err := w.members.GetByID(handleCtx, m.RecipientID)
	if err != nil {
		logger.WithError(err).Warn("Получатель не найден, повторим позже")
		_ = msg.Nak()
		return
	}
	if member.TelegramChatID == nil {
		// Чат не привязан — доставлять некуда, и завтра не появится
		logger.Debug("no linked chat, dropping")
		_ = msg.Ack()
		return
	}

	_, err = w.bot.SendMessage(handleCtx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: *member.TelegramChatID},
		Text:   m.Title + "\n\n" + m.Body,
	})
	if err != nil {
		logger.WithError(err).Warn("Доставка в Telegram не удалась, повторим позже")
		_ = msg.Nak()
		return
	}

	logger.Debug("push delivered")
	_ = msg.Ack()
}
