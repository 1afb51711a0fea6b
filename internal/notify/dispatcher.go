// Package notify — dispatcher.go рассылает уведомления лучшими усилиями.
// Исходы действий складываются в буферизованный канал и обрабатываются
// воркерами: синтез, запись истории, публикация во внешний шлюз доставки.
// Ни один из шагов не блокирует и не роняет путь запрос-ответ движка;
// откат уже зафиксированного начисления невозможен в принципе.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// SubjectPrefix — префикс сабжекта шлюза доставки.
// Полный сабжект: notify.push.<recipientId>.
const SubjectPrefix = "notify.push."

// Сколько времени даём на обработку одного исхода.
const noticeTimeout = 5 * time.Second

// HistoryStore пишет запись истории уведомления.
type HistoryStore interface {
	Insert(ctx context.Context, msg Message, status string) error
}

// Publisher публикует сообщение во внешний шлюз доставки.
type Publisher interface {
	Publish(subject string, payload []byte) error
}

// Dispatcher — асинхронный раздатчик уведомлений.
type Dispatcher struct {
	synth     *Synthesizer
	history   HistoryStore
	publisher Publisher

	queue chan Notice
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewDispatcher создаёт раздатчик и запускает воркеры.
// history и publisher могут быть nil (например, при выключенных
// уведомлениях в конфиге) — соответствующий шаг просто пропускается.
func NewDispatcher(synth *Synthesizer, history HistoryStore, publisher Publisher, queueSize, workers int) *Dispatcher {
	d := &Dispatcher{
		synth:     synth,
		history:   history,
		publisher: publisher,
		queue:     make(chan Notice, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// NotifyAction ставит исход действия в очередь рассылки.
// Никогда не блокирует: при переполненной очереди исход отбрасывается
// с предупреждением — потерянное уведомление дешевле медленного ответа.
func (d *Dispatcher) NotifyAction(n Notice) {
	select {
	case d.queue <- n:
	default:
		log.WithFields(log.Fields{
			"action":      n.Action,
			"activity_id": n.ActivityID,
		}).Warn("Очередь уведомлений переполнена, исход отброшен")
	}
}

// Close закрывает очередь и дожидается воркеров.
// Уже поставленные исходы дорабатываются до конца.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.process(n)
	}
}

// process обрабатывает один исход: синтез и рассылка по получателям.
// Все ошибки гасятся здесь — наверх не поднимается ничего.
func (d *Dispatcher) process(n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), noticeTimeout)
	defer cancel()

	for _, msg := range d.synth.Build(ctx, n) {
		d.deliver(ctx, n, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notice, msg Message) {
	logger := log.WithFields(log.Fields{
		"recipient_id": msg.RecipientID,
		"category":     msg.Category,
		"activity_id":  n.ActivityID,
	})

	status := StatusQueued
	if d.publisher != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			logger.WithError(err).Error("Ошибка сериализации уведомления")
			return
		}
		if err := d.publisher.Publish(SubjectPrefix+msg.RecipientID, payload); err != nil {
			// Шлюз недоступен — фиксируем в истории и живём дальше
			logger.WithError(err).Warn("Публикация уведомления в шлюз не удалась")
			status = StatusFailed
		}
	}

	if d.history != nil {
		if err := d.history.Insert(ctx, msg, status); err != nil {
			logger.WithError(err).Warn("Запись истории уведомления не удалась")
		}
	}

	logger.Debug("notification dispatched")
}
