// Package messaging — подключение к NATS JetStream.
// Через стрим NOTIFY уведомления уходят внешнему шлюзу доставки:
// движок публикует, pushworker потребляет. Движок никогда не ждёт
// доставку — публикация лучшими усилиями из диспетчера.
package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	// NotifyStream — стрим уведомлений для шлюза доставки.
	NotifyStream = "NOTIFY"
	// NotifySubjects — маска сабжектов стрима: notify.push.<recipientId>.
	NotifySubjects = "notify.push.>"
)

// Client держит соединение и JetStream-контекст.
type Client struct {
	Conn *nats.Conn
	JS   nats.JetStreamContext
}

// EnsureNotifyStream создаёт (или проверяет) стрим NOTIFY.
func EnsureNotifyStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(NotifyStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			if _, addErr := js.AddStream(&nats.StreamConfig{
				Name:      NotifyStream,
				Subjects:  []string{NotifySubjects},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			}); addErr != nil {
				return addErr
			}
		} else {
			return err
		}
	}
	return nil
}

// Connect подключается к NATS и готовит стрим уведомлений.
func Connect(url string) (*Client, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	if err := EnsureNotifyStream(js); err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	log.WithField("url", url).Info("Подключение к NATS установлено")
	return &Client{Conn: conn, JS: js}, nil
}

// ConnectWithRetry повторяет подключение до истечения timeout.
// Нужен при старте в docker-compose, пока NATS поднимается.
func ConnectWithRetry(url string, timeout time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := Connect(url)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("подключение к NATS не удалось за %s: %w", timeout, lastErr)
}

// Close дренирует и закрывает соединение.
func (c *Client) Close() {
	if c == nil || c.Conn == nil {
		return
	}
	_ = c.Conn.Drain()
	c.Conn.Close()
}

// JetStreamPublisher реализует notify.Publisher поверх JetStream.
type JetStreamPublisher struct {
	JS nats.JetStreamContext
}

func (p JetStreamPublisher) Publish(subject string, payload []byte) error {
	_, err := p.JS.Publish(subject, payload)
	return err
}
