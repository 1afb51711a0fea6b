// Package engine — cooldown.go отслеживает кулдауны действий в памяти процесса.
// Ключ — тройка (инициатор, действие, цель). Вариант для одного инстанса:
// проверка и запись не атомарны между инстансами, гонка в узком окне
// даёт дубль награды и принята как ограниченный риск. Для нескольких
// инстансов используется бэкенд postgres (cooldown_pg.go).
package engine

import (
	"context"
	"sync"
	"time"
)

// Limiter ограничивает частоту повторения действия по одной цели.
type Limiter interface {
	// Allow проверяет кулдаун и при разрешении записывает момент вызова.
	// Кулдаун 0 всегда разрешён и не ведёт учёта.
	Allow(ctx context.Context, actorID, action, targetID string, cooldown time.Duration) (bool, error)
	// Close останавливает фоновые горутины.
	Close()
}

// MemoryLimiter хранит кулдауны в map под мьютексом.
type MemoryLimiter struct {
	mu   sync.Mutex
	last map[cooldownKey]time.Time

	// максимальный кулдаун таблицы правил — порог фоновой очистки
	maxAge time.Duration

	// подменяется в тестах
	now func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

type cooldownKey struct {
	actorID  string
	action   string
	targetID string
}

// NewMemoryLimiter создаёт лимитер и запускает фоновую очистку.
func NewMemoryLimiter(maxAge time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		last:   make(map[cooldownKey]time.Time),
		maxAge: maxAge,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow реализует Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, actorID, action, targetID string, cooldown time.Duration) (bool, error) {
	// Без кулдауна не ведём учёт — иначе map растёт без ограничений
	// на высокочастотных действиях
	if cooldown <= 0 {
		return true, nil
	}

	key := cooldownKey{actorID: actorID, action: action, targetID: targetID}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[key]; ok && now.Sub(last) < cooldown {
		// Отказ не трогает состояние: окно не продлевается
		return false, nil
	}

	l.last[key] = now
	return true, nil
}

// Close останавливает фоновую горутину очистки.
// Его надо вызывать на shutdown (иначе cleanup будет жить вечно).
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-l.maxAge)
			for key, last := range l.last {
				if last.Before(cutoff) {
					delete(l.last, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// size возвращает число записей (для тестов).
func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}
