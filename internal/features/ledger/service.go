// Package ledger — service.go содержит бизнес-логику применения начислений.
package ledger

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/common"
)

// Действие ручной корректировки. В таблице правил его нет:
// корректировка идёт мимо кулдаунов, но через тот же атомарный путь.
const ActionAdminAdjust = "ADMIN_ADJUST"

// Service применяет начисления через репозиторий.
type Service struct {
	repo *Repository
}

// NewService создаёт сервис начислений.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Apply применяет начисление атомарно. См. Repository.Apply.
func (s *Service) Apply(ctx context.Context, delta Delta, activity Activity, idempotencyKey string) (*Outcome, error) {
	if delta.ActorID == "" {
		return nil, common.ErrInvalidRequest
	}
	return s.repo.Apply(ctx, delta, activity, idempotencyKey)
}

// AdminAdjust выполняет ручную корректировку баланса участника.
// Идёт через тот же атомарный путь, что и обычные действия,
// поэтому пол баланса и запись аудита сохраняются.
func (s *Service) AdminAdjust(ctx context.Context, activityID, memberID string, amount int64) (*Outcome, error) {
	if memberID == "" || amount == 0 {
		return nil, common.ErrInvalidRequest
	}

	outcome, err := s.repo.Apply(ctx,
		Delta{ActorID: memberID, ActorPoints: amount},
		Activity{ID: activityID, ActorID: memberID, Action: ActionAdminAdjust, ActorDelta: amount},
		"",
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка корректировки баланса: %w", err)
	}

	log.WithFields(log.Fields{
		"member_id":   memberID,
		"amount":      amount,
		"activity_id": activityID,
	}).Info("Ручная корректировка баланса применена")
	return outcome, nil
}
