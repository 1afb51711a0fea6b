// Package members — service.go содержит бизнес-логику работы с участниками.
// Сервис координирует синхронизацию участников со стороны платформы
// и отдаёт движку данные для проверки допуска.
package members

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/common"
)

// Service управляет участниками платформы.
type Service struct {
	repo *Repository // Репозиторий для работы с таблицей members
}

// NewService создаёт новый сервис участников.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Sync создаёт или обновляет участника по данным платформы.
func (s *Service) Sync(ctx context.Context, id string, info UpsertInfo) error {
	if id == "" {
		return common.ErrInvalidRequest
	}
	if err := s.repo.Upsert(ctx, id, info); err != nil {
		return fmt.Errorf("ошибка синхронизации участника: %w", err)
	}
	log.WithField("member_id", id).Debug("участник синхронизирован")
	return nil
}

// GetByID возвращает участника по идентификатору.
func (s *Service) GetByID(ctx context.Context, id string) (*Member, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPoints возвращает текущий баланс участника.
func (s *Service) GetPoints(ctx context.Context, id string) (int64, error) {
	return s.repo.GetPoints(ctx, id)
}

// Exists проверяет, известен ли участник. Дешевле GetByID:
// используется там, где сам участник не нужен.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// SetBanned блокирует или разблокирует участника (админка).
func (s *Service) SetBanned(ctx context.Context, id string, banned bool) error {
	if err := s.repo.SetBanned(ctx, id, banned); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"member_id": id,
		"banned":    banned,
	}).Info("Изменён флаг блокировки участника")
	return nil
}
