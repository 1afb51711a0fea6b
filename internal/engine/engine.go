// Package engine реализует фасад движка начислений — единственную
// точку входа ProcessAction. Порядок обработки одного вызова:
// таблица правил → допуск → кулдаун → атомарное начисление →
// асинхронные уведомления → ответ. Любой отказ до коммита оставляет
// все балансы нетронутыми; частичный успех не сообщается никогда.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nuid"
	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/common"
	"campushub.ru/gamification/internal/features/ledger"
	"campushub.ru/gamification/internal/features/members"
	"campushub.ru/gamification/internal/notify"
)

// ErrPersistence — сбой хранилища при применении начисления.
// Повтор запроса безопасен на усмотрение вызывающего: движок выполняет
// ровно одну попытку, чтобы число побочных эффектов было детерминированным.
var ErrPersistence = errors.New("сбой хранилища, повторите попытку")

// ActionRequest — входной запрос фасада.
type ActionRequest struct {
	ActorID    string `json:"actorId"`
	Action     string `json:"actionId"`
	TargetID   string `json:"targetId,omitempty"`
	TargetKind string `json:"targetKind,omitempty"`
	// Необязательный ключ идемпотентности от клиента: повтор после
	// таймаута не применит начисление дважды
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	Metadata       notify.Metadata `json:"metadata"`
}

// EngineResult — ответ фасада вызывающему.
// При отказе Success=false, все баллы нулевые и заполнен Error.
type EngineResult struct {
	Success          bool   `json:"success"`
	ActorPoints      int64  `json:"actorPoints"`
	TargetPoints     *int64 `json:"targetPoints,omitempty"`
	CollectivePoints *int64 `json:"collectivePoints,omitempty"`
	ActivityID       string `json:"activityId,omitempty"`
	Error            string `json:"error,omitempty"`
}

// MemberReader читает участника для проверки допуска.
type MemberReader interface {
	GetByID(ctx context.Context, id string) (*members.Member, error)
}

// Ledger атомарно применяет начисление.
type Ledger interface {
	Apply(ctx context.Context, delta ledger.Delta, activity ledger.Activity, idempotencyKey string) (*ledger.Outcome, error)
	// LookupProcessed возвращает исходное начисление по ключу
	// идемпотентности, nil — если ключ не встречался.
	LookupProcessed(ctx context.Context, idempotencyKey string) (*ledger.Activity, error)
}

// Notifier принимает исход для асинхронной рассылки (fire-and-forget).
type Notifier interface {
	NotifyAction(n notify.Notice)
}

// Engine — фасад движка начислений. Вызовы независимы и обрабатываются
// параллельно; собственного состояния, кроме зависимостей, нет.
type Engine struct {
	registry *Registry
	limiter  Limiter
	members  MemberReader
	ledger   Ledger
	notifier Notifier // может быть nil — уведомления выключены

	// Генератор корреляционных идентификаторов; подменяется в тестах
	NewID func() string
}

// New создаёт фасад движка.
func New(registry *Registry, limiter Limiter, members MemberReader, ldg Ledger, notifier Notifier) *Engine {
	return &Engine{
		registry: registry,
		limiter:  limiter,
		members:  members,
		ledger:   ldg,
		notifier: notifier,
		NewID:    nuid.Next,
	}
}

// ProcessAction обрабатывает одно действие пользователя.
//
// Возвращает заполненный EngineResult всегда; вторым значением — типизированную
// ошибку отказа (common.Err*, ErrPersistence) для программной маршрутизации.
// Перевод внутренних ошибок в строку ответа происходит только здесь.
func (e *Engine) ProcessAction(ctx context.Context, req ActionRequest) (*EngineResult, error) {
	if req.ActorID == "" || req.Action == "" {
		return reject(common.ErrInvalidRequest)
	}

	logger := log.WithFields(log.Fields{
		"actor_id":  req.ActorID,
		"action":    req.Action,
		"target_id": req.TargetID,
	})

	// 1. Таблица правил: неизвестное действие — ошибка запроса
	policy, err := e.registry.Lookup(req.Action)
	if err != nil {
		logger.Warn("Неизвестное действие отклонено")
		return reject(err)
	}

	// Вид цели диктует правило, а не клиент: расхождение — ошибка
	// запроса до любых побочных эффектов (кулдаун ещё не записан)
	if err := validateTargetKind(req.TargetKind, policy); err != nil {
		logger.WithField("target_kind", req.TargetKind).Warn("Недопустимый вид цели")
		return reject(err)
	}

	// 2. Допуск: инициатор существует, не заблокирован,
	//    списание не уводит его баланс в минус
	if err := e.checkEligibility(ctx, req.ActorID, policy); err != nil {
		logger.WithError(err).Debug("rejected: eligibility")
		return reject(err)
	}

	// 3. Повтор обработанного запроса отвечаем до кулдауна: ретрай
	//    после таймаута должен получить исходный результат, а не отказ
	//    по собственному кулдауну
	if req.IdempotencyKey != "" {
		prior, err := e.ledger.LookupProcessed(ctx, req.IdempotencyKey)
		if err != nil {
			logger.WithError(err).Error("Сбой проверки ключа идемпотентности")
			return reject(ErrPersistence)
		}
		if prior != nil {
			logger.WithField("activity_id", prior.ID).Info("Дубликат по ключу идемпотентности")
			return resultFromActivity(*prior), nil
		}
	}

	// 4. Кулдаун: повтор того же действия по той же цели
	allowed, err := e.limiter.Allow(ctx, req.ActorID, req.Action, req.TargetID, policy.Cooldown)
	if err != nil {
		logger.WithError(err).Error("Сбой проверки кулдауна")
		return reject(ErrPersistence)
	}
	if !allowed {
		logger.Debug("rate limited")
		return reject(common.ErrRateLimited)
	}

	// 5. Атомарное начисление
	delta := e.buildDelta(req, policy)
	activityID := e.NewID()
	outcome, err := e.ledger.Apply(ctx, delta, ledger.Activity{
		ID:              activityID,
		ActorID:         req.ActorID,
		Action:          req.Action,
		TargetID:        req.TargetID,
		ActorDelta:      delta.ActorPoints,
		TargetDelta:     delta.TargetPoints,
		CollectiveDelta: delta.CollectivePoints,
	}, req.IdempotencyKey)
	if err != nil {
		// Доменные отказы проходят как есть, остальное — сбой хранилища.
		// Истёкший дедлайн посреди коммита тоже считается сбоем (retryable),
		// а не частичным успехом.
		if errors.Is(err, common.ErrUserNotFound) || errors.Is(err, common.ErrInsufficientPoints) {
			return reject(err)
		}
		logger.WithError(err).Error("Сбой применения начисления")
		return reject(fmt.Errorf("%w: %s", ErrPersistence, err))
	}

	if outcome.Duplicate {
		// Повтор обработанного запроса: отдаём исходный результат, ничего не применяя
		logger.WithField("activity_id", outcome.Activity.ID).Info("Дубликат по ключу идемпотентности")
		return resultFromActivity(outcome.Activity), nil
	}

	// 6. Уведомления: строго после коммита, асинхронно, лучшими усилиями.
	//    Их судьба не меняет уже зафиксированный результат.
	if e.notifier != nil {
		e.notifier.NotifyAction(notify.Notice{
			Action:           req.Action,
			ActivityID:       activityID,
			ActorID:          req.ActorID,
			TargetID:         req.TargetID,
			TargetKind:       delta.TargetKind,
			CollectiveID:     delta.CollectiveID,
			ActorPoints:      delta.ActorPoints,
			TargetPoints:     delta.TargetPoints,
			CollectivePoints: delta.CollectivePoints,
			Metadata:         req.Metadata,
		})
	}

	logger.WithFields(log.Fields{
		"activity_id":  activityID,
		"actor_points": delta.ActorPoints,
	}).Info("Действие обработано")

	res := &EngineResult{
		Success:     true,
		ActorPoints: delta.ActorPoints,
		ActivityID:  activityID,
	}
	if delta.TargetPoints != 0 {
		res.TargetPoints = int64Ptr(delta.TargetPoints)
	}
	if delta.CollectivePoints != 0 {
		res.CollectivePoints = int64Ptr(delta.CollectivePoints)
	}
	return res, nil
}

// checkEligibility проверяет допуск инициатора.
// Читает состояние, ничего не пишет; пол баланса перепроверяется
// внутри транзакции начисления, так как чтение здесь не сериализовано
// с записью.
func (e *Engine) checkEligibility(ctx context.Context, actorID string, policy ActionPolicy) error {
	m, err := e.members.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if m.IsBanned {
		return common.ErrUserBanned
	}
	if m.TotalPoints+policy.ActorDelta < 0 {
		return common.ErrInsufficientPoints
	}
	return nil
}

// buildDelta собирает начисление из правила и метаданных запроса.
// Дельты цели и коллектива применяются только при известной сущности:
// правило «может отсутствовать» означает отсутствие, а не ошибку.
func (e *Engine) buildDelta(req ActionRequest, policy ActionPolicy) ledger.Delta {
	delta := ledger.Delta{
		ActorID:     req.ActorID,
		ActorPoints: policy.ActorDelta,
	}

	if policy.TargetDelta != 0 && req.TargetID != "" {
		delta.TargetID = req.TargetID
		delta.TargetKind = policy.TargetKind
		delta.TargetPoints = policy.TargetDelta
	}

	if policy.CollectiveDelta != 0 && req.Metadata.ClubID != "" {
		delta.CollectiveID = req.Metadata.ClubID
		delta.CollectivePoints = policy.CollectiveDelta
	}

	return delta
}

// validateTargetKind сверяет вид цели из запроса с таблицей правил.
// Пустой вид допустим всегда (берётся из правила); непустой обязан
// быть известным и совпадать с правилом, если оно вид задаёт —
// иначе клиент мог бы перенаправить начисление в чужую таблицу.
func validateTargetKind(kind string, policy ActionPolicy) error {
	if kind == "" {
		return nil
	}
	if kind != ledger.TargetKindUser && kind != ledger.TargetKindEvent {
		return common.ErrInvalidRequest
	}
	if policy.TargetKind != "" && kind != policy.TargetKind {
		return common.ErrInvalidRequest
	}
	return nil
}

// reject строит ответ-отказ: нулевые баллы, причина в Error.
func reject(err error) (*EngineResult, error) {
	return &EngineResult{Success: false, Error: err.Error()}, err
}

// resultFromActivity восстанавливает успешный ответ из записи аудита
// (ветка дубликата идемпотентности).
func resultFromActivity(a ledger.Activity) *EngineResult {
	res := &EngineResult{
		Success:     true,
		ActorPoints: a.ActorDelta,
		ActivityID:  a.ID,
	}
	if a.TargetDelta != 0 {
		res.TargetPoints = int64Ptr(a.TargetDelta)
	}
	if a.CollectiveDelta != 0 {
		res.CollectivePoints = int64Ptr(a.CollectiveDelta)
	}
	return res
}

func int64Ptr(v int64) *int64 { return &v }
