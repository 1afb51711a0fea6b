package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campushub.ru/gamification/internal/common"
	"campushub.ru/gamification/internal/features/ledger"
	"campushub.ru/gamification/internal/features/members"
	"campushub.ru/gamification/internal/notify"
)

// --- Фейки зависимостей ---

type fakeMembers struct {
	byID map[string]*members.Member
	err  error
}

func (f *fakeMembers) GetByID(_ context.Context, id string) (*members.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.byID[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return m, nil
}

type fakeLedger struct {
	deltas     []ledger.Delta
	activities []ledger.Activity
	keys       []string
	outcome    *ledger.Outcome
	err        error

	processed    map[string]*ledger.Activity
	processedErr error
}

func (f *fakeLedger) Apply(_ context.Context, delta ledger.Delta, activity ledger.Activity, idempotencyKey string) (*ledger.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	f.deltas = append(f.deltas, delta)
	f.activities = append(f.activities, activity)
	f.keys = append(f.keys, idempotencyKey)
	return &ledger.Outcome{Activity: activity}, nil
}

func (f *fakeLedger) LookupProcessed(_ context.Context, key string) (*ledger.Activity, error) {
	if f.processedErr != nil {
		return nil, f.processedErr
	}
	return f.processed[key], nil
}

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (f *fakeLimiter) Allow(_ context.Context, _, _, _ string, _ time.Duration) (bool, error) {
	f.calls++
	return f.allow, f.err
}

func (f *fakeLimiter) Close() {}

type fakeNotifier struct {
	notices []notify.Notice
}

func (f *fakeNotifier) NotifyAction(n notify.Notice) {
	f.notices = append(f.notices, n)
}

func member(id string, points int64) *members.Member {
	return &members.Member{ID: id, DisplayName: "Тест " + id, TotalPoints: points}
}

func newTestEngine(m *fakeMembers, l *fakeLedger, lim *fakeLimiter, n *fakeNotifier) *Engine {
	e := New(NewRegistry(), lim, m, l, n)
	e.NewID = func() string { return "act-1" }
	return e
}

// --- Тесты ---

func TestProcessAction_Success(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	ldg := &fakeLedger{}
	lim := &fakeLimiter{allow: true}
	ntf := &fakeNotifier{}
	e := newTestEngine(mem, ldg, lim, ntf)

	res, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:  "u1",
		Action:   ActionJoinEvent,
		TargetID: "ev1",
		Metadata: notify.Metadata{ClubID: "c1", EventID: "ev1"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, int64(30), res.ActorPoints)
	require.NotNil(t, res.CollectivePoints)
	assert.Equal(t, int64(20), *res.CollectivePoints)
	assert.Nil(t, res.TargetPoints)
	assert.Equal(t, "act-1", res.ActivityID)

	require.Len(t, ldg.deltas, 1)
	d := ldg.deltas[0]
	assert.Equal(t, "u1", d.ActorID)
	assert.Equal(t, int64(30), d.ActorPoints)
	assert.Equal(t, "c1", d.CollectiveID)
	assert.Equal(t, int64(20), d.CollectivePoints)

	require.Len(t, ntf.notices, 1)
	assert.Equal(t, ActionJoinEvent, ntf.notices[0].Action)
	assert.Equal(t, "act-1", ntf.notices[0].ActivityID)
}

func TestProcessAction_TargetDelta(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 10)}}
	ldg := &fakeLedger{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, &fakeNotifier{})

	res, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:  "u1",
		Action:   ActionLikeComment,
		TargetID: "u2",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.ActorPoints)
	require.NotNil(t, res.TargetPoints)
	assert.Equal(t, int64(5), *res.TargetPoints)

	require.Len(t, ldg.deltas, 1)
	assert.Equal(t, ledger.TargetKindUser, ldg.deltas[0].TargetKind)
	assert.Equal(t, "u2", ldg.deltas[0].TargetID)
}

// Правило с дельтой цели, но без цели в запросе: дельта цели не применяется.
func TestProcessAction_NoTargetNoTargetDelta(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 10)}}
	ldg := &fakeLedger{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, &fakeNotifier{})

	res, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID: "u1",
		Action:  ActionLikeComment,
	})
	require.NoError(t, err)
	assert.Nil(t, res.TargetPoints)
	require.Len(t, ldg.deltas, 1)
	assert.Zero(t, ldg.deltas[0].TargetPoints)
}

// Вид цели из запроса не может переназначить таблицу из правила:
// LIKE_COMMENT начисляет участнику, запрос с targetKind=event — ошибка
// запроса до кулдауна и до хранилища.
func TestProcessAction_TargetKindMismatchRejected(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 10)}}
	ldg := &fakeLedger{}
	lim := &fakeLimiter{allow: true}
	e := newTestEngine(mem, ldg, lim, &fakeNotifier{})

	res, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:    "u1",
		Action:     ActionLikeComment,
		TargetID:   "ev1",
		TargetKind: "event",
	})
	require.ErrorIs(t, err, common.ErrInvalidRequest)
	assert.False(t, res.Success)
	assert.Zero(t, lim.calls)
	assert.Empty(t, ldg.deltas)
}

func TestProcessAction_UnknownTargetKindRejected(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 10)}}
	lim := &fakeLimiter{allow: true}
	e := newTestEngine(mem, &fakeLedger{}, lim, &fakeNotifier{})

	_, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:    "u1",
		Action:     ActionLikeComment,
		TargetID:   "u2",
		TargetKind: "galaxy",
	})
	require.ErrorIs(t, err, common.ErrInvalidRequest)
	assert.Zero(t, lim.calls)
}

// Совпадающий или пустой вид цели проходит; вид в дельте всегда из правила.
func TestProcessAction_TargetKindFromPolicy(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 10)}}
	ldg := &fakeLedger{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, &fakeNotifier{})

	_, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:    "u1",
		Action:     ActionLikeComment,
		TargetID:   "u2",
		TargetKind: "user",
	})
	require.NoError(t, err)
	require.Len(t, ldg.deltas, 1)
	assert.Equal(t, ledger.TargetKindUser, ldg.deltas[0].TargetKind)
}

func TestProcessAction_UnknownAction(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 10)}}
	ldg := &fakeLedger{}
	lim := &fakeLimiter{allow: true}
	e := newTestEngine(mem, ldg, lim, &fakeNotifier{})

	res, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1", Action: "TELEPORT"})
	require.ErrorIs(t, err, common.ErrUnknownAction)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, ldg.deltas)
	assert.Zero(t, lim.calls)
}

func TestProcessAction_InvalidRequest(t *testing.T) {
	e := newTestEngine(&fakeMembers{}, &fakeLedger{}, &fakeLimiter{allow: true}, &fakeNotifier{})

	_, err := e.ProcessAction(context.Background(), ActionRequest{Action: ActionDailyCheckin})
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1"})
	require.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestProcessAction_ActorNotFound(t *testing.T) {
	e := newTestEngine(&fakeMembers{byID: map[string]*members.Member{}}, &fakeLedger{}, &fakeLimiter{allow: true}, &fakeNotifier{})

	res, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "ghost", Action: ActionDailyCheckin})
	require.ErrorIs(t, err, common.ErrUserNotFound)
	assert.False(t, res.Success)
}

func TestProcessAction_ActorBanned(t *testing.T) {
	banned := member("u1", 100)
	banned.IsBanned = true
	ldg := &fakeLedger{}
	e := newTestEngine(&fakeMembers{byID: map[string]*members.Member{"u1": banned}}, ldg, &fakeLimiter{allow: true}, &fakeNotifier{})

	_, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1", Action: ActionDailyCheckin})
	require.ErrorIs(t, err, common.ErrUserBanned)
	assert.Empty(t, ldg.deltas)
}

// Списание не должно уводить баланс инициатора в минус.
func TestProcessAction_InsufficientPoints(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 5)}}
	ldg := &fakeLedger{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, &fakeNotifier{})

	res, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:  "u1",
		Action:   ActionLeaveClub,
		Metadata: notify.Metadata{ClubID: "c1"},
	})
	require.ErrorIs(t, err, common.ErrInsufficientPoints)
	assert.False(t, res.Success)
	assert.Empty(t, ldg.deltas)
}

func TestProcessAction_RateLimited(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	ldg := &fakeLedger{}
	ntf := &fakeNotifier{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: false}, ntf)

	res, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1", Action: ActionDailyCheckin})
	require.ErrorIs(t, err, common.ErrRateLimited)
	assert.False(t, res.Success)
	assert.Empty(t, ldg.deltas)
	assert.Empty(t, ntf.notices)
}

func TestProcessAction_LimiterFailure(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	e := newTestEngine(mem, &fakeLedger{}, &fakeLimiter{err: errors.New("нет соединения")}, &fakeNotifier{})

	_, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1", Action: ActionDailyCheckin})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestProcessAction_PersistenceFailure(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	ldg := &fakeLedger{err: errors.New("connection reset")}
	ntf := &fakeNotifier{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, ntf)

	res, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1", Action: ActionDailyCheckin})
	require.ErrorIs(t, err, ErrPersistence)
	assert.False(t, res.Success)
	// Сбой хранилища — никаких уведомлений
	assert.Empty(t, ntf.notices)
}

// Доменный отказ из транзакции (перепроверка пола) проходит как есть.
func TestProcessAction_TxFloorRecheck(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	ldg := &fakeLedger{err: common.ErrInsufficientPoints}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, &fakeNotifier{})

	_, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1", Action: ActionLeaveEvent, TargetID: "ev1"})
	require.ErrorIs(t, err, common.ErrInsufficientPoints)
	require.NotErrorIs(t, err, ErrPersistence)
}

// Повтор по ключу идемпотентности: отдаётся исходный результат,
// уведомления не шлются повторно.
func TestProcessAction_IdempotentDuplicate(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	ldg := &fakeLedger{outcome: &ledger.Outcome{
		Duplicate: true,
		Activity: ledger.Activity{
			ID:              "act-orig",
			ActorID:         "u1",
			Action:          ActionJoinEvent,
			ActorDelta:      30,
			CollectiveDelta: 20,
		},
	}}
	ntf := &fakeNotifier{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, ntf)

	res, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:        "u1",
		Action:         ActionJoinEvent,
		TargetID:       "ev1",
		IdempotencyKey: "req-42",
		Metadata:       notify.Metadata{ClubID: "c1"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "act-orig", res.ActivityID)
	assert.Equal(t, int64(30), res.ActorPoints)
	require.NotNil(t, res.CollectivePoints)
	assert.Equal(t, int64(20), *res.CollectivePoints)
	assert.Empty(t, ntf.notices)
}

// Ретрай по ключу внутри окна кулдауна получает исходный результат,
// а не отказ по собственному кулдауну: проверка ключа идёт до лимитера.
func TestProcessAction_IdempotentRetryBeatsCooldown(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	ldg := &fakeLedger{processed: map[string]*ledger.Activity{
		"req-42": {ID: "act-orig", ActorID: "u1", Action: ActionDailyCheckin, ActorDelta: 10},
	}}
	lim := &fakeLimiter{allow: false}
	ntf := &fakeNotifier{}
	e := newTestEngine(mem, ldg, lim, ntf)

	res, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:        "u1",
		Action:         ActionDailyCheckin,
		IdempotencyKey: "req-42",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "act-orig", res.ActivityID)
	assert.Equal(t, int64(10), res.ActorPoints)
	assert.Zero(t, lim.calls)
	assert.Empty(t, ntf.notices)
}

// Движок без нотификатора работает молча.
func TestProcessAction_NilNotifier(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	e := New(NewRegistry(), &fakeLimiter{allow: true}, mem, &fakeLedger{}, nil)
	e.NewID = func() string { return "act-1" }

	res, err := e.ProcessAction(context.Background(), ActionRequest{ActorID: "u1", Action: ActionDailyCheckin})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

// Ключ идемпотентности доходит до хранилища без изменений.
func TestProcessAction_PassesIdempotencyKey(t *testing.T) {
	mem := &fakeMembers{byID: map[string]*members.Member{"u1": member("u1", 100)}}
	ldg := &fakeLedger{}
	e := newTestEngine(mem, ldg, &fakeLimiter{allow: true}, &fakeNotifier{})

	_, err := e.ProcessAction(context.Background(), ActionRequest{
		ActorID:        "u1",
		Action:         ActionDailyCheckin,
		IdempotencyKey: "req-7",
	})
	require.NoError(t, err)
	require.Len(t, ldg.keys, 1)
	assert.Equal(t, "req-7", ldg.keys[0])
}
