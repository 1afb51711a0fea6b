package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campushub.ru/gamification/internal/features/clubs"
	"campushub.ru/gamification/internal/features/events"
	"campushub.ru/gamification/internal/features/members"
)

type stubMembers struct {
	byID map[string]*members.Member
}

func (s *stubMembers) GetByID(_ context.Context, id string) (*members.Member, error) {
	if m, ok := s.byID[id]; ok {
		return m, nil
	}
	return nil, errors.New("не найден")
}

type stubClubs struct {
	byID map[string]*clubs.Club
}

func (s *stubClubs) GetByID(_ context.Context, id string) (*clubs.Club, error) {
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, errors.New("не найден")
}

type stubEvents struct {
	byID map[string]*events.Event
}

func (s *stubEvents) GetByID(_ context.Context, id string) (*events.Event, error) {
	if e, ok := s.byID[id]; ok {
		return e, nil
	}
	return nil, errors.New("не найден")
}

func testSynthesizer() *Synthesizer {
	return NewSynthesizer(
		&stubMembers{byID: map[string]*members.Member{
			"u1":    {ID: "u1", Username: "ivan"},
			"owner": {ID: "owner", DisplayName: "Мария"},
		}},
		&stubClubs{byID: map[string]*clubs.Club{
			"c1": {ID: "c1", Name: "Шахматный клуб", OwnerID: "owner"},
		}},
		&stubEvents{byID: map[string]*events.Event{
			"ev1": {ID: "ev1", ClubID: "c1", Title: "Осенний турнир"},
		}},
	)
}

func TestSynthesizer_JoinEvent(t *testing.T) {
	s := testSynthesizer()

	msgs := s.Build(context.Background(), Notice{
		Action:           "JOIN_EVENT",
		ActivityID:       "act-1",
		ActorID:          "u1",
		CollectiveID:     "c1",
		ActorPoints:      30,
		CollectivePoints: 20,
		Metadata:         Metadata{EventID: "ev1", ClubID: "c1"},
	})
	require.Len(t, msgs, 2)

	actor := msgs[0]
	assert.Equal(t, "u1", actor.RecipientID)
	assert.Equal(t, CategoryMembership, actor.Category)
	assert.Equal(t, "Вы записались!", actor.Title)
	assert.Equal(t, "За участие в «Осенний турнир» вам начислено +30 баллов", actor.Body)
	assert.Equal(t, "act-1", actor.Metadata["activityId"])
	assert.Equal(t, "ev1", actor.Metadata["eventId"])

	owner := msgs[1]
	assert.Equal(t, "owner", owner.RecipientID)
	assert.Contains(t, owner.Body, "@ivan")
	assert.Contains(t, owner.Body, "Шахматный клуб")
	assert.Contains(t, owner.Body, "+20 баллов")
}

func TestSynthesizer_TargetMessage(t *testing.T) {
	s := testSynthesizer()

	msgs := s.Build(context.Background(), Notice{
		Action:       "LIKE_COMMENT",
		ActorID:      "u1",
		TargetID:     "owner",
		TargetKind:   "user",
		ActorPoints:  2,
		TargetPoints: 5,
	})
	require.Len(t, msgs, 2)

	target := msgs[1]
	assert.Equal(t, "owner", target.RecipientID)
	assert.Equal(t, "Ваш комментарий оценили", target.Title)
	assert.Contains(t, target.Body, "@ivan")
	assert.Contains(t, target.Body, "+5 баллов")
}

// Цель-мероприятие адресата не имеет: сообщение цели не строится.
func TestSynthesizer_EventTargetSkipped(t *testing.T) {
	s := testSynthesizer()

	msgs := s.Build(context.Background(), Notice{
		Action:       "LIKE_EVENT",
		ActorID:      "u1",
		TargetID:     "ev1",
		TargetKind:   "event",
		ActorPoints:  10,
		TargetPoints: 7,
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1", msgs[0].RecipientID)
}

// Пара (действие, роль) без шаблона получает общий текст по знаку дельты.
func TestSynthesizer_GenericFallback(t *testing.T) {
	s := testSynthesizer()

	msgs := s.Build(context.Background(), Notice{
		Action:           "UNLIKE_EVENT",
		ActorID:          "u1",
		CollectiveID:     "c1",
		ActorPoints:      -10,
		CollectivePoints: -15,
	})
	require.Len(t, msgs, 2)

	assert.Equal(t, "Баллы списаны", msgs[0].Title)
	assert.Contains(t, msgs[0].Body, "-10 баллов")
	assert.Equal(t, "Баллы списаны", msgs[1].Title)
}

// Недоступный контекст заменяется плейсхолдерами, а не ошибкой.
func TestSynthesizer_PlaceholdersOnLookupFailure(t *testing.T) {
	s := NewSynthesizer(
		&stubMembers{byID: map[string]*members.Member{}},
		&stubClubs{byID: map[string]*clubs.Club{}},
		&stubEvents{byID: map[string]*events.Event{}},
	)

	msgs := s.Build(context.Background(), Notice{
		Action:      "JOIN_EVENT",
		ActorID:     "ghost",
		ActorPoints: 30,
		Metadata:    Metadata{EventID: "ev-gone"},
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, "За участие в «мероприятие» вам начислено +30 баллов", msgs[0].Body)
}

// Клуб без владельца: сообщение коллективу пропускается молча.
func TestSynthesizer_NoOwnerNoCollectiveMessage(t *testing.T) {
	s := NewSynthesizer(
		&stubMembers{byID: map[string]*members.Member{"u1": {ID: "u1", Username: "ivan"}}},
		&stubClubs{byID: map[string]*clubs.Club{"c1": {ID: "c1", Name: "Клуб"}}},
		&stubEvents{byID: map[string]*events.Event{}},
	)

	msgs := s.Build(context.Background(), Notice{
		Action:           "FOLLOW_CLUB",
		ActorID:          "u1",
		CollectiveID:     "c1",
		ActorPoints:      15,
		CollectivePoints: 25,
		Metadata:         Metadata{ClubID: "c1"},
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1", msgs[0].RecipientID)
}
