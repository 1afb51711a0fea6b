// Package notify — synthesizer.go строит тексты уведомлений.
// Для каждой роли с ненулевой дельтой выбирается шаблон и подставляется
// контекст (название мероприятия, клуба, имя инициатора). Контекст
// собирается лучшими усилиями: неудачный лукап даёт плейсхолдер,
// а не ошибку — синтез никогда не влияет на исход действия.
package notify

import (
	"context"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"campushub.ru/gamification/internal/common"
	"campushub.ru/gamification/internal/features/clubs"
	"campushub.ru/gamification/internal/features/events"
	"campushub.ru/gamification/internal/features/members"
)

// Плейсхолдеры на случай недоступного контекста.
const (
	placeholderActor = "Кто-то из участников"
	placeholderEvent = "мероприятие"
	placeholderClub  = "клуб"
)

// Интерфейсы чтения контекста. Реализуются репозиториями фич;
// в тестах подменяются фейками.
type MemberReader interface {
	GetByID(ctx context.Context, id string) (*members.Member, error)
}

type ClubReader interface {
	GetByID(ctx context.Context, id string) (*clubs.Club, error)
}

type EventReader interface {
	GetByID(ctx context.Context, id string) (*events.Event, error)
}

// Synthesizer строит сообщения по исходу действия.
type Synthesizer struct {
	members MemberReader
	clubs   ClubReader
	events  EventReader
}

// NewSynthesizer создаёт синтезатор уведомлений.
func NewSynthesizer(members MemberReader, clubs ClubReader, events EventReader) *Synthesizer {
	return &Synthesizer{members: members, clubs: clubs, events: events}
}

// Build возвращает сообщения для всех получателей с ненулевой дельтой.
// Выполняет только чтения; любая ошибка лукапа гасится локально.
func (s *Synthesizer) Build(ctx context.Context, n Notice) []Message {
	actorName := s.actorName(ctx, n)
	eventTitle := s.eventTitle(ctx, n)
	clubName, ownerID := s.clubInfo(ctx, n)

	var messages []Message

	if n.ActorPoints != 0 {
		messages = append(messages, s.render(n, RoleActor, n.ActorID, n.ActorPoints, actorName, eventTitle, clubName))
	}

	// Уведомление цели шлём только участникам: у мероприятия нет адресата
	if n.TargetPoints != 0 && n.TargetKind == "user" && n.TargetID != "" {
		messages = append(messages, s.render(n, RoleTarget, n.TargetID, n.TargetPoints, actorName, eventTitle, clubName))
	}

	if n.CollectivePoints != 0 {
		if ownerID == "" {
			// Некому доставлять: владелец клуба не найден
			log.WithFields(log.Fields{
				"club_id":     n.CollectiveID,
				"activity_id": n.ActivityID,
			}).Debug("уведомление коллективу пропущено: владелец не найден")
		} else {
			messages = append(messages, s.render(n, RoleCollectiveOwner, ownerID, n.CollectivePoints, actorName, eventTitle, clubName))
		}
	}

	return messages
}

// render заполняет шаблон для одной роли.
func (s *Synthesizer) render(n Notice, role, recipientID string, points int64, actorName, eventTitle, clubName string) Message {
	t := lookupTemplate(n.Action, role, points)

	replacer := strings.NewReplacer(
		"{points}", common.FormatPointsAmount(points),
		"{actor}", actorName,
		"{event}", eventTitle,
		"{club}", clubName,
	)

	meta := map[string]string{
		"activityId": n.ActivityID,
		"action":     n.Action,
		"points":     strconv.FormatInt(points, 10),
	}
	if n.Metadata.EventID != "" {
		meta["eventId"] = n.Metadata.EventID
	}
	if n.Metadata.ClubID != "" {
		meta["clubId"] = n.Metadata.ClubID
	}

	return Message{
		RecipientID: recipientID,
		Category:    t.Category,
		Title:       replacer.Replace(t.Title),
		Body:        replacer.Replace(t.Body),
		Metadata:    meta,
	}
}

func (s *Synthesizer) actorName(ctx context.Context, n Notice) string {
	if s.members == nil || n.ActorID == "" {
		return placeholderActor
	}
	m, err := s.members.GetByID(ctx, n.ActorID)
	if err != nil {
		log.WithError(err).WithField("member_id", n.ActorID).Debug("лукап имени инициатора не удался")
		return placeholderActor
	}
	return m.Name()
}

func (s *Synthesizer) eventTitle(ctx context.Context, n Notice) string {
	// Название из метаданных дешевле лукапа
	if n.Metadata.EventTitle != "" {
		return n.Metadata.EventTitle
	}

	eventID := n.Metadata.EventID
	if eventID == "" && n.TargetKind == "event" {
		eventID = n.TargetID
	}
	if s.events == nil || eventID == "" {
		return placeholderEvent
	}

	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		log.WithError(err).WithField("event_id", eventID).Debug("лукап названия мероприятия не удался")
		return placeholderEvent
	}
	return e.Title
}

// clubInfo возвращает название клуба и владельца. Лукап нужен даже
// при названии в метаданных: владелец — получатель уведомления.
func (s *Synthesizer) clubInfo(ctx context.Context, n Notice) (name, ownerID string) {
	name = n.Metadata.ClubName
	if name == "" {
		name = placeholderClub
	}

	if s.clubs == nil || n.CollectiveID == "" {
		return name, ""
	}

	c, err := s.clubs.GetByID(ctx, n.CollectiveID)
	if err != nil {
		log.WithError(err).WithField("club_id", n.CollectiveID).Debug("лукап клуба не удался")
		return name, ""
	}
	if n.Metadata.ClubName == "" {
		name = c.Name
	}
	return name, c.OwnerID
}
