// Package notify синтезирует и рассылает уведомления о начислениях.
// models.go описывает транзитные структуры: исход действия и сообщение.
// Сообщения нигде не хранятся движком как сущности домена — история
// пишется отдельной таблицей, доставкой владеет внешний шлюз.
package notify

// Роли получателей уведомления.
const (
	RoleActor           = "actor"
	RoleTarget          = "target"
	RoleCollectiveOwner = "collective_owner"
)

// Категории уведомлений.
const (
	CategoryPoints     = "points"
	CategoryMembership = "membership"
	CategorySocial     = "social"
)

// Metadata — контекст действия со стороны платформы.
// Используется ТОЛЬКО для текстов уведомлений, никогда для расчёта баллов.
type Metadata struct {
	EventID    string `json:"eventId,omitempty"`
	EventTitle string `json:"eventTitle,omitempty"`
	ClubID     string `json:"clubId,omitempty"`
	ClubName   string `json:"clubName,omitempty"`
}

// Notice — исход зафиксированного действия, по которому строятся
// уведомления. Передаётся диспетчеру после коммита и обрабатывается
// асинхронно: ни синтез, ни доставка не влияют на результат действия.
type Notice struct {
	Action       string
	ActivityID   string
	ActorID      string
	TargetID     string
	TargetKind   string
	CollectiveID string

	ActorPoints      int64
	TargetPoints     int64
	CollectivePoints int64

	Metadata Metadata
}

// Message — готовое уведомление для одного получателя.
type Message struct {
	RecipientID string            `json:"recipientId"`
	Category    string            `json:"category"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
