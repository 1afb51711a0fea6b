// Package notify — templates.go содержит закрытую таблицу шаблонов.
// Шаблон выбирается по паре (действие, роль); пары без своего шаблона
// получают общий текст «получены/списаны баллы» по знаку дельты.
// Таблица — данные, а не ветки кода: новое действие добавляется строкой.
package notify

// Плейсхолдеры, подставляемые синтезатором:
//
//	{points} — подписанная сумма с склонением («+30 баллов»)
//	{actor}  — имя инициатора
//	{event}  — название мероприятия
//	{club}   — название клуба
type template struct {
	Category string
	Title    string
	Body     string
}

type templateKey struct {
	action string
	role   string
}

var templates = map[templateKey]template{
	// Лайки мероприятий
	{"LIKE_EVENT", RoleActor}:           {CategorySocial, "Спасибо за реакцию!", "Вам начислено {points} за лайк «{event}»"},
	{"LIKE_EVENT", RoleCollectiveOwner}: {CategorySocial, "Ваше мероприятие оценили", "{actor} лайкнул «{event}»: клубу «{club}» {points}"},

	// Участие в мероприятиях
	{"JOIN_EVENT", RoleActor}:           {CategoryMembership, "Вы записались!", "За участие в «{event}» вам начислено {points}"},
	{"JOIN_EVENT", RoleCollectiveOwner}: {CategoryMembership, "Новый участник мероприятия", "{actor} записался на «{event}»: клубу «{club}» {points}"},
	{"LEAVE_EVENT", RoleActor}:          {CategoryMembership, "Вы отписались", "За отмену участия в «{event}» списано {points}"},

	// Подписки и членство в клубах
	{"FOLLOW_CLUB", RoleActor}:           {CategoryMembership, "Вы подписались на клуб", "За подписку на «{club}» вам начислено {points}"},
	{"FOLLOW_CLUB", RoleCollectiveOwner}: {CategoryMembership, "Новый подписчик", "{actor} подписался на «{club}»: клубу {points}"},
	{"JOIN_CLUB", RoleActor}:             {CategoryMembership, "Добро пожаловать в клуб!", "За вступление в «{club}» вам начислено {points}"},
	{"JOIN_CLUB", RoleCollectiveOwner}:   {CategoryMembership, "Новый член клуба", "{actor} вступил в «{club}»: клубу {points}"},
	{"LEAVE_CLUB", RoleActor}:            {CategoryMembership, "Вы покинули клуб", "За выход из «{club}» списано {points}"},

	// Лайки комментариев
	{"LIKE_COMMENT", RoleTarget}: {CategorySocial, "Ваш комментарий оценили", "{actor} лайкнул ваш комментарий: {points}"},

	// Модерация
	{"APPROVE_MEMBER", RoleActor}:  {CategoryMembership, "Заявка обработана", "За модерацию заявки вам начислено {points}"},
	{"APPROVE_MEMBER", RoleTarget}: {CategoryMembership, "Вас приняли!", "Ваша заявка в «{club}» одобрена: вам начислено {points}"},

	// Создание мероприятий
	{"CREATE_EVENT", RoleActor}: {CategorySocial, "Мероприятие опубликовано", "За публикацию «{event}» вам начислено {points}"},

	// Ежедневная отметка
	{"DAILY_CHECKIN", RoleActor}: {CategoryPoints, "Ежедневный бонус", "За визит вам начислено {points}"},
}

// Общие шаблоны по знаку дельты — запасной вариант для пар
// (действие, роль) без собственной строки в таблице.
var (
	genericGained = template{CategoryPoints, "Баллы начислены", "На ваш счёт зачислено {points}"}
	genericLost   = template{CategoryPoints, "Баллы списаны", "С вашего счёта списано {points}"}
)

// lookupTemplate возвращает шаблон для пары (действие, роль)
// или общий шаблон по знаку дельты.
func lookupTemplate(action, role string, points int64) template {
	if t, ok := templates[templateKey{action: action, role: role}]; ok {
		return t
	}
	if points < 0 {
		return genericLost
	}
	return genericGained
}
