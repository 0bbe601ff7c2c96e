package domain

import "strings"

// Канонические коды статусов. Именно они кладутся в callback_data инлайн-кнопок
// и приходят обратно в структурированных callback'ах. Исторически коды
// испанские: веб-клиенты и операторы работают с ними со времён первой версии
// сайта, менять их — ломать уже разосланные клавиатуры.
const (
	CodePending        = "pendiente"
	CodePreparing      = "en_preparacion"
	CodeOutForDelivery = "en_camino"
	CodeDelivered      = "entregado"
	CodeCancelled      = "cancelado"
)

var statusByCode = map[string]OrderStatus{
	CodePending:        StatusPending,
	CodePreparing:      StatusPreparing,
	CodeOutForDelivery: StatusOutForDelivery,
	CodeDelivered:      StatusDelivered,
	CodeCancelled:      StatusCancelled,
}

var codeByStatus = map[OrderStatus]string{
	StatusPending:        CodePending,
	StatusPreparing:      CodePreparing,
	StatusOutForDelivery: CodeOutForDelivery,
	StatusDelivered:      CodeDelivered,
	StatusCancelled:      CodeCancelled,
}

// Code возвращает канонический код статуса для callback_data.
func (s OrderStatus) Code() string {
	return codeByStatus[s]
}

// StatusFromCode резолвит канонический код в статус.
// Код — не алиас: допускается ровно одно значение на статус.
func StatusFromCode(code string) (OrderStatus, error) {
	status, ok := statusByCode[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return "", ErrUnknownStatusCode
	}
	return status, nil
}

// AliasTable resolves сокращённые написания статусов из текстовых команд.
// Таблица many-to-one: несколько алиасов могут вести к одному статусу, но
// каждый алиас — ровно к одному (коллизия считается ошибкой конфигурации,
// без угадывания приоритета).
type AliasTable struct {
	byAlias map[string]OrderStatus
}

// DefaultAliases возвращает таблицу алиасов, которую исторически понимает
// команда /status. Канонические коды входят сюда же, поэтому оператору
// одинаково доступны `/status AB123456 en_camino` и `/status AB123456 c`.
func DefaultAliases() map[OrderStatus][]string {
	return map[OrderStatus][]string{
		StatusPending:        {CodePending, "pend", "p"},
		StatusPreparing:      {CodePreparing, "preparacion", "prep"},
		StatusOutForDelivery: {CodeOutForDelivery, "encamino", "camino", "en", "c"},
		StatusDelivered:      {CodeDelivered, "done", "ok", "e"},
		StatusCancelled:      {CodeCancelled, "canc", "x"},
	}
}

// NewAliasTable строит таблицу из набора алиасов по статусам.
// Возвращает ErrAliasCollision, если один алиас встречается у двух статусов,
// и ErrUnknownStatusCode, если среди ключей есть статус вне перечисления.
func NewAliasTable(aliases map[OrderStatus][]string) (*AliasTable, error) {
	byAlias := make(map[string]OrderStatus)
	for status, list := range aliases {
		if !status.Valid() {
			return nil, ErrUnknownStatusCode
		}
		for _, alias := range list {
			key := strings.ToLower(strings.TrimSpace(alias))
			if key == "" {
				continue
			}
			if existing, ok := byAlias[key]; ok && existing != status {
				return nil, ErrAliasCollision
			}
			byAlias[key] = status
		}
	}
	return &AliasTable{byAlias: byAlias}, nil
}

// Resolve возвращает статус по алиасу или ErrUnknownAlias.
func (t *AliasTable) Resolve(alias string) (OrderStatus, error) {
	status, ok := t.byAlias[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return "", ErrUnknownAlias
	}
	return status, nil
}

// Aliases возвращает число известных алиасов; нужно для стартовых логов.
func (t *AliasTable) Aliases() int {
	return len(t.byAlias)
}
