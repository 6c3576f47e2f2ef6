package models

// CallbackAction type of callback action
type CallbackAction string

const (
	CallbackMenu          CallbackAction = "menu"
	CallbackMyAliases     CallbackAction = "my"
	CallbackViewAlias     CallbackAction = "view"
	CallbackToggleAlias   CallbackAction = "tgl"
	CallbackAskDelete     CallbackAction = "askdel"
	CallbackConfirmDelete CallbackAction = "del"
	CallbackListMail      CallbackAction = "list"
	CallbackReadMail      CallbackAction = "read"
	CallbackCreateAlias   CallbackAction = "new"
	CallbackPickDomain    CallbackAction = "dom"
	CallbackNoop          CallbackAction = "noop"
)

// CallbackData structure for inline button callback.
// Keys are single letters to stay under Telegram's 64-byte limit.
type CallbackData struct {
	Action  CallbackAction `json:"a"`
	Address string         `json:"e,omitempty"`
	UID     uint32         `json:"u,omitempty"`
	Page    int            `json:"p,omitempty"`
}
