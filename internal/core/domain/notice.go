package domain

import "time"

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible, fire-and-forget message.
type Notice struct {
	Level     NoticeLevel `json:"level"`
	ItemID    string      `json:"item_id,omitempty"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

type EventType string

const (
	EventItemAdded   EventType = "item_added"
	EventItemUpdated EventType = "item_updated"
	EventItemRemoved EventType = "item_removed"
	EventNotice      EventType = "notice"
)

// ItemEvent is broadcast to observers of the upload queue.
type ItemEvent struct {
	Type   EventType   `json:"type"`
	Item   *UploadItem `json:"item,omitempty"`
	Notice *Notice     `json:"notice,omitempty"`
	At     time.Time   `json:"at"`
}
