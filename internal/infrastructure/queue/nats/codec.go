package nats

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

// eventMessage is the wire shape of an item event. File bytes never leave the process.
type eventMessage struct {
	Type   string         `msgpack:"type"`
	At     time.Time      `msgpack:"at"`
	Item   *itemMessage   `msgpack:"item,omitempty"`
	Notice *noticeMessage `msgpack:"notice,omitempty"`
}

type itemMessage struct {
	ID             string `msgpack:"id"`
	Seq            uint64 `msgpack:"seq"`
	Name           string `msgpack:"name"`
	MimeType       string `msgpack:"mime_type"`
	Size           int64  `msgpack:"size"`
	Format         string `msgpack:"format"`
	Status         string `msgpack:"status"`
	Progress       int    `msgpack:"progress"`
	StageLabel     string `msgpack:"stage_label"`
	Error          string `msgpack:"error,omitempty"`
	ExtractedChars int    `msgpack:"extracted_chars"`
}

type noticeMessage struct {
	Level   string    `msgpack:"level"`
	ItemID  string    `msgpack:"item_id,omitempty"`
	Message string    `msgpack:"message"`
	At      time.Time `msgpack:"at"`
}

func EncodeEvent(event domain.ItemEvent) ([]byte, error) {
	msg := eventMessage{Type: string(event.Type), At: event.At.UTC()}
	if event.Item != nil {
		it := event.Item
		msg.Item = &itemMessage{
			ID:             it.ID,
			Seq:            it.Seq,
			Name:           it.File.Name,
			MimeType:       it.File.MimeType,
			Size:           it.File.Size,
			Format:         string(it.Format),
			Status:         string(it.Status),
			Progress:       it.Progress,
			StageLabel:     it.StageLabel,
			Error:          it.Error,
			ExtractedChars: it.ExtractedChars,
		}
	}
	if event.Notice != nil {
		msg.Notice = &noticeMessage{
			Level:   string(event.Notice.Level),
			ItemID:  event.Notice.ItemID,
			Message: event.Notice.Message,
			At:      event.Notice.CreatedAt.UTC(),
		}
	}
	payload, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("encode item event: %w", err)
	}
	return payload, nil
}

// DecodeEvent is the inverse of EncodeEvent for subscribers in Go.
func DecodeEvent(payload []byte) (domain.ItemEvent, error) {
	var msg eventMessage
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return domain.ItemEvent{}, fmt.Errorf("decode item event: %w", err)
	}
	event := domain.ItemEvent{Type: domain.EventType(msg.Type), At: msg.At}
	if msg.Item != nil {
		event.Item = &domain.UploadItem{
			ID:  msg.Item.ID,
			Seq: msg.Item.Seq,
			File: domain.SourceFile{
				Name:     msg.Item.Name,
				MimeType: msg.Item.MimeType,
				Size:     msg.Item.Size,
			},
			Format:         domain.Format(msg.Item.Format),
			Status:         domain.ItemStatus(msg.Item.Status),
			Progress:       msg.Item.Progress,
			StageLabel:     msg.Item.StageLabel,
			Error:          msg.Item.Error,
			ExtractedChars: msg.Item.ExtractedChars,
		}
	}
	if msg.Notice != nil {
		event.Notice = &domain.Notice{
			Level:     domain.NoticeLevel(msg.Notice.Level),
			ItemID:    msg.Notice.ItemID,
			Message:   msg.Notice.Message,
			CreatedAt: msg.Notice.At,
		}
	}
	return event, nil
}
