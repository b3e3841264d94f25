package usecase

import (
	"sync"
	"time"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

const defaultSubscriberBuffer = 64

// ItemStore is the authoritative in-memory list of upload items.
// All mutations are serialized and broadcast to subscribers in order.
type ItemStore struct {
	mu      sync.Mutex
	items   []*domain.UploadItem
	nextSeq uint64
	subs    map[int]chan domain.ItemEvent
	nextSub int
	now     func() time.Time
}

func NewItemStore() *ItemStore {
	return &ItemStore{
		subs: make(map[int]chan domain.ItemEvent),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Insert appends a queued item and returns a copy of it.
func (s *ItemStore) Insert(id string, file domain.SourceFile, format domain.Format) domain.UploadItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	item := domain.NewUploadItem(id, s.nextSeq, file, format, s.now())
	s.items = append(s.items, &item)
	s.broadcastLocked(domain.EventItemAdded, &item)
	return item
}

// PromoteNext moves the oldest queued item to extracting, unless another item is extracting.
func (s *ItemStore) PromoteNext() (domain.UploadItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *domain.UploadItem
	for _, item := range s.items {
		if item.Status == domain.StatusExtracting {
			return domain.UploadItem{}, false
		}
		if item.Status == domain.StatusQueued && (next == nil || item.Seq < next.Seq) {
			next = item
		}
	}
	if next == nil {
		return domain.UploadItem{}, false
	}
	if err := next.StartExtraction(s.now()); err != nil {
		return domain.UploadItem{}, false
	}
	s.broadcastLocked(domain.EventItemUpdated, next)
	return *next, true
}

// ApplyProgress reports false when the item no longer exists or is not extracting.
func (s *ItemStore) ApplyProgress(id string, p domain.ExtractProgress) (domain.UploadItem, bool) {
	return s.mutate(id, func(item *domain.UploadItem) error {
		return item.ApplyProgress(p, s.now())
	})
}

func (s *ItemStore) Complete(id string, chars int) (domain.UploadItem, bool) {
	return s.mutate(id, func(item *domain.UploadItem) error {
		return item.Complete(chars, s.now())
	})
}

func (s *ItemStore) Fail(id, message string) (domain.UploadItem, bool) {
	return s.mutate(id, func(item *domain.UploadItem) error {
		return item.Fail(message, s.now())
	})
}

func (s *ItemStore) mutate(id string, apply func(*domain.UploadItem) error) (domain.UploadItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.UploadItem{}, false
	}
	item := s.items[idx]
	if err := apply(item); err != nil {
		return *item, false
	}
	s.broadcastLocked(domain.EventItemUpdated, item)
	return *item, true
}

// Remove deletes an item in any status.
func (s *ItemStore) Remove(id string) (domain.UploadItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.UploadItem{}, false
	}
	item := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.broadcastLocked(domain.EventItemRemoved, item)
	return *item, true
}

func (s *ItemStore) Get(id string) (domain.UploadItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.UploadItem{}, false
	}
	return *s.items[idx], true
}

func (s *ItemStore) Exists(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// List returns items in insertion order.
func (s *ItemStore) List() []domain.UploadItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.UploadItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out
}

func (s *ItemStore) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.items {
		if item.Status == domain.StatusQueued {
			count++
		}
	}
	return count
}

// Subscribe registers an observer. Slow observers miss events instead of blocking the queue.
func (s *ItemStore) Subscribe() (<-chan domain.ItemEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.ItemEvent, defaultSubscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// PublishNotice forwards a notice to subscribers.
func (s *ItemStore) PublishNotice(notice domain.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendLocked(domain.ItemEvent{Type: domain.EventNotice, Notice: &notice, At: s.now()})
}

func (s *ItemStore) broadcastLocked(eventType domain.EventType, item *domain.UploadItem) {
	snapshot := *item
	s.sendLocked(domain.ItemEvent{Type: eventType, Item: &snapshot, At: s.now()})
}

func (s *ItemStore) sendLocked(event domain.ItemEvent) {
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *ItemStore) indexLocked(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
