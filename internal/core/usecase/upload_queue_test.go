package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

type queueHarness struct {
	queue    *UploadQueueUseCase
	store    *ItemStore
	cache    *cacheFake
	library  *libraryFake
	records  *recordsFake
	notifier *notifierFake
	handoffs *HandoffDispatcher
	pdf      *extractorFake
	ocr      *extractorFake
	docx     *extractorFake
}

func newQueueHarness(t *testing.T) *queueHarness {
	t.Helper()

	h := &queueHarness{
		store:    NewItemStore(),
		cache:    newCacheFake(),
		library:  newLibraryFake(),
		records:  newRecordsFake(),
		notifier: &notifierFake{},
		pdf:      &extractorFake{kind: domain.EnginePDF, stage: domain.StagePDF, text: "Page Alpha\nPage Beta\nPage Gamma"},
		ocr:      &extractorFake{kind: domain.EngineOCR, stage: domain.StageOCR, text: "نص عربي"},
		docx:     &extractorFake{kind: domain.EngineDOCX, stage: domain.StageDOCX, text: "Heading\n\nBody"},
	}
	notices := NewNoticeBoard(h.store, nil)
	h.handoffs = NewHandoffDispatcher(HandoffConfig{SummaryChars: 10}, HandoffDependencies{
		Cache:    h.cache,
		Library:  h.library,
		Storage:  &storageFake{},
		Records:  h.records,
		Notifier: h.notifier,
	})
	orchestrator := NewExtractionOrchestrator(newLoaderFake(), h.pdf, h.ocr, h.docx)

	seq := 0
	h.queue = NewUploadQueueUseCase(h.store, orchestrator, h.cache, h.handoffs, notices,
		WithIDGenerator(func(file domain.SourceFile) string {
			seq++
			return file.Name + "-" + string(rune('0'+seq))
		}),
	)
	return h
}

func (h *queueHarness) drain(t *testing.T) {
	t.Helper()
	for h.queue.processNext(context.Background()) {
	}
	h.handoffs.Wait()
}

func TestUploadQueuePDFReachesDone(t *testing.T) {
	h := newQueueHarness(t)

	result, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "lecture.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(result.Accepted) != 1 || result.Accepted[0].Status != domain.StatusQueued {
		t.Fatalf("unexpected add result: %+v", result)
	}
	id := result.Accepted[0].ID
	if result.Accepted[0].File.Size != 4 {
		t.Fatalf("size should default to data length, got %d", result.Accepted[0].File.Size)
	}

	h.drain(t)

	item, err := h.queue.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if item.Status != domain.StatusDone || item.Progress != 100 {
		t.Fatalf("unexpected final item: %+v", item)
	}
	text, err := h.queue.ExtractedText(context.Background(), id)
	if err != nil {
		t.Fatalf("ExtractedText() error = %v", err)
	}
	if strings.Index(text, "Alpha") > strings.Index(text, "Beta") || strings.Index(text, "Beta") > strings.Index(text, "Gamma") {
		t.Fatalf("pages out of order: %q", text)
	}
	if item.ExtractedChars != len([]rune(text)) {
		t.Fatalf("unexpected extracted chars: %d", item.ExtractedChars)
	}

	files, err := h.queue.SessionFiles(context.Background())
	if err != nil {
		t.Fatalf("SessionFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].ID != id {
		t.Fatalf("unexpected session files: %+v", files)
	}
	if got := h.library.summaries[id]; got != "Page Alpha" {
		t.Fatalf("unexpected summary: %q", got)
	}
	if rec, ok := h.records.records[id]; !ok || rec.BinaryPath == "" {
		t.Fatalf("expected remote record with binary path, got %+v", rec)
	}
	if len(h.queue.Notices(0)) == 0 || h.queue.Notices(0)[0].Level != domain.NoticeSuccess {
		t.Fatalf("expected success notice, got %+v", h.queue.Notices(0))
	}
}

func TestUploadQueueLegacyDocFailsWithoutProgress(t *testing.T) {
	h := newQueueHarness(t)

	result, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "old.doc", MimeType: "application/msword"}})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	h.drain(t)

	item, _ := h.queue.Get(result.Accepted[0].ID)
	if item.Status != domain.StatusError || item.Progress != 0 {
		t.Fatalf("unexpected item: %+v", item)
	}
	if !strings.Contains(item.Error, ".doc") {
		t.Fatalf("expected legacy Word message, got %q", item.Error)
	}
	if len(h.docx.calls()) != 0 {
		t.Fatalf("docx extractor must not run for .doc")
	}
}

func TestUploadQueueProcessesInInsertionOrder(t *testing.T) {
	h := newQueueHarness(t)
	order := make(chan string, 2)
	h.ocr.started = order
	h.pdf.started = order

	_, err := h.queue.Add(context.Background(), []domain.SourceFile{
		{Name: "scan.png", MimeType: "image/png"},
		{Name: "lecture.pdf", MimeType: "application/pdf"},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	h.drain(t)

	if first, second := <-order, <-order; first != "scan.png" || second != "lecture.pdf" {
		t.Fatalf("unexpected processing order: %s, %s", first, second)
	}
	for _, item := range h.queue.List() {
		if item.Status != domain.StatusDone {
			t.Fatalf("expected all items done, got %+v", item)
		}
	}
}

func TestUploadQueueRejectsUnsupportedFiles(t *testing.T) {
	h := newQueueHarness(t)

	result, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "notes.txt", MimeType: "text/plain"}})
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
	if len(result.Rejected) != 1 || len(h.queue.List()) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	notices := h.queue.Notices(0)
	if len(notices) != 1 || notices[0].Level != domain.NoticeError {
		t.Fatalf("expected one error notice, got %+v", notices)
	}

	mixed, err := h.queue.Add(context.Background(), []domain.SourceFile{
		{Name: "notes.txt", MimeType: "text/plain"},
		{Name: "lecture.docx"},
	})
	if err != nil {
		t.Fatalf("mixed batch should be accepted, got %v", err)
	}
	if len(mixed.Accepted) != 1 || len(mixed.Rejected) != 1 {
		t.Fatalf("unexpected mixed result: %+v", mixed)
	}
}

func TestUploadQueueEmptyBatch(t *testing.T) {
	h := newQueueHarness(t)
	if _, err := h.queue.Add(context.Background(), nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUploadQueueCacheFailureStillCompletes(t *testing.T) {
	h := newQueueHarness(t)
	h.cache.putErrs[ExtractedTextKey("lecture.pdf-1")] = errors.New("quota exceeded")

	if _, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "lecture.pdf"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	h.drain(t)

	item, _ := h.queue.Get("lecture.pdf-1")
	if item.Status != domain.StatusDone {
		t.Fatalf("cache failure must not fail the item: %+v", item)
	}
	var warned bool
	for _, notice := range h.queue.Notices(0) {
		if notice.Level == domain.NoticeWarning && strings.Contains(notice.Message, "quota exceeded") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected warning notice, got %+v", h.queue.Notices(0))
	}
}

func TestUploadQueueHandoffFailureDoesNotTouchItem(t *testing.T) {
	h := newQueueHarness(t)
	h.records.err = errors.New("network down")

	if _, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "scan.webp"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	h.drain(t)

	item, _ := h.queue.Get("scan.webp-1")
	if item.Status != domain.StatusDone || item.Progress != 100 {
		t.Fatalf("unexpected item: %+v", item)
	}
	warnings := h.notifier.byLevel(domain.NoticeWarning)
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "network down") {
		t.Fatalf("expected one hand-off warning, got %+v", warnings)
	}
}

func TestUploadQueueRemoveDuringExtractionDiscardsResult(t *testing.T) {
	h := newQueueHarness(t)
	h.pdf.started = make(chan string, 1)
	h.pdf.release = make(chan struct{})

	if _, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "lecture.pdf"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.queue.processNext(context.Background())
	}()

	<-h.pdf.started
	if err := h.queue.Remove(context.Background(), "lecture.pdf-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	close(h.pdf.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("extraction did not finish")
	}
	h.handoffs.Wait()

	if len(h.queue.List()) != 0 {
		t.Fatalf("removed item reappeared: %+v", h.queue.List())
	}
	if _, ok := h.cache.value(ExtractedTextKey("lecture.pdf-1")); ok {
		t.Fatalf("discarded text must not be cached")
	}
	if len(h.library.items) != 0 {
		t.Fatalf("hand-offs must not run for removed items")
	}
}

func TestUploadQueueRemoveUnknownItem(t *testing.T) {
	h := newQueueHarness(t)
	if err := h.queue.Remove(context.Background(), "missing"); !domain.IsKind(err, domain.ErrItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUploadQueueRemoveClearsCache(t *testing.T) {
	h := newQueueHarness(t)
	if _, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "lecture.docx"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	h.drain(t)

	if err := h.queue.Remove(context.Background(), "lecture.docx-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	for _, key := range []string{ExtractedTextKey("lecture.docx-1"), SummaryKey("lecture.docx-1")} {
		if _, ok := h.cache.value(key); ok {
			t.Fatalf("cache key %s still present", key)
		}
	}
	files, _ := h.queue.SessionFiles(context.Background())
	if len(files) != 0 {
		t.Fatalf("session files not cleared: %+v", files)
	}
}

func countStatus(items []domain.UploadItem, status domain.ItemStatus) int {
	n := 0
	for _, item := range items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func TestUploadQueueRunKeepsSecondItemQueuedWhileFirstExtracts(t *testing.T) {
	h := newQueueHarness(t)
	h.pdf.started = make(chan string, 2)
	h.pdf.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- h.queue.Run(ctx) }()

	_, err := h.queue.Add(context.Background(), []domain.SourceFile{
		{Name: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF")},
		{Name: "b.pdf", MimeType: "application/pdf", Data: []byte("%PDF")},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	select {
	case name := <-h.pdf.started:
		if name != "a.pdf" {
			t.Fatalf("first extraction started on %s", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not start the first item")
	}

	items := h.queue.List()
	if n := countStatus(items, domain.StatusExtracting); n != 1 {
		t.Fatalf("expected exactly one extracting item, got %d: %+v", n, items)
	}
	second, _ := h.queue.Get("b.pdf-2")
	if second.Status != domain.StatusQueued {
		t.Fatalf("second item left the queue early: %+v", second)
	}

	close(h.pdf.release)

	select {
	case name := <-h.pdf.started:
		if name != "b.pdf" {
			t.Fatalf("second extraction started on %s", name)
		}
		first, _ := h.queue.Get("a.pdf-1")
		if !first.Terminal() {
			t.Fatalf("second item promoted before the first finished: %+v", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not start the second item")
	}

	deadline := time.Now().Add(2 * time.Second)
	for countStatus(h.queue.List(), domain.StatusDone) != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("items did not finish: %+v", h.queue.List())
		}
		time.Sleep(10 * time.Millisecond)
	}
	for _, item := range h.queue.List() {
		if item.Progress != 100 {
			t.Fatalf("unexpected progress: %+v", item)
		}
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	h.handoffs.Wait()
}

func TestUploadQueueRunStopsOnCancel(t *testing.T) {
	h := newQueueHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- h.queue.Run(ctx) }()

	if _, err := h.queue.Add(context.Background(), []domain.SourceFile{{Name: "lecture.pdf"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		item, _ := h.queue.Get("lecture.pdf-1")
		if item.Status == domain.StatusDone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker did not process the item: %+v", item)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
	h.handoffs.Wait()
}
