package gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-notifier/internal/domain"
	"github.com/vladislavdragonenkov/order-notifier/internal/service/dispatch"
	"github.com/vladislavdragonenkov/order-notifier/internal/storage/memory"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.InboundEvent
	err    error
}

func (h *recordingHandler) HandleInbound(_ context.Context, event domain.InboundEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) handled() []domain.InboundEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.InboundEvent, len(h.events))
	copy(out, h.events)
	return out
}

type stubFetcher struct {
	batches [][]telego.Update
	err     error
	offsets []int64
}

func (f *stubFetcher) FetchUpdates(_ context.Context, offset int64) ([]telego.Update, error) {
	f.offsets = append(f.offsets, offset)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func commandUpdate(updateID int, chatID int64, text string) telego.Update {
	return telego.Update{
		UpdateID: updateID,
		Message: &telego.Message{
			MessageID: updateID * 10,
			Chat:      telego.Chat{ID: chatID},
			Text:      text,
		},
	}
}

func callbackUpdate(updateID int, chatID int64, data string) telego.Update {
	return telego.Update{
		UpdateID: updateID,
		CallbackQuery: &telego.CallbackQuery{
			ID:   "cb-1",
			Data: data,
			Message: &telego.Message{
				MessageID: 77,
				Chat:      telego.Chat{ID: chatID},
			},
		},
	}
}

func TestNormalizer_Command(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"100"}, testLogger())

	event, ok := n.Normalize(commandUpdate(5, 100, "/status AB123456 en_camino"))
	if !ok {
		t.Fatalf("expected command to pass normalization")
	}
	if event.Kind != domain.EventKindCommand {
		t.Fatalf("expected command kind, got %s", event.Kind)
	}
	if event.Command != "/status" {
		t.Fatalf("expected /status, got %q", event.Command)
	}
	if len(event.Args) != 2 || event.Args[0] != "AB123456" || event.Args[1] != "en_camino" {
		t.Fatalf("unexpected args: %v", event.Args)
	}
	if event.ChatID != "100" {
		t.Fatalf("expected chat id 100, got %q", event.ChatID)
	}
	if event.UpdateID != 5 {
		t.Fatalf("expected update id 5, got %d", event.UpdateID)
	}
}

func TestNormalizer_CommandWithBotMention(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"100"}, testLogger())

	event, ok := n.Normalize(commandUpdate(6, 100, "/status@NotifierBot AB123456"))
	if !ok {
		t.Fatalf("expected command to pass normalization")
	}
	if event.Command != "/status" {
		t.Fatalf("bot mention not stripped: %q", event.Command)
	}
}

func TestNormalizer_AllowListRejects(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"100"}, testLogger())

	if _, ok := n.Normalize(commandUpdate(7, 200, "/status AB123456")); ok {
		t.Fatalf("chat outside allow-list must be rejected")
	}
	if _, ok := n.Normalize(callbackUpdate(8, 200, "noop|AB123456")); ok {
		t.Fatalf("callback outside allow-list must be rejected")
	}
}

func TestNormalizer_EmptyAllowListDeniesAll(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, testLogger())

	if _, ok := n.Normalize(commandUpdate(9, 100, "/start")); ok {
		t.Fatalf("empty allow-list must deny all chats")
	}
}

func TestNormalizer_PlainTextIgnored(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"100"}, testLogger())

	if _, ok := n.Normalize(commandUpdate(10, 100, "hola, como va mi pedido?")); ok {
		t.Fatalf("plain text must be ignored")
	}
}

func TestNormalizer_Callback(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"100"}, testLogger())

	event, ok := n.Normalize(callbackUpdate(11, 100, "update_status|AB123456|en_camino"))
	if !ok {
		t.Fatalf("expected callback to pass normalization")
	}
	if event.Kind != domain.EventKindCallback {
		t.Fatalf("expected callback kind, got %s", event.Kind)
	}
	if event.Action != domain.ActionUpdateStatus {
		t.Fatalf("expected update_status action, got %q", event.Action)
	}
	if event.OrderKey != "AB123456" || event.StatusCode != "en_camino" {
		t.Fatalf("unexpected callback fields: %+v", event)
	}
	if event.MessageID != 77 || event.CallbackID != "cb-1" {
		t.Fatalf("message context lost: %+v", event)
	}
}

func TestNormalizer_MalformedCallbackPassesThrough(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"100"}, testLogger())

	event, ok := n.Normalize(callbackUpdate(12, 100, "update_status"))
	if !ok {
		t.Fatalf("malformed callback still reaches the dispatcher")
	}
	if event.Action != domain.ActionUpdateStatus || event.OrderKey != "" || event.StatusCode != "" {
		t.Fatalf("unexpected parse result: %+v", event)
	}
}

func TestWebhookHandler_AlwaysOK(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{err: errors.New("boom")}
	h := NewWebhookHandler(NewNormalizer([]string{"100"}, testLogger()), handler, testLogger())

	cases := []string{
		`{"update_id":1,"message":{"message_id":10,"chat":{"id":100},"text":"/start"}}`,
		`{"update_id":2,"message":{"message_id":11,"chat":{"id":999},"text":"/start"}}`,
		`not json at all`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/telegram/webhook", strings.NewReader(body))
		h.ServeHTTP(rec, req)

		if rec.Code != 200 {
			t.Fatalf("webhook must answer 200, got %d for body %q", rec.Code, body)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != `{"ok":true}` {
			t.Fatalf("unexpected webhook body: %q", got)
		}
	}

	if got := len(handler.handled()); got != 1 {
		t.Fatalf("expected exactly 1 dispatched event, got %d", got)
	}
}

func TestPoller_ProcessOnce_AdvancesCursor(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{batches: [][]telego.Update{{
		commandUpdate(41, 100, "/status AB123456"),
		commandUpdate(42, 999, "/status AB123456"),
		callbackUpdate(43, 100, "noop|AB123456"),
	}}}
	cursor := memory.NewCursorRepository()
	handler := &recordingHandler{}

	poller := NewPoller(fetcher, cursor, NewNormalizer([]string{"100"}, testLogger()), handler, WithPollerLogger(testLogger()))

	newCount, err := poller.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected poll error: %v", err)
	}
	if newCount != 3 {
		t.Fatalf("expected 3 fetched updates, got %d", newCount)
	}
	// Чат 999 вне allow-list, поэтому обработано два события.
	if got := len(handler.handled()); got != 2 {
		t.Fatalf("expected 2 handled events, got %d", got)
	}

	stored, err := cursor.Load()
	if err != nil {
		t.Fatalf("unexpected cursor error: %v", err)
	}
	if stored != 43 {
		t.Fatalf("expected cursor at 43, got %d", stored)
	}

	// Следующий цикл стартует строго после подтверждённого обновления.
	if _, err := poller.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected poll error: %v", err)
	}
	if got := fetcher.offsets[len(fetcher.offsets)-1]; got != 44 {
		t.Fatalf("expected offset 44 on next cycle, got %d", got)
	}
}

func TestPoller_ProcessOnce_FirstCycleUsesZeroOffset(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	poller := NewPoller(fetcher, memory.NewCursorRepository(), NewNormalizer([]string{"100"}, testLogger()), &recordingHandler{}, WithPollerLogger(testLogger()))

	if _, err := poller.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected poll error: %v", err)
	}
	if len(fetcher.offsets) != 1 || fetcher.offsets[0] != 0 {
		t.Fatalf("expected first fetch with zero offset, got %v", fetcher.offsets)
	}
}

func TestPoller_ProcessOnce_FetchErrorKeepsCursor(t *testing.T) {
	t.Parallel()

	cursor := memory.NewCursorRepository()
	if err := cursor.Store(50); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	fetcher := &stubFetcher{err: errors.New("telegram unavailable")}
	poller := NewPoller(fetcher, cursor, NewNormalizer([]string{"100"}, testLogger()), &recordingHandler{}, WithPollerLogger(testLogger()))

	if _, err := poller.ProcessOnce(context.Background()); err == nil {
		t.Fatalf("expected fetch error to surface")
	}

	stored, err := cursor.Load()
	if err != nil {
		t.Fatalf("unexpected cursor error: %v", err)
	}
	if stored != 50 {
		t.Fatalf("cursor must not move on fetch failure, got %d", stored)
	}
}

func TestPoller_TriggerHandler(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{batches: [][]telego.Update{{
		commandUpdate(60, 100, "/start"),
	}}}
	poller := NewPoller(fetcher, memory.NewCursorRepository(), NewNormalizer([]string{"100"}, testLogger()), &recordingHandler{}, WithPollerLogger(testLogger()))

	rec := httptest.NewRecorder()
	poller.TriggerHandler()(rec, httptest.NewRequest("POST", "/telegram/poll", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := strings.TrimSpace(rec.Body.String())
	if !strings.Contains(body, `"ok":true`) || !strings.Contains(body, `"newCount":1`) {
		t.Fatalf("unexpected trigger body: %q", body)
	}
}

// gatedFetcher удерживает первый FetchUpdates открытым, пока тест не снимет
// блокировку; так моделируется долгий запрос к Bot API.
type gatedFetcher struct {
	entered chan struct{}
	release chan struct{}
	gate    sync.Once

	mu     sync.Mutex
	batch  []telego.Update
	served bool
}

func (f *gatedFetcher) FetchUpdates(_ context.Context, _ int64) ([]telego.Update, error) {
	f.gate.Do(func() {
		close(f.entered)
		<-f.release
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.served {
		return nil, nil
	}
	f.served = true
	return f.batch, nil
}

func TestPoller_OverlappingCyclesDoNotDispatchTwice(t *testing.T) {
	t.Parallel()

	fetcher := &gatedFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		batch:   []telego.Update{commandUpdate(41, 100, "/status AB123456")},
	}
	handler := &recordingHandler{}
	cursor := memory.NewCursorRepository()
	poller := NewPoller(fetcher, cursor, NewNormalizer([]string{"100"}, testLogger()), handler, WithPollerLogger(testLogger()))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = poller.ProcessOnce(context.Background())
	}()
	<-fetcher.entered

	// Ручной запуск приходит, пока фоновая итерация ещё не подтвердила курсор.
	go func() {
		defer wg.Done()
		_, _ = poller.ProcessOnce(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	var seen int
	for _, event := range handler.handled() {
		if event.UpdateID == 41 {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("update 41 dispatched %d times by overlapping poll iterations", seen)
	}

	stored, err := cursor.Load()
	if err != nil {
		t.Fatalf("unexpected cursor error: %v", err)
	}
	if stored != 41 {
		t.Fatalf("expected cursor at 41, got %d", stored)
	}
}

// failingOnceCursor теряет первое подтверждение курсора, как при падении
// процесса между обработкой батча и записью lastProcessedUpdateId.
type failingOnceCursor struct {
	inner  domain.CursorRepository
	failed bool
}

func (c *failingOnceCursor) Load() (int64, error) { return c.inner.Load() }

func (c *failingOnceCursor) Store(updateID int64) error {
	if !c.failed {
		c.failed = true
		return errors.New("disk full")
	}
	return c.inner.Store(updateID)
}

type replyRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (c *replyRecorder) SendText(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *replyRecorder) EditOrderView(context.Context, string, int, domain.Order) error { return nil }

func (c *replyRecorder) AnswerCallback(context.Context, string, string) error { return nil }

func (c *replyRecorder) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

type countingAnnouncer struct {
	mu    sync.Mutex
	count int
}

func (a *countingAnnouncer) AnnounceStatus(string, domain.OrderStatus, map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
}

func (a *countingAnnouncer) announced() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func TestPoller_ReplayedBatchAdvancesCursorOnce(t *testing.T) {
	t.Parallel()

	repo := memory.NewOrderRepository()
	if err := repo.Create(domain.Order{Key: "AB123456", Status: domain.StatusPending, Version: 1}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	chat := &replyRecorder{}
	announcer := &countingAnnouncer{}
	dispatcher, err := dispatch.NewDispatcher(repo, chat, announcer, dispatch.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}

	inner := memory.NewCursorRepository()
	if err := inner.Store(40); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}
	cursor := &failingOnceCursor{inner: inner}

	update := commandUpdate(41, 100, "/status AB123456 en_camino")
	fetcher := &stubFetcher{batches: [][]telego.Update{{update}, {update}}}

	poller := NewPoller(fetcher, cursor, NewNormalizer([]string{"100"}, testLogger()), dispatcher, WithPollerLogger(testLogger()))

	// Первый цикл применяет переход, но подтверждение курсора теряется.
	if _, err := poller.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected poll error: %v", err)
	}
	if stored, _ := inner.Load(); stored != 40 {
		t.Fatalf("cursor confirmation must be lost, got %d", stored)
	}

	// Bot API повторно отдаёт неподтверждённый батч с того же offset'а.
	if _, err := poller.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected poll error: %v", err)
	}
	if len(fetcher.offsets) != 2 || fetcher.offsets[0] != 41 || fetcher.offsets[1] != 41 {
		t.Fatalf("expected replayed fetch with offset 41, got %v", fetcher.offsets)
	}

	stored, err := inner.Load()
	if err != nil {
		t.Fatalf("unexpected cursor error: %v", err)
	}
	if stored != 41 {
		t.Fatalf("expected cursor at 41 after replay, got %d", stored)
	}

	order, err := repo.Get("AB123456")
	if err != nil {
		t.Fatalf("unexpected order error: %v", err)
	}
	if order.Status != domain.StatusOutForDelivery || order.Version != 2 {
		t.Fatalf("replay must be a no-op: status %s version %d", order.Status, order.Version)
	}
	if got := announcer.announced(); got != 1 {
		t.Fatalf("expected a single announcement across replay, got %d", got)
	}

	sent := chat.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 replies, got %v", sent)
	}
	if sent[0] != "ORDER AB123456 UPDATED TO: OutForDelivery" {
		t.Fatalf("unexpected first reply: %q", sent[0])
	}
	if sent[1] != "ORDER AB123456 ALREADY OutForDelivery" {
		t.Fatalf("unexpected replayed reply: %q", sent[1])
	}
}
