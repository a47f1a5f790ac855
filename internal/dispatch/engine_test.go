package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-alert-dispatch/internal/audience"
	"github.com/mr1hm/go-alert-dispatch/internal/channel"
	"github.com/mr1hm/go-alert-dispatch/internal/logging"
	"github.com/mr1hm/go-alert-dispatch/internal/models"
	"github.com/mr1hm/go-alert-dispatch/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 123456789, time.UTC)

type fixture struct {
	db      *repository.SQLiteDB
	email   *channel.Recorder
	sms     *channel.Recorder
	push    *channel.Recorder
	engine  *Engine
	counter *countingCounter
	feed    *capturePublisher
}

type countingCounter struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (c *countingCounter) IncrementAlertsSent(ctx context.Context, senderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[senderID]++
	return c.err
}

type capturePublisher struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (p *capturePublisher) Publish(a *models.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
}

// seedC1 creates community C1 led by "lead" with 2 members having email and
// phone and 1 member with email only.
func seedC1(t *testing.T, db *repository.SQLiteDB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.AddCommunity(ctx, &models.Community{ID: "C1", Name: "Riverside", LeaderID: "lead"}))
	for _, m := range []models.Member{
		{ID: "u1", Name: "Ana", Email: "ana@example.com", Phone: "+15550001", CommunityID: "C1"},
		{ID: "u2", Name: "Ben", Email: "ben@example.com", Phone: "+15550002", CommunityID: "C1"},
		{ID: "u3", Name: "Cy", Email: "cy@example.com", CommunityID: "C1"},
	} {
		require.NoError(t, db.AddMember(ctx, &m))
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:      db,
		email:   channel.NewRecorder(models.DeliveryEmail),
		sms:     channel.NewRecorder(models.DeliverySMS),
		push:    channel.NewRecorder(models.DeliveryPush),
		counter: &countingCounter{calls: make(map[string]int)},
		feed:    &capturePublisher{},
	}
	f.engine = NewEngine(Options{
		Store:     db,
		Ledger:    db,
		Resolver:  audience.NewResolver(db),
		Adapters:  channel.NewRegistry(f.email, f.sms, f.push),
		Counter:   f.counter,
		Publisher: f.feed,
		Workers:   4,
		Buffer:    8,
		Now:       func() time.Time { return fixedNow },
		Logger:    logging.Discard(),
	})
	return f
}

func communityIntent(methods ...models.DeliveryMethod) models.AlertIntent {
	return models.AlertIntent{
		Type:        models.AlertTypeFlood,
		Severity:    models.AlertSeverityHigh,
		Title:       "River rising",
		Message:     "Move to higher ground now.",
		Scope:       models.TargetScopeCommunity,
		CommunityID: "C1",
		Methods:     methods,
		TTL:         24 * time.Hour,
	}
}

func TestEngine_CommunityScenario(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	ctx := context.Background()

	alert, err := f.engine.Dispatch(ctx, "lead", communityIntent(models.DeliveryEmail, models.DeliverySMS))
	require.NoError(t, err)

	assert.Equal(t, 3, alert.RecipientsCount)
	assert.Equal(t, fixedNow.Truncate(time.Millisecond), alert.SentAt)
	assert.Equal(t, alert.SentAt.Add(24*time.Hour), alert.ExpiresAt)
	require.NotNil(t, alert.TargetCommunityID)
	assert.Equal(t, "C1", *alert.TargetCommunityID)

	entries, err := f.engine.Deliveries(ctx, alert.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	byChannel := map[models.DeliveryMethod]int{}
	for _, e := range entries {
		byChannel[e.Channel]++
		assert.Equal(t, models.DeliverySent, e.Status)
	}
	assert.Equal(t, 3, byChannel[models.DeliveryEmail])
	assert.Equal(t, 2, byChannel[models.DeliverySMS])

	status, err := f.engine.DeliveryStatus(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySummary{Total: 5, Sent: 5}, status)

	assert.Len(t, f.email.Calls(), 3)
	assert.Len(t, f.sms.Calls(), 2)
	assert.Empty(t, f.push.Calls())

	assert.Equal(t, 1, f.counter.calls["lead"])
	require.Len(t, f.feed.alerts, 1)
	assert.Equal(t, alert.ID, f.feed.alerts[0].ID)
}

func TestEngine_TotalIsMembersTimesMethods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.AddCommunity(ctx, &models.Community{ID: "C9", LeaderID: "lead"}))
	const n = 20
	for i := 0; i < n; i++ {
		m := models.Member{
			ID:          "m" + string(rune('a'+i)),
			Email:       "m@example.com",
			Phone:       "+1555",
			CommunityID: "C9",
		}
		require.NoError(t, f.db.AddMember(ctx, &m))
	}

	intent := communityIntent(models.DeliveryEmail, models.DeliverySMS, models.DeliveryPush)
	intent.CommunityID = "C9"
	alert, err := f.engine.Dispatch(ctx, "lead", intent)
	require.NoError(t, err)

	status, err := f.engine.DeliveryStatus(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, n*3, status.Total)
	assert.Equal(t, n, alert.RecipientsCount)
}

func TestEngine_RecipientsCountIsSnapshot(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	ctx := context.Background()

	id, err := f.engine.ComposeAndSend(ctx, "lead", communityIntent(models.DeliveryEmail))
	require.NoError(t, err)

	require.NoError(t, f.db.RemoveMember(ctx, "C1", "u3"))
	require.NoError(t, f.db.AddMember(ctx, &models.Member{ID: "u7", CommunityID: "C1"}))
	require.NoError(t, f.db.AddMember(ctx, &models.Member{ID: "u8", CommunityID: "C1"}))

	stored, err := f.engine.Alert(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.RecipientsCount)
}

func TestEngine_TTLIsExact(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	ctx := context.Background()

	for _, h := range models.AllowedTTLHours {
		intent := communityIntent(models.DeliveryPush)
		intent.TTL = models.TTLHours(h)

		id, err := f.engine.ComposeAndSend(ctx, "lead", intent)
		require.NoError(t, err)

		stored, err := f.engine.Alert(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(h)*3600*time.Second, stored.ExpiresAt.Sub(stored.SentAt), "ttl %dh", h)
	}
}

func TestEngine_AdapterPanicIsIsolated(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	f.email.PanicFor("u2")
	f.sms.FailFor("u1")
	ctx := context.Background()

	alert, err := f.engine.Dispatch(ctx, "lead", communityIntent(models.DeliveryEmail, models.DeliverySMS))
	require.NoError(t, err)

	status, err := f.engine.DeliveryStatus(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySummary{Total: 5, Sent: 3, Failed: 2}, status)

	entries, err := f.engine.Deliveries(ctx, alert.ID)
	require.NoError(t, err)
	for _, e := range entries {
		if e.RecipientID == "u2" && e.Channel == models.DeliveryEmail {
			assert.Equal(t, models.DeliveryFailed, e.Status)
			assert.Contains(t, e.ErrorDetail, "adapter panic")
		}
	}
}

func TestEngine_PendingOutcome(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	f.push.Respond(channel.Pending())
	ctx := context.Background()

	alert, err := f.engine.Dispatch(ctx, "lead", communityIntent(models.DeliveryPush))
	require.NoError(t, err)

	status, err := f.engine.DeliveryStatus(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySummary{Total: 3, Pending: 3}, status)
}

func TestEngine_MissingAdapterRecordsFailure(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	f.engine.adapters = channel.NewRegistry(f.email)
	ctx := context.Background()

	alert, err := f.engine.Dispatch(ctx, "lead", communityIntent(models.DeliveryEmail, models.DeliverySMS))
	require.NoError(t, err)

	entries, err := f.engine.Deliveries(ctx, alert.ID)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	failed := 0
	for _, e := range entries {
		if e.Channel == models.DeliverySMS {
			failed++
			assert.Equal(t, models.DeliveryFailed, e.Status)
			assert.Equal(t, "no adapter configured", e.ErrorDetail)
		}
	}
	assert.Equal(t, 2, failed)
}

func TestEngine_DuplicateMethodsCollapse(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	ctx := context.Background()

	alert, err := f.engine.Dispatch(ctx, "lead", communityIntent(models.DeliveryEmail, models.DeliveryEmail))
	require.NoError(t, err)

	assert.Equal(t, []models.DeliveryMethod{models.DeliveryEmail}, alert.DeliveryMethods)
	status, err := f.engine.DeliveryStatus(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Total)
}

func TestEngine_AllScopeCountsOverlapTwice(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	ctx := context.Background()
	require.NoError(t, f.db.AddCommunity(ctx, &models.Community{ID: "C2", LeaderID: "lead"}))
	require.NoError(t, f.db.AddMember(ctx, &models.Member{ID: "u1", Email: "ana@example.com", CommunityID: "C2"}))

	intent := communityIntent(models.DeliveryEmail)
	intent.Scope = models.TargetScopeAll
	intent.CommunityID = ""

	alert, err := f.engine.Dispatch(ctx, "lead", intent)
	require.NoError(t, err)
	assert.Equal(t, 4, alert.RecipientsCount)
	assert.Nil(t, alert.TargetCommunityID)
}

func TestEngine_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		mutate func(*models.AlertIntent)
		field  string
	}{
		{"empty methods", "lead", func(i *models.AlertIntent) { i.Methods = nil }, "delivery_methods"},
		{"unknown method", "lead", func(i *models.AlertIntent) { i.Methods = []models.DeliveryMethod{"fax"} }, "delivery_methods"},
		{"blank title", "lead", func(i *models.AlertIntent) { i.Title = "   " }, "title"},
		{"blank message", "lead", func(i *models.AlertIntent) { i.Message = "" }, "message"},
		{"zero ttl", "lead", func(i *models.AlertIntent) { i.TTL = 0 }, "ttl"},
		{"negative ttl", "lead", func(i *models.AlertIntent) { i.TTL = -time.Hour }, "ttl"},
		{"missing community", "lead", func(i *models.AlertIntent) { i.CommunityID = "" }, "community_id"},
		{"unknown type", "lead", func(i *models.AlertIntent) { i.Type = "tsunami" }, "type"},
		{"unknown severity", "lead", func(i *models.AlertIntent) { i.Severity = "extreme" }, "severity"},
		{"unknown scope", "lead", func(i *models.AlertIntent) { i.Scope = "planet" }, "target_scope"},
		{"missing sender", "", func(i *models.AlertIntent) {}, "sender_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			seedC1(t, f.db)
			ctx := context.Background()

			intent := communityIntent(models.DeliveryEmail)
			tt.mutate(&intent)

			_, err := f.engine.ComposeAndSend(ctx, tt.sender, intent)
			require.ErrorIs(t, err, ErrValidation)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)

			history, err := f.engine.History(ctx, "lead")
			require.NoError(t, err)
			assert.Empty(t, history)
			assert.Empty(t, f.email.Calls())
			assert.Empty(t, f.counter.calls)
		})
	}
}

type failingStore struct {
	repository.AlertStore
}

func (failingStore) InsertAlert(context.Context, *models.Alert) error {
	return errors.New("disk full")
}

func TestEngine_PersistenceFailureSkipsDelivery(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	f.engine.store = failingStore{AlertStore: f.db}

	_, err := f.engine.ComposeAndSend(context.Background(), "lead", communityIntent(models.DeliveryEmail))
	require.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")

	assert.Empty(t, f.email.Calls())
	assert.Empty(t, f.feed.alerts)
	assert.Empty(t, f.counter.calls)
}

type brokenDirectory struct{}

func (brokenDirectory) MembersOf(context.Context, string) ([]models.Member, error) {
	return nil, errors.New("connection refused")
}

func (brokenDirectory) CommunitiesLedBy(context.Context, string) ([]models.Community, error) {
	return nil, errors.New("connection refused")
}

func TestEngine_DirectoryFailureCreatesNoAlert(t *testing.T) {
	f := newFixture(t)
	f.engine.resolver = audience.NewResolver(brokenDirectory{})
	ctx := context.Background()

	_, err := f.engine.ComposeAndSend(ctx, "lead", communityIntent(models.DeliveryEmail))
	require.ErrorIs(t, err, ErrDirectoryUnavailable)

	history, err := f.engine.History(ctx, "lead")
	require.NoError(t, err)
	assert.Empty(t, history)
}

type failingLedger struct {
	repository.DeliveryLedger
}

func (failingLedger) Record(context.Context, *models.DeliveryLogEntry) error {
	return errors.New("database is locked")
}

func TestEngine_LedgerFailureDoesNotFailDispatch(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	f.engine.ledger = failingLedger{DeliveryLedger: f.db}

	_, err := f.engine.ComposeAndSend(context.Background(), "lead", communityIntent(models.DeliveryEmail))
	require.NoError(t, err)
	assert.Len(t, f.email.Calls(), 3)
}

func TestEngine_CounterFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	f.counter.err = errors.New("redis down")

	_, err := f.engine.ComposeAndSend(context.Background(), "lead", communityIntent(models.DeliveryEmail))
	assert.NoError(t, err)
}

func TestEngine_CancelledContext(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The roster lookup honours ctx, so nothing is stored or delivered.
	_, err := f.engine.ComposeAndSend(ctx, "lead", communityIntent(models.DeliveryEmail))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDirectoryUnavailable)
	assert.Empty(t, f.email.Calls())

	history, err := f.engine.History(context.Background(), "lead")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEngine_HistoryAndActive(t *testing.T) {
	f := newFixture(t)
	seedC1(t, f.db)
	ctx := context.Background()
	require.NoError(t, f.db.AddCommunity(ctx, &models.Community{ID: "C2", LeaderID: "lead"}))

	current := fixedNow
	f.engine.now = func() time.Time { return current }

	short := communityIntent(models.DeliveryEmail)
	short.TTL = time.Hour
	shortID, err := f.engine.ComposeAndSend(ctx, "lead", short)
	require.NoError(t, err)

	other := communityIntent(models.DeliveryEmail)
	other.CommunityID = "C2"
	otherID, err := f.engine.ComposeAndSend(ctx, "lead", other)
	require.NoError(t, err)

	history, err := f.engine.History(ctx, "lead")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.True(t, h.Active)
		if h.ID == shortID {
			assert.Equal(t, 3, h.Delivery.Total)
		}
	}

	current = fixedNow.Add(2 * time.Hour)

	active, err := f.engine.ActiveAlerts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, otherID, active[0].ID)

	c1 := "C1"
	active, err = f.engine.ActiveAlerts(ctx, &c1)
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err = f.engine.History(ctx, "lead")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, h.ID != shortID, h.Active)
	}
}

func TestEngine_UnknownAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.DeliveryStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)

	_, err = f.engine.Deliveries(ctx, "missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}
