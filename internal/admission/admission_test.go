package admission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thereayou/roomgate/internal/admission"
	"github.com/thereayou/roomgate/internal/events"
	"github.com/thereayou/roomgate/internal/memstore"
	"github.com/thereayou/roomgate/internal/models"
	"github.com/thereayou/roomgate/pkg/apperr"
)

type fakeIssuer struct {
	mu     sync.Mutex
	issued []string
}

func (f *fakeIssuer) Issue(roomID, userID, name string) (*models.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, userID)
	token := "token-" + userID
	return &models.Credentials{AppID: "test", RoomID: roomID, Token: &token}, nil
}

func (f *fakeIssuer) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.issued {
		if id == userID {
			n++
		}
	}
	return n
}

type env struct {
	store      *memstore.Store
	presence   *memstore.Presence
	bus        *events.Local
	issuer     *fakeIssuer
	registry   *admission.Registry
	queue      *admission.Queue
	controller *admission.Controller
	handoff    *admission.Handoff
}

func newEnv(t *testing.T, codes ...string) *env {
	t.Helper()
	e := &env{
		store:    memstore.New(),
		presence: memstore.NewPresence(),
		bus:      events.NewLocal(),
		issuer:   &fakeIssuer{},
	}
	opts := admission.RegistryOptions{Publisher: e.bus}
	if len(codes) > 0 {
		opts.Generate = sequence(codes...)
		opts.MaxAttempts = 3
	}
	e.registry = admission.NewRegistry(e.store, opts)
	e.queue = admission.NewQueue(e.store, e.registry, e.bus)
	e.controller = admission.NewController(e.registry, e.queue, e.issuer, admission.ControllerOptions{
		WaitTimeout:  time.Minute,
		PollInterval: 10 * time.Millisecond,
		Subscriber:   e.bus,
	})
	e.handoff = admission.NewHandoff(e.registry, e.presence)
	return e
}

func sequence(codes ...string) admission.CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func (e *env) room(t *testing.T, code, creator string) {
	t.Helper()
	if err := e.registry.RegisterCreator(context.Background(), code, creator); err != nil {
		t.Fatalf("RegisterCreator(%s, %s) error = %v", code, creator, err)
	}
}

func receive(t *testing.T, sub events.Subscription) events.Delivery {
	t.Helper()
	select {
	case d := <-sub.C():
		return d
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return events.Delivery{}
}

func TestJoin_GuestIsQueued(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")

	if ok, _ := e.registry.IsCreator(ctx, "abc123", "U1"); !ok {
		t.Fatalf("IsCreator(abc123, U1) = false")
	}

	res, err := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if res.Outcome != admission.OutcomeQueued || res.Credentials != nil {
		t.Fatalf("Join() = %+v, want queued without credentials", res)
	}
	if res.Request.UserID != "U2" || res.Request.RoomCode != "abc123" || res.Request.Status != models.JoinRequestPending {
		t.Errorf("request = %+v", res.Request)
	}
	if n := e.issuer.count("U2"); n != 0 {
		t.Errorf("issued %d credentials for a queued guest", n)
	}
}

func TestJoin_CreatorFastPath(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")

	res, err := e.controller.Join(ctx, admission.JoinInput{RoomID: " ABC123 ", UserID: "U1", Name: "Admin"})
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if res.Outcome != admission.OutcomeAdmitted || res.Credentials == nil || res.Request != nil {
		t.Errorf("Join() = %+v, want admitted with credentials and no request", res)
	}
	pending, _ := e.queue.ListPending(ctx, "abc123")
	if len(pending) != 0 {
		t.Errorf("creator join left %d pending requests", len(pending))
	}
}

func TestJoin_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")

	tests := []struct {
		name string
		in   admission.JoinInput
		want error
	}{
		{"empty name", admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "  "}, apperr.ErrInvalidInput},
		{"empty room", admission.JoinInput{RoomID: "", UserID: "U2", Name: "Guest"}, apperr.ErrInvalidInput},
		{"unknown room", admission.JoinInput{RoomID: "nope", UserID: "U2", Name: "Guest"}, apperr.ErrRoomNotFound},
	}
	for _, test := range tests {
		if _, err := e.controller.Join(ctx, test.in); !errors.Is(err, test.want) {
			t.Errorf("%s: Join() error = %v, want %v", test.name, err, test.want)
		}
	}
}

func TestJoin_RepeatReturnsSameRequest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")

	first, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})
	second, err := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Request.ID != second.Request.ID {
		t.Errorf("repeat join created a second request")
	}
}

func TestResolve_ApproveAdmitsGuest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	var admitted *models.Credentials
	done := make(chan struct{})
	session := admission.NewSession(e.queue, e.bus, res.Request.ID, "U2", admission.SessionOptions{
		PollInterval: 10 * time.Millisecond,
		GracePeriod:  20 * time.Millisecond,
		Issuer:       e.issuer,
		OnAdmitted: func(_ *models.JoinRequest, creds *models.Credentials) {
			admitted = creds
			close(done)
		},
	})
	if session.State() != admission.SessionWaiting {
		t.Fatalf("initial state = %s", session.State())
	}

	errc := make(chan error, 1)
	go func() {
		_, err := session.Run(ctx)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	req, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if req.Status != models.JoinRequestApproved || req.Reason != models.ReasonApproved {
		t.Errorf("resolved = %+v", req)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnAdmitted was not called")
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if session.State() != admission.SessionApproved || admitted == nil {
		t.Errorf("state = %s, creds = %v", session.State(), admitted)
	}

	creds, err := e.controller.Credentials(ctx, "abc123", res.Request.ID, "U2")
	if err != nil || creds.RoomID != "abc123" {
		t.Errorf("Credentials() = %+v, %v", creds, err)
	}
	if ok, _ := e.controller.IsAdmitted(ctx, "abc123", "U2"); !ok {
		t.Errorf("IsAdmitted(U2) = false after approval")
	}
}

func TestResolve_RejectNeverIssues(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	declined := make(chan struct{})
	session := admission.NewSession(e.queue, nil, res.Request.ID, "U2", admission.SessionOptions{
		PollInterval: 10 * time.Millisecond,
		Issuer:       e.issuer,
		OnAdmitted:   func(*models.JoinRequest, *models.Credentials) { t.Error("OnAdmitted called for a rejected request") },
		OnDeclined:   func(*models.JoinRequest) { close(declined) },
	})
	go func() { _, _ = session.Run(ctx) }()

	if _, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", false); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	select {
	case <-declined:
	case <-time.After(time.Second):
		t.Fatal("OnDeclined was not called")
	}
	if session.State() != admission.SessionRejected {
		t.Errorf("state = %s, want rejected", session.State())
	}

	if _, err := e.controller.Credentials(ctx, "abc123", res.Request.ID, "U2"); !errors.Is(err, apperr.ErrRequestRejected) {
		t.Errorf("Credentials() error = %v, want ErrRequestRejected", err)
	}
	if n := e.issuer.count("U2"); n != 0 {
		t.Errorf("issued %d credentials for a rejected request", n)
	}
}

func TestResolve_Twice(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	if _, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", true); err != nil {
		t.Fatal(err)
	}
	if _, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", false); !errors.Is(err, apperr.ErrAlreadyResolved) {
		t.Errorf("second Resolve() error = %v, want ErrAlreadyResolved", err)
	}
	req, _ := e.queue.Get(ctx, res.Request.ID)
	if req.Status != models.JoinRequestApproved {
		t.Errorf("status = %s after second resolve, want approved", req.Status)
	}
}

func TestResolve_ConcurrentDecisionsSucceedOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	const n = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []*models.JoinRequest
		failures []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(approve bool) {
			defer wg.Done()
			<-start
			req, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", approve)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			winners = append(winners, req)
		}(i%2 == 0)
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("%d resolves succeeded, want exactly 1", len(winners))
	}
	for _, err := range failures {
		if !errors.Is(err, apperr.ErrAlreadyResolved) {
			t.Errorf("losing Resolve() error = %v, want ErrAlreadyResolved", err)
		}
	}
	stored, _ := e.queue.Get(ctx, res.Request.ID)
	if stored.Status != winners[0].Status {
		t.Errorf("stored status = %s, winner status = %s", stored.Status, winners[0].Status)
	}
}

func TestAcknowledge_KeepsAdmission(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	if _, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", true); err != nil {
		t.Fatal(err)
	}
	if err := e.controller.Acknowledge(ctx, "abc123", res.Request.ID, "U2"); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if ok, err := e.controller.IsAdmitted(ctx, "abc123", "U2"); err != nil || !ok {
		t.Errorf("IsAdmitted(U2) after acknowledge = %v, %v; want true", ok, err)
	}

	again, err := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})
	if err != nil {
		t.Fatal(err)
	}
	if again.Outcome != admission.OutcomeAdmitted || again.Credentials == nil {
		t.Errorf("rejoin after acknowledge = %+v, want admitted with credentials", again)
	}
	if pending, _ := e.queue.ListPending(ctx, "abc123"); len(pending) != 0 {
		t.Errorf("rejoin queued %d requests", len(pending))
	}

	// Прежний администратор остаётся допущенным после передачи прав
	if err := e.registry.TransferCreator(ctx, "abc123", "U1", "U2"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.controller.IsAdmitted(ctx, "abc123", "U1"); !ok {
		t.Errorf("IsAdmitted(U1) = false after handing admin over")
	}

	if err := e.registry.DeleteRoom(ctx, "abc123", "U2"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.controller.IsAdmitted(ctx, "abc123", "U1"); ok {
		t.Errorf("IsAdmitted(U1) = true after room deletion")
	}
}

func TestIsAdmitted_RejectedGuest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	if ok, _ := e.controller.IsAdmitted(ctx, "abc123", "U2"); ok {
		t.Errorf("IsAdmitted(U2) = true while pending")
	}
	if _, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", false); err != nil {
		t.Fatal(err)
	}
	if ok, _ := e.controller.IsAdmitted(ctx, "abc123", "U2"); ok {
		t.Errorf("IsAdmitted(U2) = true after rejection")
	}
}

func TestResolve_OnlyCreator(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	e.room(t, "other", "U9")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	if _, err := e.controller.Resolve(ctx, "abc123", res.Request.ID, "U2", true); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Resolve() by guest error = %v, want ErrForbidden", err)
	}
	if _, err := e.controller.Resolve(ctx, "other", res.Request.ID, "U9", true); !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Errorf("Resolve() through another room error = %v, want ErrRequestNotFound", err)
	}
}

func TestQueue_EventsRouting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newEnv(t)
	e.room(t, "abc123", "U1")

	admin, _ := e.bus.Subscribe(ctx, events.UserTopic("U1"))
	guest, _ := e.bus.Subscribe(ctx, events.UserTopic("U2"))

	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})
	d := receive(t, admin)
	if d.Event.Type != events.JoinRequestCreated || d.Event.Request.ID != res.Request.ID {
		t.Errorf("admin got %+v", d.Event)
	}

	_, _ = e.controller.Resolve(ctx, "abc123", res.Request.ID, "U1", true)
	d = receive(t, guest)
	if d.Event.Type != events.JoinRequestResolved || d.Event.Request.Status != models.JoinRequestApproved {
		t.Errorf("guest got %+v", d.Event)
	}
}

func TestQueue_HeadAndPendingOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")

	head, err := e.queue.Head(ctx, "abc123")
	if err != nil || head != nil {
		t.Fatalf("Head() on empty queue = %v, %v", head, err)
	}

	for _, uid := range []string{"U2", "U3", "U4"} {
		if _, err := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: uid, Name: uid}); err != nil {
			t.Fatal(err)
		}
	}
	head, _ = e.queue.Head(ctx, "abc123")
	if head.UserID != "U2" {
		t.Errorf("Head() = %s, want U2", head.UserID)
	}
	_, _ = e.controller.Resolve(ctx, "abc123", head.ID, "U1", false)
	head, _ = e.queue.Head(ctx, "abc123")
	if head.UserID != "U3" {
		t.Errorf("Head() after reject = %s, want U3", head.UserID)
	}
}

func TestQueue_CancelAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	if err := e.queue.Acknowledge(ctx, res.Request.ID, "U2"); !errors.Is(err, apperr.ErrRequestPending) {
		t.Errorf("Acknowledge() on pending error = %v", err)
	}
	if _, err := e.queue.Cancel(ctx, res.Request.ID, "U3"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Cancel() by stranger error = %v", err)
	}
	req, err := e.queue.Cancel(ctx, res.Request.ID, "U2")
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != models.JoinRequestRejected || req.Reason != models.ReasonCancelled {
		t.Errorf("cancelled = %+v", req)
	}
	if _, err := e.queue.Cancel(ctx, res.Request.ID, "U2"); !errors.Is(err, apperr.ErrAlreadyResolved) {
		t.Errorf("second Cancel() error = %v", err)
	}
	if err := e.queue.Acknowledge(ctx, res.Request.ID, "U2"); err != nil {
		t.Errorf("Acknowledge() error = %v", err)
	}
	if _, err := e.queue.Get(ctx, res.Request.ID); !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Errorf("Get() after Acknowledge error = %v", err)
	}
}

func TestQueue_ExpirePending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	if n, _ := e.queue.ExpirePending(ctx, time.Hour); n != 0 {
		t.Errorf("ExpirePending(1h) expired %d fresh requests", n)
	}
	time.Sleep(5 * time.Millisecond)
	n, err := e.queue.ExpirePending(ctx, time.Millisecond)
	if err != nil || n != 1 {
		t.Fatalf("ExpirePending() = %d, %v, want 1", n, err)
	}
	req, _ := e.queue.Get(ctx, res.Request.ID)
	if req.Status != models.JoinRequestRejected || req.Reason != models.ReasonTimedOut {
		t.Errorf("expired = %+v", req)
	}
	if _, err := e.controller.Credentials(ctx, "abc123", req.ID, "U2"); !errors.Is(err, apperr.ErrRequestTimedOut) {
		t.Errorf("Credentials() error = %v, want ErrRequestTimedOut", err)
	}
}

func TestAwait_TimesOut(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	controller := admission.NewController(e.registry, e.queue, e.issuer, admission.ControllerOptions{
		WaitTimeout:  50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
	res, _ := controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	req, creds, err := controller.Await(ctx, "abc123", res.Request.ID, "U2")
	if !errors.Is(err, apperr.ErrRequestTimedOut) {
		t.Fatalf("Await() error = %v, want ErrRequestTimedOut", err)
	}
	if req.Reason != models.ReasonTimedOut {
		t.Errorf("reason = %q, want timed_out", req.Reason)
	}
	if creds != nil {
		t.Errorf("credentials issued for a timed out request")
	}
}

func TestAwait_ReturnsOnApproval(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	grace := 30 * time.Millisecond
	controller := admission.NewController(e.registry, e.queue, e.issuer, admission.ControllerOptions{
		WaitTimeout:  time.Minute,
		PollInterval: 10 * time.Millisecond,
		GracePeriod:  grace,
		Subscriber:   e.bus,
	})
	res, _ := controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U2", Name: "Guest"})

	approved := make(chan time.Time, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		approved <- time.Now()
		_, _ = controller.Resolve(ctx, "abc123", res.Request.ID, "U1", true)
	}()

	req, creds, err := controller.Await(ctx, "abc123", res.Request.ID, "U2")
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if req.Status != models.JoinRequestApproved {
		t.Errorf("status = %s, want approved", req.Status)
	}
	if creds == nil || creds.RoomID != "abc123" {
		t.Fatalf("credentials = %+v, want credentials for abc123", creds)
	}
	if waited := time.Since(<-approved); waited < grace {
		t.Errorf("credentials returned %v after approval, want at least %v", waited, grace)
	}

	// Уже одобренная заявка отдаёт данные сразу
	start := time.Now()
	if _, creds, err := controller.Await(ctx, "abc123", res.Request.ID, "U2"); err != nil || creds == nil {
		t.Errorf("Await() on approved request = %+v, %v", creds, err)
	}
	if time.Since(start) >= grace {
		t.Errorf("Await() on approved request waited for the grace period")
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	other, _ := controller.Join(ctx, admission.JoinInput{RoomID: "abc123", UserID: "U3", Name: "Other"})
	if _, _, err := controller.Await(short, "abc123", other.Request.ID, "U3"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await() with short ctx error = %v", err)
	}
}

func TestRegistry_CreateRoomRetriesCollisions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "taken", "taken", "fresh")
	e.room(t, "taken", "U9")

	room, err := e.registry.CreateRoom(ctx, "U1")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.Code != "fresh" || room.CreatorID != "U1" {
		t.Errorf("room = %+v", room)
	}
	creator, _ := e.registry.Creator(ctx, "taken")
	if creator != "U9" {
		t.Errorf("collision overwrote creator: %s", creator)
	}
}

func TestRegistry_Exhausted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "taken")
	e.room(t, "taken", "U9")

	if _, err := e.registry.CreateRoom(ctx, "U1"); !errors.Is(err, apperr.ErrRegistryExhausted) {
		t.Errorf("CreateRoom() error = %v, want ErrRegistryExhausted", err)
	}
	if _, err := e.registry.GenerateUniqueRoomID(ctx); !errors.Is(err, apperr.ErrRegistryExhausted) {
		t.Errorf("GenerateUniqueRoomID() error = %v, want ErrRegistryExhausted", err)
	}
}

func TestRegistry_RandomCode(t *testing.T) {
	gen := admission.RandomCode(8)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := gen()
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != 8 {
			t.Fatalf("code %q has length %d", code, len(code))
		}
		for _, r := range code {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				t.Fatalf("code %q has invalid character %q", code, r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 99 {
		t.Errorf("only %d distinct codes out of 100", len(seen))
	}
}

func TestRegistry_RegisterCreatorIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	first, _ := e.registry.Room(ctx, "abc123")
	e.room(t, "abc123", "U1")
	second, _ := e.registry.Room(ctx, "abc123")

	if first.CreatorID != second.CreatorID || first.Code != second.Code {
		t.Errorf("registry changed: %+v -> %+v", first, second)
	}
}

func TestRegistry_TransferAndDelete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newEnv(t)
	e.room(t, "abc123", "U1")
	sub, _ := e.bus.Subscribe(ctx, events.RoomTopic("abc123"))

	if err := e.registry.TransferCreator(ctx, "abc123", "U2", "U3"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("TransferCreator() by non-creator error = %v", err)
	}
	if err := e.registry.TransferCreator(ctx, "abc123", "U1", "U2"); err != nil {
		t.Fatal(err)
	}
	d := receive(t, sub)
	if d.Event.Type != events.AdminChanged || d.Event.CreatorID != "U2" {
		t.Errorf("event = %+v", d.Event)
	}

	if err := e.registry.DeleteRoom(ctx, "abc123", "U1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("DeleteRoom() by former creator error = %v", err)
	}
	if err := e.registry.DeleteRoom(ctx, "abc123", "U2"); err != nil {
		t.Fatal(err)
	}
	if d := receive(t, sub); d.Event.Type != events.RoomDeleted {
		t.Errorf("event = %+v", d.Event)
	}
	if err := e.registry.DeleteRoom(ctx, "abc123", "U2"); !errors.Is(err, apperr.ErrRoomNotFound) {
		t.Errorf("DeleteRoom() twice error = %v", err)
	}
}

func TestHandoff_EarliestParticipantWins(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "xyz999", "U1")
	base := time.Now()
	for i, uid := range []string{"U1", "U3", "U4"} {
		if err := e.handoff.Enter(ctx, "xyz999", models.Participant{UID: uid, Name: uid, JoinedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}

	successor, err := e.handoff.Leave(ctx, "xyz999", "U1")
	if err != nil {
		t.Fatal(err)
	}
	if successor != "U3" {
		t.Fatalf("successor = %q, want U3", successor)
	}
	if creator, _ := e.registry.Creator(ctx, "xyz999"); creator != "U3" {
		t.Errorf("creator = %q, want U3", creator)
	}

	res, _ := e.controller.Join(ctx, admission.JoinInput{RoomID: "xyz999", UserID: "U5", Name: "Late"})
	if res.Outcome != admission.OutcomeQueued {
		t.Errorf("U5 outcome = %s, want queued", res.Outcome)
	}
	res, _ = e.controller.Join(ctx, admission.JoinInput{RoomID: "xyz999", UserID: "U3", Name: "New admin"})
	if res.Outcome != admission.OutcomeAdmitted {
		t.Errorf("U3 outcome = %s, want admitted", res.Outcome)
	}
}

func TestHandoff_NonAdminLeaves(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "xyz999", "U1")
	_ = e.handoff.Enter(ctx, "xyz999", models.Participant{UID: "U1"})
	_ = e.handoff.Enter(ctx, "xyz999", models.Participant{UID: "U3"})

	successor, err := e.handoff.Leave(ctx, "xyz999", "U3")
	if err != nil || successor != "" {
		t.Errorf("Leave(U3) = %q, %v", successor, err)
	}
	if creator, _ := e.registry.Creator(ctx, "xyz999"); creator != "U1" {
		t.Errorf("creator = %q, want U1", creator)
	}
}

func TestHandoff_EmptyRoomKeepsCreator(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.room(t, "xyz999", "U1")
	_ = e.handoff.Enter(ctx, "xyz999", models.Participant{UID: "U1"})

	successor, err := e.handoff.Leave(ctx, "xyz999", "U1")
	if err != nil || successor != "" {
		t.Errorf("Leave() = %q, %v, want no successor", successor, err)
	}
	if creator, _ := e.registry.Creator(ctx, "xyz999"); creator != "U1" {
		t.Errorf("creator = %q, want U1", creator)
	}
}
