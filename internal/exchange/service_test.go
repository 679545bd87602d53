package exchange

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/erazemk/barter/internal/db"
	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

type recordingPublisher struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, n)
	return nil
}

type failingSink struct{}

func (failingSink) Append(context.Context, store.Querier, int64, string) (*model.Notification, error) {
	return nil, errors.New("sink unavailable")
}

func newAccount(t *testing.T, database *sql.DB, username string) *model.Account {
	t.Helper()
	a, err := store.CreateAccount(context.Background(), database, username, "hash")
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", username, err)
	}
	return a
}

func newListing(t *testing.T, database *sql.DB, ownerID int64, title, category, condition string) *model.Listing {
	t.Helper()
	l, err := store.CreateListing(context.Background(), database, ownerID, model.ListingInput{
		Title:     title,
		Category:  category,
		Condition: condition,
	})
	if err != nil {
		t.Fatalf("CreateListing(%s): %v", title, err)
	}
	return l
}

func unread(t *testing.T, database *sql.DB, accountID int64) []model.Notification {
	t.Helper()
	notes, err := store.ListUnread(context.Background(), database, accountID, 0)
	if err != nil {
		t.Fatalf("ListUnread: %v", err)
	}
	return notes
}

func active(t *testing.T, database *sql.DB, id int64) bool {
	t.Helper()
	l, err := store.GetListing(context.Background(), database, id)
	if err != nil || l == nil {
		t.Fatalf("GetListing(%d): %v", id, err)
	}
	return l.Active
}

type fixture struct {
	db      *sql.DB
	svc     *Service
	pub     *recordingPublisher
	alice   *model.Account
	bob     *model.Account
	camera  *model.Listing
	bicycle *model.Listing
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	pub := &recordingPublisher{}
	f := &fixture{db: database, svc: New(database, pub), pub: pub}
	f.alice = newAccount(t, database, "alice")
	f.bob = newAccount(t, database, "bob")
	f.camera = newListing(t, database, f.alice.ID, "Camera", model.CategoryElectronics, model.ConditionUsed)
	f.bicycle = newListing(t, database, f.bob.ID, "Bicycle", model.CategorySports, model.ConditionNew)
	return f
}

func TestExchangeScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "Trade?")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", p.Status)
	}
	if p.ReceiverID != f.bob.ID || p.SenderName != "alice" {
		t.Errorf("unexpected proposal parties: %+v", p)
	}

	bobNotes := unread(t, f.db, f.bob.ID)
	if len(bobNotes) != 1 {
		t.Fatalf("bob unread = %d, want 1", len(bobNotes))
	}
	if !strings.Contains(bobNotes[0].Message, "Bicycle") || !strings.Contains(bobNotes[0].Message, "alice") {
		t.Errorf("bob message = %q", bobNotes[0].Message)
	}

	p, err = f.svc.Accept(ctx, p.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if p.Status != model.StatusAccepted {
		t.Errorf("status = %q, want accepted", p.Status)
	}
	if active(t, f.db, f.camera.ID) || active(t, f.db, f.bicycle.ID) {
		t.Error("both listings should be inactive after accept")
	}

	aliceNotes := unread(t, f.db, f.alice.ID)
	if len(aliceNotes) != 1 {
		t.Fatalf("alice unread = %d, want 1", len(aliceNotes))
	}
	for _, want := range []string{"Camera", "Bicycle", "bob"} {
		if !strings.Contains(aliceNotes[0].Message, want) {
			t.Errorf("alice message %q missing %q", aliceNotes[0].Message, want)
		}
	}
	if n := len(unread(t, f.db, f.bob.ID)); n != 2 {
		t.Errorf("bob unread = %d, want 2", n)
	}

	page, err := store.SearchListings(ctx, f.db, model.ListingFilter{})
	if err != nil {
		t.Fatalf("SearchListings: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("active listings = %d, want 0", page.Total)
	}

	if len(f.pub.notes) != 3 {
		t.Errorf("published = %d, want 3", len(f.pub.notes))
	}
}

func TestCreateRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	carol := newAccount(t, f.db, "carol")
	aliceBooks := newListing(t, f.db, f.alice.ID, "Old books", model.CategoryBooks, model.ConditionUsed)
	gone := newListing(t, f.db, f.bob.ID, "Gone lamp", model.CategoryFurniture, model.ConditionUsed)
	if _, err := f.svc.DeleteListing(ctx, gone.ID, f.bob.ID); err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}

	tests := []struct {
		name      string
		sender    int64
		requested int64
		offered   int64
		want      error
	}{
		{"missing requested", f.alice.ID, 9999, f.camera.ID, model.ErrNotFound},
		{"inactive requested", f.alice.ID, gone.ID, f.camera.ID, model.ErrInvalidState},
		{"own listing", f.alice.ID, aliceBooks.ID, f.camera.ID, model.ErrOwnershipConflict},
		{"own listing checked before offer", f.alice.ID, f.camera.ID, f.camera.ID, model.ErrOwnershipConflict},
		{"offer owned by someone else", f.alice.ID, f.bicycle.ID, f.bicycle.ID, model.ErrValidation},
		{"no eligible offer", carol.ID, f.bicycle.ID, 0, model.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.sender, tt.requested, tt.offered, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("Create error = %v, want %v", err, tt.want)
			}
		})
	}

	if n := len(unread(t, f.db, f.bob.ID)); n != 0 {
		t.Errorf("failed creates wrote %d notifications", n)
	}
}

func TestCreateDuplicatePending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "again")
	if !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("duplicate Create error = %v, want ErrInvalidState", err)
	}
}

func TestOfferChoices(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, offers, err := f.svc.OfferChoices(ctx, f.alice.ID, f.bicycle.ID)
	if err != nil {
		t.Fatalf("OfferChoices: %v", err)
	}
	if len(offers) != 1 || offers[0].ID != f.camera.ID {
		t.Errorf("offers = %+v, want camera only", offers)
	}

	carol := newAccount(t, f.db, "carol")
	if _, _, err := f.svc.OfferChoices(ctx, carol.ID, f.bicycle.ID); !errors.Is(err, ErrNoEligibleOffers) {
		t.Errorf("OfferChoices without listings = %v, want ErrNoEligibleOffers", err)
	}
	if _, _, err := f.svc.OfferChoices(ctx, f.alice.ID, f.camera.ID); !errors.Is(err, model.ErrOwnershipConflict) {
		t.Errorf("OfferChoices on own listing = %v, want ErrOwnershipConflict", err)
	}
}

func TestReject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err = f.svc.Reject(ctx, p.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if p.Status != model.StatusRejected {
		t.Errorf("status = %q, want rejected", p.Status)
	}
	if !active(t, f.db, f.camera.ID) || !active(t, f.db, f.bicycle.ID) {
		t.Error("reject must not change listing active flags")
	}
	aliceNotes := unread(t, f.db, f.alice.ID)
	if len(aliceNotes) != 1 || !strings.Contains(aliceNotes[0].Message, "Bicycle") {
		t.Errorf("alice notifications = %+v", aliceNotes)
	}
	if n := len(unread(t, f.db, f.bob.ID)); n != 1 {
		t.Errorf("bob unread = %d, want 1 (creation only)", n)
	}

	for _, target := range []string{model.StatusAccepted, model.StatusRejected} {
		if _, err := f.svc.Transition(ctx, p.ID, f.bob.ID, target); !errors.Is(err, model.ErrInvalidState) {
			t.Errorf("Transition(%s) on rejected = %v, want ErrInvalidState", target, err)
		}
	}
}

func TestTransitionRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Transition(ctx, 9999, f.bob.ID, model.StatusAccepted); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing proposal = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Accept(ctx, p.ID, f.alice.ID); !errors.Is(err, model.ErrAuthorization) {
		t.Errorf("sender accept = %v, want ErrAuthorization", err)
	}
	for _, target := range []string{model.StatusPending, "cancelled", ""} {
		if _, err := f.svc.Transition(ctx, p.ID, f.bob.ID, target); !errors.Is(err, model.ErrValidation) {
			t.Errorf("Transition(%q) = %v, want ErrValidation", target, err)
		}
	}

	got, err := store.GetProposal(ctx, f.db, p.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status after failed transitions = %q, want pending", got.Status)
	}

	if _, err := f.svc.Accept(ctx, p.ID, f.bob.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := f.svc.Reject(ctx, p.ID, f.bob.ID); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("reject after accept = %v, want ErrInvalidState", err)
	}
}

func TestAcceptWithdrawsOtherPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	carol := newAccount(t, f.db, "carol")
	guitar := newListing(t, f.db, carol.ID, "Acoustic guitar", model.CategoryOther, model.ConditionLikeNew)
	tent := newListing(t, f.db, f.bob.ID, "Camping tent", model.CategorySports, model.ConditionUsed)

	p, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Carol also wants the bicycle.
	competing, err := f.svc.Create(ctx, carol.ID, f.bicycle.ID, guitar.ID, "")
	if err != nil {
		t.Fatalf("Create competing: %v", err)
	}
	// Bob offers the bicycle for carol's guitar.
	outgoing, err := f.svc.Create(ctx, f.bob.ID, guitar.ID, f.bicycle.ID, "")
	if err != nil {
		t.Fatalf("Create outgoing: %v", err)
	}
	// Unrelated to both listings.
	unrelated, err := f.svc.Create(ctx, carol.ID, tent.ID, guitar.ID, "")
	if err != nil {
		t.Fatalf("Create unrelated: %v", err)
	}
	before := len(f.pub.notes)

	if _, err := f.svc.Accept(ctx, p.ID, f.bob.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	for _, tt := range []struct {
		id   int64
		want string
	}{
		{competing.ID, model.StatusRejected},
		{outgoing.ID, model.StatusRejected},
		{unrelated.ID, model.StatusPending},
	} {
		got, err := store.GetProposal(ctx, f.db, tt.id)
		if err != nil {
			t.Fatalf("GetProposal(%d): %v", tt.id, err)
		}
		if got.Status != tt.want {
			t.Errorf("proposal %d status = %q, want %q", tt.id, got.Status, tt.want)
		}
	}

	if got := len(f.pub.notes) - before; got != 4 {
		t.Errorf("notifications from accept = %d, want 4", got)
	}
	if !active(t, f.db, guitar.ID) {
		t.Error("guitar should stay active")
	}
}

func TestDeleteListingWithdrawsPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.DeleteListing(ctx, f.bicycle.ID, f.alice.ID); !errors.Is(err, model.ErrAuthorization) {
		t.Errorf("delete by non-owner = %v, want ErrAuthorization", err)
	}

	changed, err := f.svc.DeleteListing(ctx, f.bicycle.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("DeleteListing: %v", err)
	}
	if !changed {
		t.Error("first delete should report a change")
	}
	changed, err = f.svc.DeleteListing(ctx, f.bicycle.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("second DeleteListing: %v", err)
	}
	if changed {
		t.Error("second delete should be a no-op")
	}

	got, err := store.GetProposal(ctx, f.db, p.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.Status != model.StatusRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	aliceNotes := unread(t, f.db, f.alice.ID)
	if len(aliceNotes) != 1 || !strings.Contains(aliceNotes[0].Message, "no longer available") {
		t.Errorf("alice notifications = %+v", aliceNotes)
	}
	if !active(t, f.db, f.camera.ID) {
		t.Error("offered listing should stay active")
	}
}

func TestFailingSinkStillCommits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.svc.Sink = failingSink{}

	p, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Accept(ctx, p.ID, f.bob.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	got, err := store.GetProposal(ctx, f.db, p.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.Status != model.StatusAccepted {
		t.Errorf("status = %q, want accepted", got.Status)
	}
	if active(t, f.db, f.camera.ID) || active(t, f.db, f.bicycle.ID) {
		t.Error("listings should be inactive")
	}
	if len(f.pub.notes) != 0 {
		t.Errorf("published = %d, want 0", len(f.pub.notes))
	}
}

func TestGetVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	carol := newAccount(t, f.db, "carol")

	p, err := f.svc.Create(ctx, f.alice.ID, f.bicycle.ID, f.camera.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, id := range []int64{f.alice.ID, f.bob.ID} {
		if _, err := f.svc.Get(ctx, p.ID, id); err != nil {
			t.Errorf("Get as %d: %v", id, err)
		}
	}
	if _, err := f.svc.Get(ctx, p.ID, carol.ID); !errors.Is(err, model.ErrAuthorization) {
		t.Errorf("Get as outsider = %v, want ErrAuthorization", err)
	}
	if _, err := f.svc.Get(ctx, 9999, f.alice.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}

	sent, received, err := f.svc.ListForAccount(ctx, f.bob.ID)
	if err != nil {
		t.Fatalf("ListForAccount: %v", err)
	}
	if len(sent) != 0 || len(received) != 1 {
		t.Errorf("bob sent=%d received=%d, want 0 and 1", len(sent), len(received))
	}
}

func TestConcurrentTransitions(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "barter.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	ctx := context.Background()
	svc := New(database, nil)
	alice := newAccount(t, database, "alice")
	bob := newAccount(t, database, "bob")
	camera := newListing(t, database, alice.ID, "Camera", model.CategoryElectronics, model.ConditionUsed)
	bicycle := newListing(t, database, bob.ID, "Bicycle", model.CategorySports, model.ConditionNew)

	p, err := svc.Create(ctx, alice.ID, bicycle.ID, camera.ID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	targets := []string{model.StatusAccepted, model.StatusRejected}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, p.ID, bob.ID, target)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, model.ErrInvalidState):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successful transitions = %d, want 1 (errors: %v)", ok, errs)
	}

	got, err := store.GetProposal(ctx, database, p.ID)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	// The listings' flags must agree with whichever transition won.
	wantActive := got.Status == model.StatusRejected
	if active(t, database, camera.ID) != wantActive || active(t, database, bicycle.ID) != wantActive {
		t.Errorf("listing flags inconsistent with status %q", got.Status)
	}
}
