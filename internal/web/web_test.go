package web

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/erazemk/barter/internal/auth"
	"github.com/erazemk/barter/internal/db"
	"github.com/erazemk/barter/internal/exchange"
	"github.com/erazemk/barter/internal/model"
	"github.com/erazemk/barter/internal/store"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	router, err := NewRouter(database, exchange.New(database, nil), testJWTSecret, 5)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, database
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

// fetch performs a request and returns the final status, body and path
// after redirects.
func fetch(t *testing.T, c *http.Client, method, u string, form url.Values) (int, string, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		t.Fatal(err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, u, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data), resp.Request.URL.Path
}

func mustAccount(t *testing.T, database *sql.DB, username string) *model.Account {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatal(err)
	}
	a, err := store.CreateAccount(context.Background(), database, username, hash)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func mustListing(t *testing.T, database *sql.DB, ownerID int64, title string) *model.Listing {
	t.Helper()
	l, err := store.CreateListing(context.Background(), database, ownerID, model.ListingInput{
		Title:     title,
		Category:  model.CategoryOther,
		Condition: model.ConditionUsed,
	})
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	return l
}

func login(t *testing.T, server *httptest.Server, username string) *http.Client {
	t.Helper()
	c := newClient(t)
	status, body, path := fetch(t, c, "POST", server.URL+"/login", url.Values{
		"username": {username},
		"password": {"password123"},
	})
	if status != http.StatusOK || path != "/ads" || !strings.Contains(body, username) {
		t.Fatalf("login %s: status=%d path=%s", username, status, path)
	}
	return c
}

func TestRegisterAndLogin(t *testing.T) {
	server, _ := setupTestServer(t)
	c := newClient(t)

	status, body, path := fetch(t, c, "POST", server.URL+"/register", url.Values{
		"username":         {"alice"},
		"password":         {"password123"},
		"password_confirm": {"password123"},
	})
	if status != http.StatusOK || path != "/login" || !strings.Contains(body, "Registration complete") {
		t.Fatalf("register: status=%d path=%s", status, path)
	}

	status, body, _ = fetch(t, c, "POST", server.URL+"/register", url.Values{
		"username":         {"alice"},
		"password":         {"password123"},
		"password_confirm": {"password123"},
	})
	if status != http.StatusBadRequest || !strings.Contains(body, "already taken") {
		t.Errorf("duplicate register: status=%d", status)
	}

	status, _, _ = fetch(t, c, "POST", server.URL+"/login", url.Values{
		"username": {"alice"},
		"password": {"wrong-password"},
	})
	if status != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", status)
	}

	login(t, server, "alice")
}

func TestAuthenticatedPagesRedirect(t *testing.T) {
	server, _ := setupTestServer(t)
	c := newClient(t)

	for _, p := range []string{"/proposals", "/ads/new", "/my/ads"} {
		_, body, path := fetch(t, c, "GET", server.URL+p, nil)
		if path != "/login" || !strings.Contains(body, `value="`+p+`"`) {
			t.Errorf("GET %s: ended at %s", p, path)
		}
	}

	if status, _, path := fetch(t, c, "GET", server.URL+"/ads", nil); status != http.StatusOK || path != "/ads" {
		t.Errorf("public browse: status=%d path=%s", status, path)
	}
}

func TestLogoutRevokesCookie(t *testing.T) {
	server, database := setupTestServer(t)
	mustAccount(t, database, "alice")
	c := login(t, server, "alice")

	u, _ := url.Parse(server.URL)
	stolen := c.Jar.Cookies(u)

	fetch(t, c, "POST", server.URL+"/logout", url.Values{})

	replay := newClient(t)
	replay.Jar.SetCookies(u, stolen)
	if _, _, path := fetch(t, replay, "GET", server.URL+"/proposals", nil); path != "/login" {
		t.Errorf("revoked cookie reached %s", path)
	}
}

func TestExchangeThroughPages(t *testing.T) {
	server, database := setupTestServer(t)
	ctx := context.Background()

	alice := mustAccount(t, database, "alice")
	bob := mustAccount(t, database, "bob")
	camera := mustListing(t, database, alice.ID, "Camera")
	bicycle := mustListing(t, database, bob.ID, "Bicycle")

	ac := login(t, server, "alice")
	bc := login(t, server, "bob")

	status, body, _ := fetch(t, ac, "GET", fmt.Sprintf("%s/ads/%d/propose", server.URL, bicycle.ID), nil)
	if status != http.StatusOK || !strings.Contains(body, "Camera") {
		t.Fatalf("propose page: status=%d", status)
	}

	status, body, path := fetch(t, ac, "POST", fmt.Sprintf("%s/ads/%d/propose", server.URL, bicycle.ID), url.Values{
		"offered": {fmt.Sprint(camera.ID)},
		"comment": {"Trade?"},
	})
	if status != http.StatusOK || !strings.HasPrefix(path, "/proposals/") || !strings.Contains(body, "Exchange proposal sent") {
		t.Fatalf("propose submit: status=%d path=%s", status, path)
	}

	sent, err := store.ListSentProposals(ctx, database, alice.ID)
	if err != nil || len(sent) != 1 {
		t.Fatalf("sent proposals: %v %d", err, len(sent))
	}
	p := sent[0]

	_, body, _ = fetch(t, bc, "GET", server.URL+"/ads", nil)
	if !strings.Contains(body, "1 unread") {
		t.Error("bob should see one unread notification in the layout")
	}

	_, body, _ = fetch(t, bc, "GET", fmt.Sprintf("%s/ads/%d", server.URL, bicycle.ID), nil)
	if !strings.Contains(body, "alice") || !strings.Contains(body, "Accept") {
		t.Error("owner detail page should list the pending proposal")
	}

	// Alice cannot decide on her own proposal.
	_, body, _ = fetch(t, ac, "POST", fmt.Sprintf("%s/proposals/%d", server.URL, p.ID), url.Values{"status": {"accepted"}})
	if !strings.Contains(body, "not yours") {
		t.Error("expected an authorization message for the sender")
	}

	status, body, path = fetch(t, bc, "POST", fmt.Sprintf("%s/proposals/%d", server.URL, p.ID), url.Values{"status": {"accepted"}})
	if status != http.StatusOK || path != "/proposals" || !strings.Contains(body, "Proposal accepted") {
		t.Fatalf("accept: status=%d path=%s", status, path)
	}

	for _, id := range []int64{camera.ID, bicycle.ID} {
		l, _ := store.GetListing(ctx, database, id)
		if l.Active {
			t.Errorf("listing %d still active", id)
		}
	}

	_, body, _ = fetch(t, bc, "POST", fmt.Sprintf("%s/proposals/%d", server.URL, p.ID), url.Values{"status": {"rejected"}})
	if !strings.Contains(body, "already accepted") {
		t.Error("expected an invalid state message for a second decision")
	}

	_, body, _ = fetch(t, bc, "GET", server.URL+"/ads", nil)
	if !strings.Contains(body, "2 unread") {
		t.Error("bob should see two unread notifications")
	}
	_, body, _ = fetch(t, bc, "POST", server.URL+"/notifications/read", url.Values{"next": {"/ads"}})
	if strings.Contains(body, "unread)") {
		t.Error("notifications should be cleared")
	}

	// Closed listings are hidden from others but visible to their owner.
	if status, _, _ := fetch(t, ac, "GET", fmt.Sprintf("%s/ads/%d", server.URL, bicycle.ID), nil); status != http.StatusNotFound {
		t.Errorf("closed listing for non-owner: expected 404, got %d", status)
	}
	if status, body, _ := fetch(t, bc, "GET", fmt.Sprintf("%s/ads/%d", server.URL, bicycle.ID), nil); status != http.StatusOK || !strings.Contains(body, "closed") {
		t.Errorf("closed listing for owner: status=%d", status)
	}
}

func TestProposeRules(t *testing.T) {
	server, database := setupTestServer(t)
	alice := mustAccount(t, database, "alice")
	mustAccount(t, database, "carol")
	camera := mustListing(t, database, alice.ID, "Camera")

	cc := login(t, server, "carol")
	_, body, path := fetch(t, cc, "GET", fmt.Sprintf("%s/ads/%d/propose", server.URL, camera.ID), nil)
	if path != "/ads/new" || !strings.Contains(body, "Create a listing first") {
		t.Errorf("no offers: ended at %s", path)
	}

	ac := login(t, server, "alice")
	_, body, path = fetch(t, ac, "GET", fmt.Sprintf("%s/ads/%d/propose", server.URL, camera.ID), nil)
	if path != "/ads" || !strings.Contains(body, "your own listing") {
		t.Errorf("own listing: ended at %s", path)
	}
}

func TestListingPages(t *testing.T) {
	server, database := setupTestServer(t)
	alice := mustAccount(t, database, "alice")
	mustAccount(t, database, "bob")
	for i := range 7 {
		mustListing(t, database, alice.ID, fmt.Sprintf("Board game %d", i))
	}

	c := newClient(t)
	_, body, _ := fetch(t, c, "GET", server.URL+"/ads?page=9", nil)
	if !strings.Contains(body, "Page 2 of 2") || !strings.Contains(body, "Board game 0") {
		t.Error("out-of-range page should show the last page")
	}

	ac := login(t, server, "alice")
	status, body, path := fetch(t, ac, "POST", server.URL+"/ads/new", url.Values{
		"title":     {"Tiny"},
		"category":  {model.CategoryBooks},
		"condition": {model.ConditionNew},
	})
	if status != http.StatusBadRequest || path != "/ads/new" || !strings.Contains(body, "at least 5") {
		t.Errorf("short title: status=%d path=%s", status, path)
	}

	status, body, path = fetch(t, ac, "POST", server.URL+"/ads/new", url.Values{
		"title":       {"Chess set"},
		"description": {"Wooden pieces"},
		"category":    {model.CategoryOther},
		"condition":   {model.ConditionLikeNew},
	})
	if status != http.StatusOK || !strings.HasPrefix(path, "/ads/") || !strings.Contains(body, "Your listing is posted") {
		t.Fatalf("create: status=%d path=%s", status, path)
	}

	bc := login(t, server, "bob")
	_, body, path = fetch(t, bc, "GET", server.URL+path+"/edit", nil)
	if path != "/ads" || !strings.Contains(body, "not your listing") {
		t.Errorf("non-owner edit: ended at %s", path)
	}

	_, body, _ = fetch(t, ac, "GET", server.URL+"/my/ads", nil)
	if !strings.Contains(body, "Chess set") || !strings.Contains(body, "Board game 6") {
		t.Error("my listings page is missing listings")
	}
}

func TestListingImageVisibility(t *testing.T) {
	server, database := setupTestServer(t)
	ctx := context.Background()
	alice := mustAccount(t, database, "alice")
	mustAccount(t, database, "bob")
	camera := mustListing(t, database, alice.ID, "Camera")
	if err := store.SetListingImage(ctx, database, camera.ID, alice.ID, []byte("\xff\xd8\xff\xe0jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("SetListingImage: %v", err)
	}
	imageURL := fmt.Sprintf("%s/ads/%d/image", server.URL, camera.ID)

	anon := newClient(t)
	if status, _, _ := fetch(t, anon, "GET", imageURL, nil); status != http.StatusOK {
		t.Fatalf("active listing image: expected 200, got %d", status)
	}

	if _, err := store.SoftDeleteListing(ctx, database, camera.ID, alice.ID); err != nil {
		t.Fatalf("SoftDeleteListing: %v", err)
	}

	if status, _, _ := fetch(t, anon, "GET", imageURL, nil); status != http.StatusNotFound {
		t.Errorf("deleted listing image, anonymous: expected 404, got %d", status)
	}
	if status, _, _ := fetch(t, login(t, server, "bob"), "GET", imageURL, nil); status != http.StatusNotFound {
		t.Errorf("deleted listing image, other account: expected 404, got %d", status)
	}
	if status, _, _ := fetch(t, login(t, server, "alice"), "GET", imageURL, nil); status != http.StatusOK {
		t.Errorf("deleted listing image, owner: expected 200, got %d", status)
	}
}
