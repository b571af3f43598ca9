package handlers

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

func TestEntryLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "entries@example.com", "pw12345")

	var created records.Entry
	resp := ts.do(t, "POST", "/api/entries", token, map[string]any{
		"title":   "First day",
		"content": "walked a lot",
		"date":    "2025-06-01",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Title != "First day" || created.Date == nil || *created.Date != "2025-06-01" {
		t.Fatalf("created = %+v", created)
	}

	var list records.EntryList
	resp = ts.do(t, "GET", "/api/entries", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &list)
	if len(list.Entries) != 1 || list.Degraded {
		t.Fatalf("list = %+v", list)
	}

	var got records.Entry
	resp = ts.do(t, "GET", "/api/entries/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &got)
	if got.Content != "walked a lot" {
		t.Fatalf("content = %q", got.Content)
	}

	var updated records.Entry
	resp = ts.do(t, "PUT", "/api/entries/"+created.ID, token, map[string]any{"title": "First day out"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	decodeBody(t, resp, &updated)
	if updated.Title != "First day out" || updated.Content != "walked a lot" {
		t.Fatalf("updated = %+v", updated)
	}

	resp = ts.do(t, "DELETE", "/api/entries/"+created.ID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = ts.do(t, "GET", "/api/entries/"+created.ID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
	// Deleting the same id again stays a no-op.
	resp = ts.do(t, "DELETE", "/api/entries/"+created.ID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("repeat delete status = %d", resp.StatusCode)
	}
}

func TestEntryMultipart(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "media@example.com", "pw12345")

	body, contentType := multipartBody(t,
		url.Values{"title": {"Hike"}, "content": {"photos attached"}, "date": {"2025-06-02"}},
		[]filePart{{"summit.png", []byte("png-bytes")}, {"trail.txt", []byte("trail notes")}},
	)
	resp := ts.doRaw(t, "POST", "/api/entries", token, contentType, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created records.Entry
	decodeBody(t, resp, &created)
	if created.Title != "Hike" || len(created.MediaURLs) != 2 {
		t.Fatalf("created = %+v", created)
	}
	for _, u := range created.MediaURLs {
		if !strings.HasPrefix(u, "/media/") {
			t.Fatalf("media url %q outside the blob namespace", u)
		}
	}

	// The first blob is served back by the media route.
	resp = ts.doRaw(t, "GET", created.MediaURLs[0], "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("blob fetch status = %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("blob content = %q, err %v", data, err)
	}

	t.Run("update keeps named media, sweeps the rest", func(t *testing.T) {
		kept, dropped := created.MediaURLs[0], created.MediaURLs[1]
		body, contentType := multipartBody(t,
			url.Values{"mediaUrls": {kept}},
			[]filePart{{"extra.txt", []byte("more")}},
		)
		resp := ts.doRaw(t, "PUT", "/api/entries/"+created.ID, token, contentType, body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("update status = %d", resp.StatusCode)
		}
		var updated records.Entry
		decodeBody(t, resp, &updated)
		if len(updated.MediaURLs) != 2 || updated.MediaURLs[0] != kept {
			t.Fatalf("media after update = %v", updated.MediaURLs)
		}

		if _, err := os.Stat(ts.blobPath(dropped)); !os.IsNotExist(err) {
			t.Fatalf("dropped blob still on disk: %v", err)
		}
		if _, err := os.Stat(ts.blobPath(kept)); err != nil {
			t.Fatalf("kept blob missing: %v", err)
		}
	})

	t.Run("delete sweeps all media", func(t *testing.T) {
		resp := ts.do(t, "GET", "/api/entries/"+created.ID, token, nil)
		var current records.Entry
		decodeBody(t, resp, &current)

		resp = ts.do(t, "DELETE", "/api/entries/"+created.ID, token, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("delete status = %d", resp.StatusCode)
		}
		for _, u := range current.MediaURLs {
			if _, err := os.Stat(ts.blobPath(u)); !os.IsNotExist(err) {
				t.Fatalf("blob %s survived the delete", u)
			}
		}
	})
}

func (ts *testServer) blobPath(mediaURL string) string {
	return filepath.Join(ts.blobs.Dir(), strings.TrimPrefix(mediaURL, "/media/"))
}

func TestEntryBadPayloads(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "strict@example.com", "pw12345")

	resp := ts.do(t, "POST", "/api/entries", token, map[string]any{"title": "x", "date": "not-a-date"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", resp.StatusCode)
	}
	msg, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(msg), "invalid date") {
		t.Fatalf("error body = %q", msg)
	}

	resp = ts.doRaw(t, "POST", "/api/entries", token, "application/json", strings.NewReader("{broken"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("garbage body status = %d", resp.StatusCode)
	}

	resp = ts.do(t, "GET", "/api/entries/no-such-id", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", resp.StatusCode)
	}

	resp = ts.do(t, "GET", "/api/entries?start_date=junk", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad range status = %d", resp.StatusCode)
	}
}

func TestEntriesAreOwnerScoped(t *testing.T) {
	ts := newTestServer(t)
	mine := ts.signup(t, "mine@example.com", "pw12345")
	theirs := ts.signup(t, "theirs@example.com", "pw12345")

	var created records.Entry
	resp := ts.do(t, "POST", "/api/entries", mine, map[string]any{"title": "secret"})
	decodeBody(t, resp, &created)

	resp = ts.do(t, "GET", "/api/entries/"+created.ID, theirs, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign get status = %d, want 404", resp.StatusCode)
	}

	var list records.EntryList
	resp = ts.do(t, "GET", "/api/entries", theirs, nil)
	decodeBody(t, resp, &list)
	if len(list.Entries) != 0 {
		t.Fatalf("foreign listing sees %d entries", len(list.Entries))
	}
}
