package handlers

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/media"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/middleware"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

// maxUploadBytes caps how much of a multipart submission is held in memory.
const maxUploadBytes = 32 << 20

type EntryHandler struct {
	entries *records.EntryService
	blobs   media.BlobStore
	log     *zap.Logger
}

func NewEntryHandler(entries *records.EntryService, blobs media.BlobStore, log *zap.Logger) *EntryHandler {
	return &EntryHandler{entries: entries, blobs: blobs, log: log}
}

// List returns the caller's entries, newest first. Optional query params
// start_date and end_date (YYYY-MM-DD) bound the listing by entry date.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	q := r.URL.Query()
	list, err := h.entries.List(r.Context(), userID, records.DateRange{From: q.Get("start_date"), To: q.Get("end_date")})
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	entry, err := h.entries.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Create accepts either a JSON body or a multipart form with file parts
// under "media". Every file is stored before the record is written, so a
// record never references an unfinished upload.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	input, uploaded, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}

	entry, err := h.entries.Create(r.Context(), userID, input)
	if err != nil {
		h.discardUploads(context.WithoutCancel(r.Context()), uploaded)
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Update patches an entry. Fields absent from the payload stay untouched;
// a null or empty date clears it.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	input, uploaded, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}

	entry, err := h.entries.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		h.discardUploads(context.WithoutCancel(r.Context()), uploaded)
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Delete removes an entry and then its media. Deleting an id that is
// already gone answers 204 as well.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	if err := h.entries.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil && !records.IsNotFound(err) {
		writeErr(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeEntry reads an entry payload from a JSON body or a multipart form.
// On the multipart path the file parts are uploaded here and the second
// return value lists their blob URLs so a failed submission can discard
// them. Writes the error response itself when ok is false.
func (h *EntryHandler) decodeEntry(w http.ResponseWriter, r *http.Request) (records.EntryInput, []string, bool) {
	var input records.EntryInput
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return input, nil, false
		}
		return input, nil, true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return input, nil, false
	}
	input = entryFormInput(r.MultipartForm)

	uploaded, err := h.storeUploads(r.Context(), r.MultipartForm.File["media"])
	if err != nil {
		h.log.Error("media upload failed", zap.Error(err))
		http.Error(w, "could not store media", http.StatusInternalServerError)
		return input, nil, false
	}
	if len(uploaded) > 0 {
		urls := uploaded
		if input.MediaURLs != nil {
			urls = append(append([]string{}, *input.MediaURLs...), uploaded...)
		}
		input.MediaURLs = &urls
	}
	return input, uploaded, true
}

// entryFormInput maps multipart form fields onto an entry input. A present
// "date" field with an empty value clears the date, mirroring the JSON
// null. Repeated "mediaUrls" values name the blobs the client keeps.
func entryFormInput(form *multipart.Form) records.EntryInput {
	var input records.EntryInput
	if v, ok := formValue(form, "title"); ok {
		input.Title = &v
	}
	if v, ok := formValue(form, "content"); ok {
		input.Content = &v
	}
	if v, ok := formValue(form, "date"); ok {
		input.Date = records.OptionalString{Set: true, Value: &v}
	}
	if vs, ok := form.Value["mediaUrls"]; ok {
		kept := append([]string{}, vs...)
		input.MediaURLs = &kept
	}
	return input
}

func formValue(form *multipart.Form, key string) (string, bool) {
	vs, ok := form.Value[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// storeUploads saves every file part concurrently and returns blob URLs
// in the order the parts were sent. On failure the parts that did land
// are removed before returning.
func (h *EntryHandler) storeUploads(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, fh := range files {
		g.Go(func() error {
			f, err := fh.Open()
			if err != nil {
				return err
			}
			defer f.Close()
			url, err := h.blobs.Save(gctx, fh.Filename, f)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.discardUploads(context.WithoutCancel(ctx), urls)
		return nil, err
	}
	return urls, nil
}

// discardUploads best-effort removes blobs stored for a submission that
// never became a record.
func (h *EntryHandler) discardUploads(ctx context.Context, urls []string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := h.blobs.Remove(ctx, u); err != nil {
			h.log.Warn("orphan blob left behind", zap.String("url", u), zap.Error(err))
		}
	}
}
