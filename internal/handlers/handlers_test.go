package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"notesd/internal/dispatch"
	"notesd/internal/events"
	"notesd/internal/export"
	"notesd/internal/note"
	"notesd/internal/reminder"
	"notesd/internal/scheduler"
	"notesd/internal/storage"
)

type quietNotifier struct{}

func (quietNotifier) Notify(title, message string, playSound, urgent bool) error { return nil }

func newTestServer(t *testing.T) (*mux.Router, storage.Storage, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	store := storage.NewMemoryStorage()
	hub := events.NewHub()
	go hub.Run()

	d := dispatch.New(quietNotifier{}, hub)
	sched := scheduler.New(store, scheduler.NewRegistry(clk), d, clk)
	d.SetCompleter(sched)

	srv := New(store, sched, d, hub, export.New(afero.NewMemMapFs()), "/exports")
	return srv.Router(), store, clk
}

func seedNote(t *testing.T, store storage.Storage, title string) int64 {
	t.Helper()
	n := &note.Note{Title: title, Text: "body"}
	n.ApplyDefaults()
	if err := store.UpsertNotes([]*note.Note{n}); err != nil {
		t.Fatalf("UpsertNotes failed: %v", err)
	}
	return n.ID
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateReminderHandler(t *testing.T) {
	router, store, clk := newTestServer(t)
	noteID := seedNote(t, store, "with reminder")

	at := clk.Now().Add(time.Hour).UnixMilli()
	w := doJSON(t, router, "POST", "/reminders", map[string]any{
		"note_id":    noteID,
		"trigger_at": at,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var got reminder.Reminder
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.ID == 0 {
		t.Error("expected an assigned reminder id")
	}
	if got.Title != reminder.DefaultTitle || got.Message != reminder.DefaultMessage {
		t.Errorf("defaults not applied: %+v", got)
	}
	if !got.PlaySound {
		t.Error("play_sound should default to true")
	}

	stored, err := store.GetReminder(got.ID)
	if err != nil {
		t.Fatalf("GetReminder failed: %v", err)
	}
	if stored.TriggerAt != at {
		t.Errorf("stored trigger: got %d, want %d", stored.TriggerAt, at)
	}
}

func TestCreateReminderHandlerRejectsBadInput(t *testing.T) {
	router, store, clk := newTestServer(t)
	seedNote(t, store, "unused")
	at := clk.Now().Add(time.Hour).UnixMilli()

	// Missing note id
	w := doJSON(t, router, "POST", "/reminders", map[string]any{"trigger_at": at})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing note_id: expected 400, got %d", w.Code)
	}

	// Missing trigger
	w = doJSON(t, router, "POST", "/reminders", map[string]any{"note_id": 1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing trigger_at: expected 400, got %d", w.Code)
	}

	// Unknown note
	w = doJSON(t, router, "POST", "/reminders", map[string]any{"note_id": 99999, "trigger_at": at})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown note: expected 400, got %d", w.Code)
	}
}

func TestCompleteReminderHandler(t *testing.T) {
	router, store, clk := newTestServer(t)
	noteID := seedNote(t, store, "n")
	at := clk.Now().Add(time.Hour).UnixMilli()

	w := doJSON(t, router, "POST", "/reminders", map[string]any{"note_id": noteID, "trigger_at": at})
	var created reminder.Reminder
	json.NewDecoder(w.Body).Decode(&created)

	w = doJSON(t, router, "POST", fmt.Sprintf("/reminders/%d/complete", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	stored, _ := store.GetReminder(created.ID)
	if !stored.Completed {
		t.Error("expected reminder completed")
	}

	// Completing again stays 204
	w = doJSON(t, router, "POST", fmt.Sprintf("/reminders/%d/complete", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("repeat complete: expected 204, got %d", w.Code)
	}
}

func TestDeleteReminderHandler(t *testing.T) {
	router, store, clk := newTestServer(t)
	noteID := seedNote(t, store, "n")
	at := clk.Now().Add(time.Hour).UnixMilli()

	w := doJSON(t, router, "POST", "/reminders", map[string]any{"note_id": noteID, "trigger_at": at})
	var created reminder.Reminder
	json.NewDecoder(w.Body).Decode(&created)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/reminders/%d", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if _, err := store.GetReminder(created.ID); err == nil {
		t.Error("expected reminder gone after delete")
	}

	// Idempotent
	w = doJSON(t, router, "DELETE", fmt.Sprintf("/reminders/%d", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("repeat delete: expected 204, got %d", w.Code)
	}
}

func TestListNoteRemindersHandler(t *testing.T) {
	router, store, clk := newTestServer(t)
	noteID := seedNote(t, store, "n")

	// Empty list renders as [], not null
	w := doJSON(t, router, "GET", fmt.Sprintf("/notes/%d/reminders", noteID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := bytes.TrimSpace(w.Body.Bytes()); string(body) != "[]" {
		t.Errorf("empty list body: got %s, want []", body)
	}

	now := clk.Now()
	doJSON(t, router, "POST", "/reminders", map[string]any{"note_id": noteID, "trigger_at": now.Add(2 * time.Hour).UnixMilli()})
	doJSON(t, router, "POST", "/reminders", map[string]any{"note_id": noteID, "trigger_at": now.Add(time.Hour).UnixMilli()})

	w = doJSON(t, router, "GET", fmt.Sprintf("/notes/%d/reminders", noteID), nil)
	var list []*reminder.Reminder
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(list))
	}
	if list[0].TriggerAt > list[1].TriggerAt {
		t.Error("reminders not ordered by trigger time")
	}
}

func TestClickReminderHandler(t *testing.T) {
	router, store, clk := newTestServer(t)
	noteID := seedNote(t, store, "n")

	w := doJSON(t, router, "POST", "/reminders/424242/click", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown reminder click: expected 404, got %d", w.Code)
	}

	cw := doJSON(t, router, "POST", "/reminders", map[string]any{
		"note_id":    noteID,
		"trigger_at": clk.Now().Add(time.Hour).UnixMilli(),
	})
	var created reminder.Reminder
	json.NewDecoder(cw.Body).Decode(&created)

	w = doJSON(t, router, "POST", fmt.Sprintf("/reminders/%d/click", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("click: expected 204, got %d", w.Code)
	}
}

func TestSaveNotesHandler(t *testing.T) {
	router, store, _ := newTestServer(t)

	w := doJSON(t, router, "PUT", "/notes", []map[string]any{
		{"title": "first", "text": "a"},
		{"title": "second", "text": "b"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var saved []*note.Note
	if err := json.NewDecoder(w.Body).Decode(&saved); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(saved) != 2 || saved[0].ID == 0 || saved[1].ID == 0 {
		t.Fatalf("expected 2 notes with ids, got %+v", saved)
	}
	if saved[0].Color != "#ffff99" {
		t.Errorf("defaults not applied: %+v", saved[0])
	}

	// Saving a working set without the second note removes it
	saved[0].Text = "edited"
	w = doJSON(t, router, "PUT", "/notes", []*note.Note{saved[0]})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, err := store.GetNote(saved[1].ID); err == nil {
		t.Error("expected dropped note removed")
	}
	got, err := store.GetNote(saved[0].ID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.Text != "edited" {
		t.Errorf("note text: got %q, want edited", got.Text)
	}
}

func TestSaveNotesCancelsRemindersOfRemovedNotes(t *testing.T) {
	router, store, clk := newTestServer(t)
	keepID := seedNote(t, store, "keep")
	dropID := seedNote(t, store, "drop")

	w := doJSON(t, router, "POST", "/reminders", map[string]any{
		"note_id":    dropID,
		"trigger_at": clk.Now().Add(time.Hour).UnixMilli(),
	})
	var created reminder.Reminder
	json.NewDecoder(w.Body).Decode(&created)

	keep, _ := store.GetNote(keepID)
	w = doJSON(t, router, "PUT", "/notes", []*note.Note{keep})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, err := store.GetNote(dropID); err == nil {
		t.Error("expected dropped note removed")
	}
	if _, err := store.GetReminder(created.ID); err == nil {
		t.Error("expected reminder of dropped note removed")
	}
}

func TestDeleteNoteHandler(t *testing.T) {
	router, store, clk := newTestServer(t)
	noteID := seedNote(t, store, "doomed")

	w := doJSON(t, router, "POST", "/reminders", map[string]any{
		"note_id":    noteID,
		"trigger_at": clk.Now().Add(time.Hour).UnixMilli(),
	})
	var created reminder.Reminder
	json.NewDecoder(w.Body).Decode(&created)

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/notes/%d", noteID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if _, err := store.GetNote(noteID); err == nil {
		t.Error("expected note removed")
	}
	if _, err := store.GetReminder(created.ID); err == nil {
		t.Error("expected reminder cascaded away")
	}
}

func TestImageHandlers(t *testing.T) {
	router, store, _ := newTestServer(t)
	noteID := seedNote(t, store, "illustrated")

	// Missing payload
	w := doJSON(t, router, "POST", fmt.Sprintf("/notes/%d/images", noteID), map[string]any{"file_name": "a.png"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing image_data: expected 400, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", fmt.Sprintf("/notes/%d/images", noteID), map[string]any{
		"image_data": "data:image/png;base64,AAAA",
		"file_name":  "a.png",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var img note.Image
	json.NewDecoder(w.Body).Decode(&img)
	if img.ID == 0 {
		t.Fatal("expected an assigned image id")
	}
	if img.ImageData != "" {
		t.Error("create response should not echo image data")
	}

	w = doJSON(t, router, "GET", fmt.Sprintf("/notes/%d/images", noteID), nil)
	var list []*note.Image
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 1 {
		t.Fatalf("expected 1 image, got %d", len(list))
	}

	w = doJSON(t, router, "GET", fmt.Sprintf("/images/%d", img.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]string
	json.NewDecoder(w.Body).Decode(&payload)
	if payload["image_data"] != "data:image/png;base64,AAAA" {
		t.Errorf("image data: got %q", payload["image_data"])
	}

	w = doJSON(t, router, "DELETE", fmt.Sprintf("/images/%d", img.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = doJSON(t, router, "GET", fmt.Sprintf("/images/%d", img.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted image fetch: expected 404, got %d", w.Code)
	}
}

func TestSettingsHandlers(t *testing.T) {
	router, _, _ := newTestServer(t)

	w := doJSON(t, router, "GET", "/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var settings map[string]string
	json.NewDecoder(w.Body).Decode(&settings)
	if settings["theme"] != "light" {
		t.Errorf("default theme: got %q, want light", settings["theme"])
	}

	w = doJSON(t, router, "PUT", "/settings", map[string]string{"theme": "dark"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/settings", nil)
	json.NewDecoder(w.Body).Decode(&settings)
	if settings["theme"] != "dark" {
		t.Errorf("saved theme: got %q, want dark", settings["theme"])
	}
}

func TestExportNotesHandler(t *testing.T) {
	router, store, _ := newTestServer(t)
	seedNote(t, store, "exported")

	w := doJSON(t, router, "POST", "/export", map[string]any{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result struct {
		Path  string `json:"path"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Count != 1 {
		t.Errorf("export count: got %d, want 1", result.Count)
	}
	if result.Path == "" {
		t.Error("expected a non-empty export path")
	}
}
