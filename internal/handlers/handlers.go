package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"notesd/internal/dispatch"
	"notesd/internal/events"
	"notesd/internal/export"
	"notesd/internal/note"
	"notesd/internal/reminder"
	"notesd/internal/scheduler"
	"notesd/internal/storage"
)

// Server is the command surface the desktop UI talks to. Reminder
// mutations go through the Scheduler; note, image and settings
// operations hit storage directly.
type Server struct {
	store     storage.Storage
	sched     *scheduler.Scheduler
	dispatch  *dispatch.Dispatcher
	hub       *events.Hub
	exporter  *export.Exporter
	exportDir string
}

func New(store storage.Storage, sched *scheduler.Scheduler, d *dispatch.Dispatcher, hub *events.Hub, exporter *export.Exporter, exportDir string) *Server {
	return &Server{
		store:     store,
		sched:     sched,
		dispatch:  d,
		hub:       hub,
		exporter:  exporter,
		exportDir: exportDir,
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	// Reminder routes
	r.HandleFunc("/reminders", s.CreateReminderHandler).Methods("POST")
	r.HandleFunc("/reminders/{id}/complete", s.CompleteReminderHandler).Methods("POST")
	r.HandleFunc("/reminders/{id}/click", s.ClickReminderHandler).Methods("POST")
	r.HandleFunc("/reminders/{id}", s.DeleteReminderHandler).Methods("DELETE")
	r.HandleFunc("/notes/{id}/reminders", s.ListNoteRemindersHandler).Methods("GET")

	// Note routes
	r.HandleFunc("/notes", s.ListNotesHandler).Methods("GET")
	r.HandleFunc("/notes", s.SaveNotesHandler).Methods("PUT")
	r.HandleFunc("/notes/{id}", s.DeleteNoteHandler).Methods("DELETE")

	// Image routes
	r.HandleFunc("/notes/{id}/images", s.SaveImageHandler).Methods("POST")
	r.HandleFunc("/notes/{id}/images", s.ListImagesHandler).Methods("GET")
	r.HandleFunc("/images/{id}", s.GetImageDataHandler).Methods("GET")
	r.HandleFunc("/images/{id}", s.DeleteImageHandler).Methods("DELETE")

	// Settings routes
	r.HandleFunc("/settings", s.GetSettingsHandler).Methods("GET")
	r.HandleFunc("/settings", s.SaveSettingsHandler).Methods("PUT")

	// Export
	r.HandleFunc("/export", s.ExportNotesHandler).Methods("POST")

	// UI event channel
	r.HandleFunc("/ws", s.hub.ServeWS)

	return r
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Reminder handlers

func (s *Server) CreateReminderHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NoteID      int64  `json:"note_id"`
		TriggerAt   int64  `json:"trigger_at"`
		Title       string `json:"title"`
		Message     string `json:"message"`
		PlaySound   *bool  `json:"play_sound"`
		UrgentStyle bool   `json:"urgent_style"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Printf("%s %s %s %d - Bad Request: %v", r.Method, r.URL.Path, r.UserAgent(), http.StatusBadRequest, err)
		return
	}

	playSound := true
	if req.PlaySound != nil {
		playSound = *req.PlaySound
	}

	rem := reminder.New(req.NoteID, req.TriggerAt, req.Title, req.Message, playSound, req.UrgentStyle)
	id, err := s.sched.Create(rem)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
			log.Printf("%s %s %s %d - Bad Request: %v", r.Method, r.URL.Path, r.UserAgent(), http.StatusBadRequest, err)
		case errors.Is(err, storage.ErrNoteNotFound):
			http.Error(w, "note not found", http.StatusBadRequest)
			log.Printf("%s %s %s %d - Bad Request: note %d does not exist", r.Method, r.URL.Path, r.UserAgent(), http.StatusBadRequest, req.NoteID)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			log.Printf("%s %s %s %d - %v", r.Method, r.URL.Path, r.UserAgent(), http.StatusInternalServerError, err)
		}
		return
	}

	rem.ID = id
	writeJSON(w, http.StatusCreated, rem)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusCreated)
}

func (s *Server) CompleteReminderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid reminder id", http.StatusBadRequest)
		return
	}
	if err := s.sched.Complete(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusNoContent)
}

func (s *Server) DeleteReminderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid reminder id", http.StatusBadRequest)
		return
	}
	if err := s.sched.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusNoContent)
}

func (s *Server) ListNoteRemindersHandler(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}
	list, err := s.sched.ListForNote(noteID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*reminder.Reminder{}
	}
	writeJSON(w, http.StatusOK, list)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusOK)
}

func (s *Server) ClickReminderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid reminder id", http.StatusBadRequest)
		return
	}
	rem, err := s.store.GetReminder(id)
	if err != nil {
		http.NotFound(w, r)
		log.Printf("%s %s %s %d - Not Found: reminder %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusNotFound, id)
		return
	}
	if err := s.dispatch.Click(rem); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusNoContent)
}

// Note handlers

func (s *Server) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListNotes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*note.Note{}
	}
	writeJSON(w, http.StatusOK, list)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusOK)
}

// SaveNotesHandler accepts the UI's full working set. Notes missing
// from the set are deleted through the Scheduler so their reminders
// are cancelled before the store cascades.
func (s *Server) SaveNotesHandler(w http.ResponseWriter, r *http.Request) {
	var incoming []*note.Note
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Printf("%s %s %s %d - Bad Request: %v", r.Method, r.URL.Path, r.UserAgent(), http.StatusBadRequest, err)
		return
	}

	keep := make(map[int64]bool, len(incoming))
	for _, n := range incoming {
		n.ApplyDefaults()
		if n.ID != 0 {
			keep[n.ID] = true
		}
	}

	existing, err := s.store.ListNotes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, n := range existing {
		if !keep[n.ID] {
			if err := s.sched.DeleteNote(n.ID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}

	if err := s.store.UpsertNotes(incoming); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, incoming)
	log.Printf("%s %s %s %d - saved %d notes", r.Method, r.URL.Path, r.UserAgent(), http.StatusOK, len(incoming))
}

func (s *Server) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}
	if err := s.sched.DeleteNote(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusNoContent)
}

// Image handlers

func (s *Server) SaveImageHandler(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}
	var req struct {
		ImageData string `json:"image_data"`
		FileName  string `json:"file_name"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ImageData == "" {
		http.Error(w, "image_data is required", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		req.FileName = "image.png"
	}

	img := &note.Image{
		NoteID:    noteID,
		ImageData: req.ImageData,
		FileName:  req.FileName,
		CreatedAt: req.CreatedAt,
	}
	id, err := s.store.SaveImage(img)
	if err != nil {
		if errors.Is(err, storage.ErrNoteNotFound) {
			http.Error(w, "note not found", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	img.ID = id
	img.ImageData = ""
	writeJSON(w, http.StatusCreated, img)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusCreated)
}

func (s *Server) ListImagesHandler(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}
	list, err := s.store.ListImages(noteID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*note.Image{}
	}
	writeJSON(w, http.StatusOK, list)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusOK)
}

func (s *Server) GetImageDataHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid image id", http.StatusBadRequest)
		return
	}
	data, err := s.store.GetImageData(id)
	if err != nil {
		if errors.Is(err, storage.ErrImageNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_data": data})
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusOK)
}

func (s *Server) DeleteImageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid image id", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteImage(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusNoContent)
}

// Settings handlers

func (s *Server) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.LoadSettings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusOK)
}

func (s *Server) SaveSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.SaveSettings(settings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	log.Printf("%s %s %s %d", r.Method, r.URL.Path, r.UserAgent(), http.StatusNoContent)
}

// Export handler

func (s *Server) ExportNotesHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"directory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Directory == "" {
		req.Directory = s.exportDir
	}

	notes, err := s.store.ListNotes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	path, count, err := s.exporter.Export(req.Directory, notes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "count": count})
	log.Printf("%s %s %s %d - exported %d notes to %s", r.Method, r.URL.Path, r.UserAgent(), http.StatusOK, count, path)
}
