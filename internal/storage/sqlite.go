package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"notesd/internal/note"
	"notesd/internal/reminder"

	"github.com/mattn/go-sqlite3"
)

type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStorage opens (or creates) the database at dbPath with
// foreign keys enabled and ensures the schema exists.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT,
			text TEXT,
			formatted_text TEXT,
			color TEXT DEFAULT '#ffff99',
			font_size TEXT DEFAULT 'medium',
			x INTEGER,
			y INTEGER,
			width INTEGER DEFAULT 200,
			height INTEGER DEFAULT 200,
			always_on_top INTEGER DEFAULT 0,
			created_at INTEGER DEFAULT 0,
			font_family TEXT DEFAULT 'default',
			has_checklist INTEGER DEFAULT 0,
			has_images INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS note_images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			note_id INTEGER NOT NULL,
			image_data TEXT NOT NULL,
			file_name TEXT,
			created_at INTEGER DEFAULT 0,
			FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			note_id INTEGER NOT NULL,
			reminder_time INTEGER NOT NULL,
			title TEXT,
			message TEXT,
			is_completed INTEGER DEFAULT 0,
			created_at INTEGER DEFAULT 0,
			play_sound INTEGER DEFAULT 1,
			urgent_style INTEGER DEFAULT 0,
			FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	// Seed default settings without clobbering saved ones
	for key, value := range DefaultSettings() {
		_, err := s.db.Exec("INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)", key, value)
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}

	return nil
}

// Note operations
func (s *SQLiteStorage) UpsertNotes(notes []*note.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, n := range notes {
		if n.ID == 0 {
			res, err := tx.Exec(`INSERT INTO notes
				(title, text, formatted_text, color, font_size, x, y, width, height,
				always_on_top, created_at, font_family, has_checklist, has_images)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				n.Title, n.Text, n.FormattedText, n.Color, n.FontSize, n.X, n.Y,
				n.Width, n.Height, n.AlwaysOnTop, n.CreatedAt, n.FontFamily,
				n.HasChecklist, n.HasImages)
			if err != nil {
				return fmt.Errorf("failed to insert note: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get inserted note id: %w", err)
			}
			n.ID = id
			continue
		}
		// INSERT OR REPLACE would delete the existing row first and
		// cascade away the note's reminders and images; the upsert
		// keeps the parent row in place.
		_, err := tx.Exec(`INSERT INTO notes
			(id, title, text, formatted_text, color, font_size, x, y, width, height,
			always_on_top, created_at, font_family, has_checklist, has_images)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, text = excluded.text,
			formatted_text = excluded.formatted_text, color = excluded.color,
			font_size = excluded.font_size, x = excluded.x, y = excluded.y,
			width = excluded.width, height = excluded.height,
			always_on_top = excluded.always_on_top, created_at = excluded.created_at,
			font_family = excluded.font_family, has_checklist = excluded.has_checklist,
			has_images = excluded.has_images`,
			n.ID, n.Title, n.Text, n.FormattedText, n.Color, n.FontSize, n.X, n.Y,
			n.Width, n.Height, n.AlwaysOnTop, n.CreatedAt, n.FontFamily,
			n.HasChecklist, n.HasImages)
		if err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}
	}

	return tx.Commit()
}

const noteColumns = `id, title, text, formatted_text, color, font_size, x, y,
	width, height, always_on_top, created_at, font_family, has_checklist, has_images`

func scanNote(row interface{ Scan(...any) error }) (*note.Note, error) {
	var n note.Note
	err := row.Scan(&n.ID, &n.Title, &n.Text, &n.FormattedText, &n.Color,
		&n.FontSize, &n.X, &n.Y, &n.Width, &n.Height, &n.AlwaysOnTop,
		&n.CreatedAt, &n.FontFamily, &n.HasChecklist, &n.HasImages)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *SQLiteStorage) GetNote(id int64) (*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := scanNote(s.db.QueryRow("SELECT "+noteColumns+" FROM notes WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) ListNotes() ([]*note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT " + noteColumns + " FROM notes ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*note.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *SQLiteStorage) DeleteNote(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reminder and image rows go with the note via ON DELETE CASCADE
	_, err := s.db.Exec("DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// Reminder operations
func (s *SQLiteStorage) InsertReminder(r *reminder.Reminder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT INTO reminders
		(note_id, reminder_time, title, message, is_completed, created_at, play_sound, urgent_style)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.NoteID, r.TriggerAt, r.Title, r.Message, r.Completed, r.CreatedAt,
		r.PlaySound, r.UrgentStyle)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return 0, fmt.Errorf("%w: note %d", ErrNoteNotFound, r.NoteID)
		}
		return 0, fmt.Errorf("failed to insert reminder: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted reminder id: %w", err)
	}
	return id, nil
}

const reminderColumns = `id, note_id, reminder_time, title, message, is_completed,
	created_at, play_sound, urgent_style`

func scanReminder(row interface{ Scan(...any) error }) (*reminder.Reminder, error) {
	var r reminder.Reminder
	err := row.Scan(&r.ID, &r.NoteID, &r.TriggerAt, &r.Title, &r.Message,
		&r.Completed, &r.CreatedAt, &r.PlaySound, &r.UrgentStyle)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStorage) GetReminder(id int64) (*reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := scanReminder(s.db.QueryRow("SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

func (s *SQLiteStorage) MarkReminderCompleted(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("UPDATE reminders SET is_completed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to complete reminder: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteReminder(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListPendingReminders(asOf int64) ([]*reminder.Reminder, error) {
	return s.queryReminders(`SELECT `+reminderColumns+` FROM reminders
		WHERE reminder_time > ? AND is_completed = 0
		ORDER BY reminder_time ASC, id ASC`, asOf)
}

func (s *SQLiteStorage) ListDueReminders(asOf int64) ([]*reminder.Reminder, error) {
	return s.queryReminders(`SELECT `+reminderColumns+` FROM reminders
		WHERE reminder_time <= ? AND is_completed = 0
		ORDER BY reminder_time ASC, id ASC`, asOf)
}

func (s *SQLiteStorage) ListNoteReminders(noteID int64) ([]*reminder.Reminder, error) {
	return s.queryReminders(`SELECT `+reminderColumns+` FROM reminders
		WHERE note_id = ? AND is_completed = 0
		ORDER BY reminder_time ASC, id ASC`, noteID)
}

func (s *SQLiteStorage) queryReminders(query string, arg int64) ([]*reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// Image operations
func (s *SQLiteStorage) SaveImage(img *note.Image) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT INTO note_images (note_id, image_data, file_name, created_at)
		VALUES (?, ?, ?, ?)`,
		img.NoteID, img.ImageData, img.FileName, img.CreatedAt)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
			return 0, fmt.Errorf("%w: note %d", ErrNoteNotFound, img.NoteID)
		}
		return 0, fmt.Errorf("failed to save image: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted image id: %w", err)
	}

	if _, err := s.db.Exec("UPDATE notes SET has_images = 1 WHERE id = ?", img.NoteID); err != nil {
		return 0, fmt.Errorf("failed to flag note images: %w", err)
	}
	return id, nil
}

func (s *SQLiteStorage) ListImages(noteID int64) ([]*note.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, note_id, file_name, created_at FROM note_images
		WHERE note_id = ?
		ORDER BY created_at DESC, id DESC`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*note.Image
	for rows.Next() {
		var img note.Image
		if err := rows.Scan(&img.ID, &img.NoteID, &img.FileName, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, &img)
	}
	return images, rows.Err()
}

func (s *SQLiteStorage) GetImageData(id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.db.QueryRow("SELECT image_data FROM note_images WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("failed to get image data: %w", err)
	}
	return data, nil
}

func (s *SQLiteStorage) DeleteImage(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var noteID int64
	err := s.db.QueryRow("SELECT note_id FROM note_images WHERE id = ?", id).Scan(&noteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to look up image: %w", err)
	}

	if _, err := s.db.Exec("DELETE FROM note_images WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	var remaining int
	err = s.db.QueryRow("SELECT COUNT(*) FROM note_images WHERE note_id = ?", noteID).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("failed to count images: %w", err)
	}
	if remaining == 0 {
		if _, err := s.db.Exec("UPDATE notes SET has_images = 0 WHERE id = ?", noteID); err != nil {
			return fmt.Errorf("failed to clear note images flag: %w", err)
		}
	}
	return nil
}

// Settings operations
func (s *SQLiteStorage) LoadSettings() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SQLiteStorage) SaveSettings(settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range settings {
		if _, err := tx.Exec("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}
