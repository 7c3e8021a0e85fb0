package note

// Image is an attachment belonging to a note. ImageData holds the
// encoded payload (a data URL or base64 string supplied by the UI) and
// is omitted from listings.
type Image struct {
	ID        int64  `json:"id"`
	NoteID    int64  `json:"note_id"`
	ImageData string `json:"image_data,omitempty"`
	FileName  string `json:"file_name"`
	CreatedAt int64  `json:"created_at"`
}
