package note

// Note is a single sticky note. Coordinates and size are in screen
// pixels; CreatedAt is an epoch-millisecond timestamp.
type Note struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Text          string `json:"text"`
	FormattedText string `json:"formatted_text"`
	Color         string `json:"color"`
	FontSize      string `json:"font_size"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	AlwaysOnTop   bool   `json:"always_on_top"`
	CreatedAt     int64  `json:"created_at"`
	FontFamily    string `json:"font_family"`
	HasChecklist  bool   `json:"has_checklist"`
	HasImages     bool   `json:"has_images"`
}

// ApplyDefaults fills the presentation fields the UI may omit.
func (n *Note) ApplyDefaults() {
	if n.Color == "" {
		n.Color = "#ffff99"
	}
	if n.FontSize == "" {
		n.FontSize = "medium"
	}
	if n.FontFamily == "" {
		n.FontFamily = "default"
	}
	if n.Width == 0 {
		n.Width = 200
	}
	if n.Height == 0 {
		n.Height = 200
	}
}

// Clone returns a copy so callers cannot mutate stored state.
func (n *Note) Clone() *Note {
	c := *n
	return &c
}
