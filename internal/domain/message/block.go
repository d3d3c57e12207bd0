package message

// ControlType tags the variant of an interactive control.
type ControlType string

const (
	// Inline (per-message) variants.
	ControlCallback     ControlType = "callback"
	ControlURL          ControlType = "url"
	ControlWebApp       ControlType = "webapp"
	ControlSwitchInline ControlType = "switch_inline_query"

	// Reply (per-conversation) variants. ControlWebApp is valid here too.
	ControlText ControlType = "plain"
)

// ControlSpec is a declarative description of a single button. The meaning
// of Data depends on Type: an opaque token for callback buttons, a link for
// url/webapp buttons, a query string for switch_inline_query buttons.
// Plain reply buttons carry no data.
type ControlSpec struct {
	Type ControlType `json:"type"`
	Text string      `json:"text"`
	Data string      `json:"data,omitempty"`
}

// BlockRef addresses a single template block: a file located by
// (module, role, lang, file) and a block key inside that file.
type BlockRef struct {
	Module string
	Role   string
	Lang   string
	File   string
	Key    string
}

// TemplateBlock is the parsed static shell of a message: text and caption
// still contain {placeholder} markers, Media is a file name relative to the
// module's media directory. A block whose button rows carry plain controls
// declares a reply keyboard; Resize and OneTime apply only then. Blocks are
// immutable once loaded — the store hands out shared pointers.
type TemplateBlock struct {
	Text    string          `json:"text"`
	Media   string          `json:"media,omitempty"`
	Caption string          `json:"caption,omitempty"`
	Buttons [][]ControlSpec `json:"buttons,omitempty"`
	Resize  bool            `json:"resize,omitempty"`
	OneTime bool            `json:"one_time,omitempty"`
}

// Target identifies where a dispatch goes: a chat, and optionally an
// existing message in that chat to mutate.
type Target struct {
	ChatID    int64
	MessageID int
}

// MessageHandle identifies a dispatched message. HasMedia is recorded so a
// later SmartEditOrSend can decide whether an in-place edit is structurally
// possible.
type MessageHandle struct {
	ChatID    int64
	MessageID int
	HasMedia  bool
}

// Rendered is a fully substituted message ready for the transport: final
// text and caption, an absolute media path, and at most one keyboard.
// Built fresh on every render, never cached.
type Rendered struct {
	Text      string
	MediaPath string
	Caption   string
	Inline    *InlineLayout
	Reply     *ReplyLayout
}

// HasMedia reports whether the message carries a media attachment.
func (r *Rendered) HasMedia() bool {
	return r.MediaPath != ""
}
