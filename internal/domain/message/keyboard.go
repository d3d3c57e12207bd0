package message

import (
	"net/url"

	"smartmsg/internal/common"
)

// RowPosition says where MergeExtra inserts an additional row.
type RowPosition string

const (
	PositionTop    RowPosition = "top"
	PositionBottom RowPosition = "bottom"
)

// InlineLayout is an ordered grid of inline (per-message) buttons. Row and
// column order match the declared matrix exactly — that is the visual
// layout contract.
type InlineLayout struct {
	Rows [][]ControlSpec
}

// ReplyLayout is an ordered grid of reply (per-conversation) buttons.
type ReplyLayout struct {
	Rows    [][]ControlSpec
	Resize  bool
	OneTime bool
}

// BuildInline assembles an inline keyboard from a declarative matrix.
// Every spec is validated; an unknown variant fails the whole build rather
// than silently dropping the button.
func BuildInline(rows [][]ControlSpec) (*InlineLayout, error) {
	copied, err := copyRows(rows, validateInlineSpec)
	if err != nil {
		return nil, err
	}
	return &InlineLayout{Rows: copied}, nil
}

// BuildReply assembles a reply keyboard from a declarative matrix.
func BuildReply(rows [][]ControlSpec, resize, oneTime bool) (*ReplyLayout, error) {
	copied, err := copyRows(rows, validateReplySpec)
	if err != nil {
		return nil, err
	}
	return &ReplyLayout{Rows: copied, Resize: resize, OneTime: oneTime}, nil
}

// MergeExtra inserts an additional row at the top or bottom of the layout
// without reordering the existing rows.
func (l *InlineLayout) MergeExtra(row []ControlSpec, position RowPosition) error {
	copied, err := copyRows([][]ControlSpec{row}, validateInlineSpec)
	if err != nil {
		return err
	}
	if position == PositionTop {
		l.Rows = append(copied, l.Rows...)
	} else {
		l.Rows = append(l.Rows, copied[0])
	}
	return nil
}

// MergeExtra inserts an additional row at the top or bottom of the layout
// without reordering the existing rows.
func (l *ReplyLayout) MergeExtra(row []ControlSpec, position RowPosition) error {
	copied, err := copyRows([][]ControlSpec{row}, validateReplySpec)
	if err != nil {
		return err
	}
	if position == PositionTop {
		l.Rows = append(copied, l.Rows...)
	} else {
		l.Rows = append(l.Rows, copied[0])
	}
	return nil
}

// rowsAreReply reports whether a button matrix declares a reply keyboard.
// A single plain control makes the whole matrix a reply keyboard; mixing
// plain controls with inline-only variants then fails validation.
func rowsAreReply(rows [][]ControlSpec) bool {
	for _, row := range rows {
		for _, spec := range row {
			if spec.Type == ControlText {
				return true
			}
		}
	}
	return false
}

// copyRows validates each spec and deep-copies the matrix so the layout
// does not alias caller or cache memory.
func copyRows(rows [][]ControlSpec, validate func(ControlSpec) error) ([][]ControlSpec, error) {
	copied := make([][]ControlSpec, 0, len(rows))
	for _, row := range rows {
		copiedRow := make([]ControlSpec, 0, len(row))
		for _, spec := range row {
			if err := validate(spec); err != nil {
				return nil, err
			}
			copiedRow = append(copiedRow, spec)
		}
		copied = append(copied, copiedRow)
	}
	return copied, nil
}

func validateInlineSpec(spec ControlSpec) error {
	if spec.Text == "" {
		return common.NewValidationError("control has no display text")
	}
	switch spec.Type {
	case ControlCallback, ControlSwitchInline:
		if spec.Data == "" && spec.Type == ControlCallback {
			return common.NewValidationError("callback control '" + spec.Text + "' has no data")
		}
		return nil
	case ControlURL, ControlWebApp:
		return validateLink(spec)
	default:
		return &common.UnsupportedControlTypeError{Type: string(spec.Type)}
	}
}

func validateReplySpec(spec ControlSpec) error {
	if spec.Text == "" {
		return common.NewValidationError("control has no display text")
	}
	switch spec.Type {
	case ControlText:
		return nil
	case ControlWebApp:
		return validateLink(spec)
	default:
		return &common.UnsupportedControlTypeError{Type: string(spec.Type)}
	}
}

func validateLink(spec ControlSpec) error {
	u, err := url.Parse(spec.Data)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return common.NewValidationError("control '" + spec.Text + "' has an unresolvable link: " + spec.Data)
	}
	return nil
}
