package grid

import "strings"

// Editor is the declared editor kind of a column. It is a closed set: the
// implementations are TextEditor, ListEditor, TextAreaEditor, DateEditor and
// ToggleEditor.
type Editor interface {
	editor()
}

// TextEditor is a single-line input. Without Confirm it commits on blur.
type TextEditor struct {
	Confirm bool
}

// Option is one choice of a ListEditor.
type Option struct {
	Value   string
	Display string
}

// ListEditor is a single-select dropdown.
type ListEditor struct {
	Options []Option
	Confirm bool
}

// TextAreaEditor is a multi-line input.
type TextAreaEditor struct{}

// DateEditor is a date picker. Layout is a time layout, "2006-01-02" if empty.
type DateEditor struct {
	Layout string
}

// ToggleEditor is an on/off switch that commits as soon as it flips.
type ToggleEditor struct {
	On, Off string
}

func (TextEditor) editor()     {}
func (ListEditor) editor()     {}
func (TextAreaEditor) editor() {}
func (DateEditor) editor()     {}
func (ToggleEditor) editor()   {}

const DefaultDateLayout = "2006-01-02"

// Kind identifies the affordance a host must render.
type Kind int

const (
	KindInput Kind = iota
	KindSelect
	KindTextArea
	KindDate
	KindToggle
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindSelect:
		return "select"
	case KindTextArea:
		return "textarea"
	case KindDate:
		return "date"
	case KindToggle:
		return "toggle"
	}
	return "unknown"
}

// Trigger is a UI event that may commit an open edit.
type Trigger uint8

const (
	TriggerBlur Trigger = 1 << iota
	TriggerConfirm
	TriggerEnter
	TriggerChange
)

// Triggers is a set of Trigger values.
type Triggers uint8

func (t Triggers) Has(tr Trigger) bool { return uint8(t)&uint8(tr) != 0 }

func triggers(ts ...Trigger) Triggers {
	var out Triggers
	for _, t := range ts {
		out |= Triggers(t)
	}
	return out
}

// Affordance describes the editor control for one edit session.
type Affordance struct {
	Kind Kind
	// Value is the sanitized current value the control is populated with.
	Value string
	// Options and Selected apply to KindSelect.
	Options  []Option
	Selected int
	// Layout applies to KindDate.
	Layout string
	// On and Off apply to KindToggle.
	On, Off string

	Commit   Triggers
	Controls bool // confirm and cancel controls shown next to the input
	Focus    bool
}

// Text returns Value as plain text for widgets that do not interpret markup.
// Only the quote escaping added by Sanitize is undone.
func (a Affordance) Text() string { return strings.ReplaceAll(a.Value, "&#39;", "'") }

// Toggled returns the value a toggle switch takes when flipped.
func (a Affordance) Toggled() string {
	if a.Value == a.On {
		return a.Off
	}
	return a.On
}

func affordanceFor(ed Editor, confirmAll bool, current any) Affordance {
	value := Sanitize(current)
	switch e := ed.(type) {
	case nil:
		return textAffordance(confirmAll, value)
	case TextEditor:
		return textAffordance(e.Confirm || confirmAll, value)
	case ListEditor:
		a := Affordance{
			Kind:     KindSelect,
			Value:    value,
			Options:  append([]Option(nil), e.Options...),
			Selected: -1,
		}
		for i, o := range e.Options {
			if Sanitize(o.Value) == value {
				a.Selected = i
				break
			}
		}
		if e.Confirm || confirmAll {
			a.Commit = triggers(TriggerConfirm)
			a.Controls = true
		} else {
			a.Commit = triggers(TriggerChange)
		}
		return a
	case TextAreaEditor:
		return Affordance{
			Kind:     KindTextArea,
			Value:    value,
			Commit:   triggers(TriggerConfirm),
			Controls: confirmAll,
			Focus:    true,
		}
	case DateEditor:
		layout := e.Layout
		if layout == "" {
			layout = DefaultDateLayout
		}
		return Affordance{
			Kind:     KindDate,
			Value:    value,
			Layout:   layout,
			Commit:   triggers(TriggerConfirm),
			Controls: confirmAll,
			Focus:    true,
		}
	case ToggleEditor:
		on, off := e.On, e.Off
		if on == "" {
			on = "true"
		}
		if off == "" {
			off = "false"
		}
		v := off
		if truthy(current) {
			v = on
		}
		return Affordance{
			Kind:   KindToggle,
			Value:  v,
			On:     on,
			Off:    off,
			Commit: triggers(TriggerChange),
		}
	default:
		panic("grid: unknown editor kind")
	}
}

func textAffordance(confirm bool, value string) Affordance {
	a := Affordance{Kind: KindInput, Value: value, Focus: true}
	if confirm {
		a.Commit = triggers(TriggerConfirm, TriggerEnter)
		a.Controls = true
	} else {
		a.Commit = triggers(TriggerBlur, TriggerConfirm)
	}
	return a
}
