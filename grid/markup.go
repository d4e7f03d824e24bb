package grid

import "strings"

// MarkupStyle carries the CSS classes and labels used by Markup.
type MarkupStyle struct {
	InputClass   string
	ConfirmClass string
	CancelClass  string
	ConfirmLabel string
	CancelLabel  string
}

// DefaultMarkupStyle matches the bootstrap classes of the barstock page.
var DefaultMarkupStyle = MarkupStyle{
	InputClass:   "form-control form-control-sm",
	ConfirmClass: "close close-color",
	CancelClass:  "close close-color",
	ConfirmLabel: "&#10003;",
	CancelLabel:  "&#10005;",
}

// Markup renders an affordance as the HTML control a browser host inserts
// into the cell. Attribute values are single-quoted, which is what Sanitize
// prepares values for.
func Markup(a Affordance, st MarkupStyle) string {
	var b strings.Builder
	if a.Controls {
		b.WriteString("<div class='input-group'>")
	}
	switch a.Kind {
	case KindSelect:
		b.WriteString("<select class='" + st.InputClass + "'>")
		for i, o := range a.Options {
			b.WriteString("<option value='" + Sanitize(o.Value) + "'")
			if i == a.Selected {
				b.WriteString(" selected")
			}
			b.WriteString(">" + Sanitize(o.Display) + "</option>")
		}
		b.WriteString("</select>")
	case KindTextArea:
		b.WriteString("<textarea id='celledit' class='" + st.InputClass + "'>" + a.Value + "</textarea>")
	case KindDate:
		b.WriteString("<input id='celledit' type='date' data-layout='" + a.Layout + "' class='datepick " + st.InputClass + "' value='" + a.Value + "'>")
	case KindToggle:
		b.WriteString("<input class='toggle-switch' type='checkbox' value='" + a.Value + "'")
		if a.Value == a.On {
			b.WriteString(" checked")
		}
		b.WriteString(">")
	default:
		b.WriteString("<input id='celledit' class='" + st.InputClass + "' value='" + a.Value + "'>")
	}
	if a.Controls {
		b.WriteString("<div class='input-group-append'>")
		b.WriteString("<a href='#' data-action='confirm' class='" + st.ConfirmClass + "'>" + st.ConfirmLabel + "</a>")
		b.WriteString("<a href='#' data-action='cancel' class='" + st.CancelClass + "'>" + st.CancelLabel + "</a>")
		b.WriteString("</div></div>")
	}
	return b.String()
}
