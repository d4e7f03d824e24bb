package grid

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseMarkup(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse markup: %v", err)
	}
	return doc
}

func TestMarkup_ApostropheSurvivesAttribute(t *testing.T) {
	aff := affordanceFor(TextEditor{}, false, "Bob's 'Old' Gin")
	doc := parseMarkup(t, Markup(aff, DefaultMarkupStyle))

	val, ok := doc.Find("input#celledit").Attr("value")
	if !ok {
		t.Fatalf("input has no value attribute")
	}
	if val != "Bob's 'Old' Gin" {
		t.Fatalf("value attribute: got %q", val)
	}
	if doc.Find(".input-group").Length() != 0 {
		t.Fatalf("confirm controls rendered without confirmation")
	}
}

func TestMarkup_SelectMarksCurrentOption(t *testing.T) {
	aff := affordanceFor(ListEditor{Options: options("Spirit", "Liqueur", "Vermouth")}, false, "Liqueur")
	doc := parseMarkup(t, Markup(aff, DefaultMarkupStyle))

	opts := doc.Find("select option")
	if opts.Length() != 3 {
		t.Fatalf("options: got %d, want 3", opts.Length())
	}
	sel := doc.Find("option[selected]")
	if sel.Length() != 1 || sel.Text() != "Liqueur" {
		t.Fatalf("selected option: got %d %q", sel.Length(), sel.Text())
	}
}

func TestMarkup_ConfirmControls(t *testing.T) {
	aff := affordanceFor(TextEditor{Confirm: true}, false, "Gin")
	doc := parseMarkup(t, Markup(aff, DefaultMarkupStyle))

	if got := doc.Find(".input-group-append a").Length(); got != 2 {
		t.Fatalf("controls: got %d, want 2", got)
	}
	for _, action := range []string{"confirm", "cancel"} {
		if doc.Find("a[data-action='"+action+"']").Length() != 1 {
			t.Fatalf("missing %s control", action)
		}
	}
}

func TestMarkup_Kinds(t *testing.T) {
	cases := []struct {
		ed       Editor
		value    any
		selector string
	}{
		{TextAreaEditor{}, "herbal, bitter", "textarea#celledit"},
		{DateEditor{}, "2024-03-01", "input[type='date'][data-layout='2006-01-02']"},
		{ToggleEditor{}, true, "input.toggle-switch[checked]"},
		{nil, "plain", "input#celledit"},
	}
	for _, tc := range cases {
		doc := parseMarkup(t, Markup(affordanceFor(tc.ed, false, tc.value), DefaultMarkupStyle))
		if doc.Find(tc.selector).Length() != 1 {
			t.Fatalf("%T: no element matching %s", tc.ed, tc.selector)
		}
	}
}

func TestAffordanceFor_UnknownEditorPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown editor")
		}
	}()
	affordanceFor(bogusEditor{}, false, "x")
}

type bogusEditor struct{}

func (bogusEditor) editor() {}
