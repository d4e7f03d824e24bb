package config

import (
	"time"

	"github.com/twschum/mix-mind/grid"
)

const DefaultAPIURL = "http://localhost:5000"

var categories = []string{
	"Spirit", "Liqueur", "Vermouth", "Bitters", "Syrup", "Juice",
	"Mixer", "Wine", "Beer", "Dry", "Ice",
}

// Default returns the bar-stock table settings.
func Default() *File {
	opts := make([]Option, len(categories))
	for i, c := range categories {
		opts[i] = Option{Value: c, Display: c}
	}
	text := func() *Editor { return &Editor{Type: EditorText} }
	return &File{
		APIURL:       DefaultAPIURL,
		IDField:      "iid",
		NaturalKey:   []string{"Bottle", "Type"},
		NotNull:      true,
		Confirmation: true,
		Timeout:      Duration(15 * time.Second),
		Sort:         "Category",
		PageSize:     grid.DefaultPageSize,
		Columns: []Column{
			{Key: "In_Stock", Name: "In Stock", Format: grid.FormatBool, Editable: true,
				Editor: &Editor{Type: EditorToggle, On: "on", Off: "off"}},
			{Key: "Category", Format: grid.FormatEnum, Editable: true,
				Editor: &Editor{Type: EditorList, Options: opts}},
			{Key: "Type", Editable: true, Editor: text()},
			{Key: "Bottle", Editable: true, Editor: text()},
			{Key: "ABV", Format: grid.FormatABV, Editable: true, Editor: text()},
			{Key: "Size_mL", Name: "Size mL", Format: grid.FormatML, Editable: true, Editor: text()},
			{Key: "Size_oz", Name: "Size oz", Format: grid.FormatOz, Editable: true, Editor: text()},
			{Key: "Price_Paid", Name: "Price", Format: grid.FormatUSD, Editable: true, Editor: text()},
			{Key: "Cost_per_oz", Name: "$/oz", Format: grid.FormatUSD3},
		},
	}
}
