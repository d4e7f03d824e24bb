package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-playground/assert/v2"
	"github.com/mattn/go-runewidth"

	"github.com/twschum/mix-mind/grid"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func testServer(t *testing.T, status int, contentType string, reply string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method, rec.path = r.Method, r.URL.Path
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			dec := json.NewDecoder(bytes.NewReader(b))
			dec.UseNumber()
			dec.Decode(&rec.body)
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL), rec
}

func TestRowsShapes(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"table", `{"data": [{"iid": 7, "Bottle": "Gin"}]}`},
		{"envelope", `{"status": "success", "data": [{"iid": 7, "Bottle": "Gin"}]}`},
		{"array", `[{"iid": 7, "Bottle": "Gin"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := testServer(t, 200, "application/json", tc.reply)
			rows, err := c.Rows(context.Background())
			assert.Equal(t, err, nil)
			assert.Equal(t, rec.method, http.MethodGet)
			assert.Equal(t, rec.path, PathIngredients)
			assert.Equal(t, len(rows), 1)
			// identifiers keep their number form
			assert.Equal(t, rows[0]["iid"], json.Number("7"))
		})
	}
}

func TestRowsLoadPath(t *testing.T) {
	c, rec := testServer(t, 200, "application/json", `{"data": []}`)
	c.loadPath = PathLoadIngredients
	rows, err := c.Rows(context.Background())
	assert.Equal(t, err, nil)
	assert.Equal(t, len(rows), 0)
	assert.Equal(t, rec.path, PathLoadIngredients)
}

func TestUpdateSendsKeyAndField(t *testing.T) {
	c, rec := testServer(t, 200, "application/json",
		`{"status": "success", "data": {"iid": 7, "Bottle": "Gin", "ABV": "43"}}`)

	req := grid.UpdateRequest{
		Key:   grid.Key{Fields: []grid.KeyField{{Name: "Bottle", Value: "Gin"}, {Name: "Type", Value: "gin"}}},
		Field: "ABV",
		Value: "43",
	}
	row, err := c.Update(context.Background(), req)
	assert.Equal(t, err, nil)
	assert.Equal(t, rec.method, http.MethodPut)
	assert.Equal(t, rec.path, PathIngredient)
	assert.Equal(t, rec.body, map[string]any{"Bottle": "Gin", "Type": "gin", "field": "ABV", "value": "43"})
	assert.Equal(t, row["ABV"], "43")
	assert.Equal(t, row["iid"], json.Number("7"))
}

func TestStatusError(t *testing.T) {
	c, _ := testServer(t, 200, "application/json", `{"status": "error", "message": "ABV out of range"}`)

	_, err := c.Update(context.Background(), grid.UpdateRequest{Field: "ABV", Value: "140"})
	var se *StatusError
	assert.Equal(t, errors.As(err, &se), true)
	assert.Equal(t, err.Error(), "ABV out of range")
	assert.Equal(t, errors.Is(err, grid.ErrMalformed), false)
}

func TestUnknownStatusIsMalformed(t *testing.T) {
	cases := []string{
		`{"status": "maybe"}`,
		`{}`,
		`not json`,
		`{"status": "success", "data": [1, 2]}`,
	}
	for _, reply := range cases {
		c, _ := testServer(t, 200, "application/json", reply)
		_, err := c.Delete(context.Background(), grid.Key{ByID: true, Fields: []grid.KeyField{{Name: "iid", Value: 7}}})
		assert.Equal(t, errors.Is(err, grid.ErrMalformed), true)
	}
}

func TestDeleteSendsKey(t *testing.T) {
	c, rec := testServer(t, 200, "application/json", `{"status": "success", "message": "removed", "data": {"iid": 7}}`)

	data, err := c.Delete(context.Background(), grid.Key{ByID: true, Fields: []grid.KeyField{{Name: "iid", Value: json.Number("7")}}})
	assert.Equal(t, err, nil)
	assert.Equal(t, rec.method, http.MethodDelete)
	assert.Equal(t, rec.body, map[string]any{"iid": json.Number("7")})
	assert.Equal(t, data["iid"], json.Number("7"))
}

func TestCreatePostsValues(t *testing.T) {
	c, rec := testServer(t, 200, "application/json",
		`{"status": "success", "message": "added", "data": {"iid": 12, "Bottle": "Campari", "Type": "amaro"}}`)

	row, err := c.Create(context.Background(), map[string]any{"Bottle": "Campari", "Type": "amaro", "ABV": "24"})
	assert.Equal(t, err, nil)
	assert.Equal(t, rec.method, http.MethodPost)
	assert.Equal(t, rec.path, PathIngredient)
	assert.Equal(t, rec.body, map[string]any{"Bottle": "Campari", "Type": "amaro", "ABV": "24"})
	assert.Equal(t, row["iid"], json.Number("12"))
}

func TestSuccessWithoutDataReturnsEmpty(t *testing.T) {
	c, _ := testServer(t, 200, "application/json", `{"status": "success", "data": null}`)
	data, err := c.Delete(context.Background(), grid.Key{})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(data), 0)
}

func TestHTMLErrorPage(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>500 Internal Server Error</title></head>
<body><h1>Internal Server Error</h1><p>The server encountered an internal error.</p></body></html>`
	c, _ := testServer(t, 500, "text/html; charset=utf-8", page)

	_, err := c.Update(context.Background(), grid.UpdateRequest{Field: "ABV", Value: "1"})
	var he *HTTPError
	assert.Equal(t, errors.As(err, &he), true)
	assert.Equal(t, he.Code, 500)
	assert.Equal(t, he.Text, "Internal Server Error")
	assert.Equal(t, err.Error(), "500 Internal Server Error")
}

func TestJSONErrorBody(t *testing.T) {
	c, _ := testServer(t, 400, "application/json", `{"status": "error", "message": "missing field"}`)
	_, err := c.Rows(context.Background())
	assert.Equal(t, err.Error(), "400 missing field")
}

func TestLongErrorBodyCutOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("é", 150) + strings.Repeat("ü", 150)
	c, _ := testServer(t, 502, "text/plain; charset=utf-8", body)
	_, err := c.Rows(context.Background())
	var he *HTTPError
	assert.Equal(t, errors.As(err, &he), true)
	assert.Equal(t, utf8.ValidString(he.Text), true)
	assert.Equal(t, runewidth.StringWidth(he.Text) <= maxErrorText, true)
	assert.Equal(t, strings.HasSuffix(he.Text, "…"), true)
}

func TestTimeoutReturnsDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Update(ctx, grid.UpdateRequest{Field: "ABV", Value: "1"})
	assert.Equal(t, errors.Is(err, context.DeadlineExceeded), true)
}
