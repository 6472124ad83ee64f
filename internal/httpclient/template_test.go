package httpclient

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/loadfire/loadfire/internal/config"
	"github.com/loadfire/loadfire/internal/feeder"
	"github.com/loadfire/loadfire/internal/placeholders"
)

func TestNewTemplateValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{name: "nil config", cfg: nil},
		{name: "missing url", cfg: &config.Config{}},
		{name: "empty header key", cfg: &config.Config{URL: "http://x", Headers: map[string]string{" ": "v"}}},
		{name: "header value with newline", cfg: &config.Config{URL: "http://x", Headers: map[string]string{"X-A": "a\nb"}}},
		{name: "duplicate canonical header", cfg: &config.Config{URL: "http://x", Headers: map[string]string{"x-id": "1", "X-Id": "2"}}},
		{name: "body and body file", cfg: &config.Config{URL: "http://x", Body: "a", BodyFile: "b.json"}},
		{name: "missing body file", cfg: &config.Config{URL: "http://x", BodyFile: "/nonexistent/body.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTemplate(tt.cfg); err == nil {
				t.Error("NewTemplate() error = nil, want error")
			}
		})
	}
}

func TestTemplateResolve(t *testing.T) {
	cfg := &config.Config{
		URL:    "http://api.test/users/${user_id}?q={{query|all}}",
		Method: "post",
		Headers: map[string]string{
			"x-user":       "${name}",
			"content-type": "application/json",
		},
		Body: `{"id":"${user_id}","name":"{{name}}"}`,
	}

	tmpl, err := NewTemplate(cfg)
	if err != nil {
		t.Fatalf("NewTemplate() error = %v", err)
	}

	if got, want := tmpl.Columns(), []string{"name", "query", "user_id"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Columns() = %v, want %v", got, want)
	}

	spec, err := tmpl.Resolve(feeder.Record{"user_id": "42", "name": "Ada"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := Spec{
		Method: "POST",
		URL:    "http://api.test/users/42?q=all",
		Headers: map[string]string{
			"X-User":       "Ada",
			"Content-Type": "application/json",
		},
		Body: []byte(`{"id":"42","name":"Ada"}`),
	}
	if !reflect.DeepEqual(spec, want) {
		t.Errorf("Resolve() = %+v, want %+v", spec, want)
	}
}

func TestTemplateResolveChangesOnlyReferencingFields(t *testing.T) {
	tmpl, err := NewTemplate(&config.Config{
		URL:    "http://api.test/users/${id}",
		Method: "PUT",
		Headers: map[string]string{
			"X-Name":       "${name}",
			"X-Trace":      "static",
			"Content-Type": "text/plain",
		},
		Body: "user=${id}",
	})
	if err != nil {
		t.Fatalf("NewTemplate() error = %v", err)
	}

	a, err := tmpl.Resolve(feeder.Record{"id": "1", "name": "a"})
	if err != nil {
		t.Fatalf("Resolve(a) error = %v", err)
	}
	b, err := tmpl.Resolve(feeder.Record{"id": "1", "name": "b"})
	if err != nil {
		t.Fatalf("Resolve(b) error = %v", err)
	}

	if a.Method != b.Method || a.URL != b.URL || string(a.Body) != string(b.Body) {
		t.Errorf("method, url or body differ: %+v vs %+v", a, b)
	}
	if len(a.Headers) != len(b.Headers) {
		t.Fatalf("header sets differ: %v vs %v", a.Headers, b.Headers)
	}
	for key, av := range a.Headers {
		bv := b.Headers[key]
		if key == "X-Name" {
			if av != "a" || bv != "b" {
				t.Errorf("X-Name = %q / %q, want a / b", av, bv)
			}
			continue
		}
		if av != bv {
			t.Errorf("header %s = %q / %q, want equal", key, av, bv)
		}
	}
}

func TestTemplateResolveIsPure(t *testing.T) {
	tmpl, err := NewTemplate(&config.Config{
		URL:     "http://api.test/${id}",
		Headers: map[string]string{"X-Id": "${id}"},
		Body:    "id=${id}",
	})
	if err != nil {
		t.Fatalf("NewTemplate() error = %v", err)
	}

	record := feeder.Record{"id": "7"}
	first, err := tmpl.Resolve(record)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := tmpl.Resolve(record)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Resolve() not deterministic: %+v vs %+v", first, second)
	}

	// Mutating one result must not leak into the template or the next result.
	first.Headers["X-Id"] = "mutated"
	first.Body[0] = 'X'

	third, _ := tmpl.Resolve(record)
	if third.Headers["X-Id"] != "7" || string(third.Body) != "id=7" {
		t.Errorf("template changed after mutating a resolved spec: %+v", third)
	}
	if tmpl.URL() != "http://api.test/${id}" {
		t.Errorf("URL() = %q, template text was modified", tmpl.URL())
	}
}

func TestTemplateResolveNilRecordPassesThrough(t *testing.T) {
	tmpl, err := NewTemplate(&config.Config{URL: "http://api.test/${id}", Body: "static"})
	if err != nil {
		t.Fatalf("NewTemplate() error = %v", err)
	}
	spec, err := tmpl.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve(nil) error = %v", err)
	}
	if spec.URL != "http://api.test/${id}" || string(spec.Body) != "static" || spec.Method != "GET" {
		t.Errorf("Resolve(nil) = %+v", spec)
	}
}

func TestTemplateResolveMissingColumn(t *testing.T) {
	tmpl, err := NewTemplate(&config.Config{URL: "http://api.test/${id}"})
	if err != nil {
		t.Fatalf("NewTemplate() error = %v", err)
	}

	_, err = tmpl.Resolve(feeder.Record{"other": "x"})
	var missing *placeholders.MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("Resolve() error = %v, want MissingColumnError", err)
	}
	if missing.Column != "id" {
		t.Errorf("Column = %q, want id", missing.Column)
	}
}

func TestTemplateBodyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, []byte(`{"sku":"${sku}"}`), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	tmpl, err := NewTemplate(&config.Config{URL: "http://api.test", Method: "PUT", BodyFile: path})
	if err != nil {
		t.Fatalf("NewTemplate() error = %v", err)
	}
	// The file is read once at construction.
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	spec, err := tmpl.Resolve(feeder.Record{"sku": "A1"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if string(spec.Body) != `{"sku":"A1"}` {
		t.Errorf("Body = %s", spec.Body)
	}
}

func TestSpecNewRequestIsReplayable(t *testing.T) {
	spec := Spec{
		Method:  "POST",
		URL:     "http://api.test/items",
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    []byte("payload"),
	}

	req, err := spec.NewRequest(context.Background())
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if req.ContentLength != int64(len("payload")) {
		t.Errorf("ContentLength = %d", req.ContentLength)
	}
	if req.Header.Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q", req.Header.Get("Content-Type"))
	}
	if req.GetBody == nil {
		t.Fatal("GetBody is nil")
	}
	for i := 0; i < 2; i++ {
		body, err := req.GetBody()
		if err != nil {
			t.Fatalf("GetBody() error = %v", err)
		}
		data, _ := io.ReadAll(body)
		if string(data) != "payload" {
			t.Errorf("GetBody() read %q", data)
		}
	}

	empty, err := Spec{Method: "GET", URL: "http://api.test"}.NewRequest(context.Background())
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if empty.ContentLength != 0 {
		t.Errorf("ContentLength = %d, want 0", empty.ContentLength)
	}
}
