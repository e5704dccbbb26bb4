package tplengine

import "testing"

func TestHasTemplate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"no_markers", "plain text", false},
		{"with_delims", "Hello {{ .name }}", true},
		{"brace_like_not_template", "Hello {not tmpl}", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasTemplate(tc.in); got != tc.want {
				t.Fatalf("HasTemplate(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestEngine_RenderString(t *testing.T) {
	t.Run("Should pass through strings with no template markers", func(t *testing.T) {
		e := NewEngine(FormatText)
		out, err := e.RenderString("no templates here", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "no templates here" {
			t.Fatalf("got %q", out)
		}
	})

	t.Run("Should render a placeholder against data", func(t *testing.T) {
		e := NewEngine(FormatText)
		out, err := e.RenderString("Hello {{ .name }}", map[string]any{"name": "World"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "Hello World" {
			t.Fatalf("got %q", out)
		}
	})

	t.Run("Should error on missing key", func(t *testing.T) {
		e := NewEngine(FormatText)
		_, err := e.RenderString("Hi {{ .name }}", map[string]any{})
		if err == nil {
			t.Fatal("expected error for missing key")
		}
	})

	t.Run("Should expose sprig funcs", func(t *testing.T) {
		e := NewEngine(FormatText)
		out, err := e.RenderString(`{{ "hello" | upper }}`, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "HELLO" {
			t.Fatalf("got %q", out)
		}
	})

	t.Run("Should render a bare identifier placeholder", func(t *testing.T) {
		e := NewEngine(FormatText)
		out, err := e.RenderString("{{name}}", map[string]any{"name": "World"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "World" {
			t.Fatalf("got %q", out)
		}
	})

	t.Run("Should render a bare identifier placeholder embedded in other text", func(t *testing.T) {
		e := NewEngine(FormatText)
		out, err := e.RenderString("{{i}} > 10", map[string]any{"i": 15})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "15 > 10" {
			t.Fatalf("got %q", out)
		}
	})
}

func TestEngine_AddTemplateAndRender(t *testing.T) {
	e := NewEngine(FormatText)
	if err := e.AddTemplate("hello", "Hello {{ .name }}"); err != nil {
		t.Fatalf("AddTemplate error: %v", err)
	}
	got, err := e.Render("hello", map[string]any{"name": "World"})
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if got != "Hello World" {
		t.Fatalf("got %q", got)
	}
	if _, err := e.Render("missing", nil); err == nil {
		t.Fatal("expected template not found error")
	}
}

func TestEngine_FluentSetters(t *testing.T) {
	e := NewEngine(FormatText).WithFormat(FormatJSON).WithPrecisionPreservation(true)
	if e.format != FormatJSON || !e.preservePrecision {
		t.Fatalf("fluent setters did not mutate engine: %+v", e)
	}
}
