package vault

import (
	"strings"
	"testing"

	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/parser"
)

func TestRender_RoundTrip(t *testing.T) {
	n := &graph.Node{
		ID:      "/v/n.md",
		Title:   "My Note",
		Content: "Body text.",
		Links: []graph.LinkRef{
			{Target: "other", Label: "relates to"},
			{Target: "folder/deep"},
		},
		Color:    graph.Some("#4A90D9"),
		Position: graph.Some(graph.Position{X: 12.5, Y: -7}),
		Extra: []graph.Field{
			{Key: "zeta", Value: 1},
			{Key: "alpha", Value: "two"},
		},
		IsContext:  true,
		Aggregates: []string{"/v/a.md"},
	}

	data, err := Render(n)
	if err != nil {
		t.Fatal(err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("rendered output does not parse: %v", err)
	}

	if res.Title != "My Note" {
		t.Errorf("title = %q", res.Title)
	}
	if c, _ := res.Color.Get(); c != "#4A90D9" {
		t.Errorf("color = %q", c)
	}
	p, ok := res.Position.Get()
	if !ok || p.X != 12.5 || p.Y != -7 {
		t.Errorf("position = %+v, %v", p, ok)
	}
	if !res.IsContext {
		t.Error("context flag lost")
	}
	if len(res.Aggregates) != 1 || res.Aggregates[0] != "/v/a.md" {
		t.Errorf("aggregates = %v", res.Aggregates)
	}
	if len(res.Extra) != 2 || res.Extra[0].Key != "zeta" || res.Extra[1].Key != "alpha" {
		t.Errorf("extra = %v, want document order preserved", res.Extra)
	}
	if len(res.Links) != 2 {
		t.Fatalf("links = %v", res.Links)
	}
	if res.Links[0].Target != "other" || res.Links[0].Label != "relates to" {
		t.Errorf("links[0] = %v", res.Links[0])
	}
	if res.Links[1].Target != "folder/deep" || res.Links[1].Label != "" {
		t.Errorf("links[1] = %v", res.Links[1])
	}
}

func TestRender_NoMetadataNoFrontmatter(t *testing.T) {
	n := &graph.Node{ID: "/v/n.md", Title: "Plain", Content: "Text."}
	data, err := Render(n)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(string(data), "---") {
		t.Errorf("output = %q, want no frontmatter block", data)
	}
	if !strings.HasPrefix(string(data), "# Plain\n") {
		t.Errorf("output = %q, want title heading first", data)
	}
}

func TestRender_KeepsExistingHeading(t *testing.T) {
	n := &graph.Node{ID: "/v/n.md", Title: "My Note", Content: "# My Note\nBody."}
	data, err := Render(n)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "# My Note") != 1 {
		t.Errorf("output = %q, want heading not duplicated", data)
	}
}

func TestRender_EmptyLinksOmitsSection(t *testing.T) {
	n := &graph.Node{ID: "/v/n.md", Title: "N", Content: "Body."}
	data, err := Render(n)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "_Links:_") {
		t.Errorf("output = %q, want no links section", data)
	}
}
