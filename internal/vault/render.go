package vault

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/laguz/internal/graph"
)

var headingRe = regexp.MustCompile(`(?m)^#+\s+\S`)

// Render serializes a node back to its markdown file form: a YAML
// frontmatter block with the node's metadata, the body (headed by the title
// if the body carries no heading of its own), and a trailing links section
// listing every outgoing link reference. parser.Parse(Render(n)) preserves
// the node's title, links, and metadata.
func Render(n *graph.Node) ([]byte, error) {
	var b strings.Builder

	fm, err := renderFrontmatter(n)
	if err != nil {
		return nil, err
	}
	if fm != "" {
		b.WriteString("---\n")
		b.WriteString(fm)
		b.WriteString("---\n\n")
	}

	body := strings.TrimRight(n.Content, "\n")
	if n.Title != "" && !headingRe.MatchString(body) {
		b.WriteString("# " + n.Title + "\n")
		if body != "" {
			b.WriteString("\n")
		}
	}
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}

	if len(n.Links) > 0 {
		b.WriteString("\n-----------------\n_Links:_\n")
		for _, l := range n.Links {
			if l.Label != "" {
				fmt.Fprintf(&b, "- %s [[%s]]\n", l.Label, l.Target)
			} else {
				fmt.Fprintf(&b, "- [[%s]]\n", l.Target)
			}
		}
	}

	return []byte(b.String()), nil
}

// renderFrontmatter builds the YAML block: extra fields first in their
// preserved document order, then the typed metadata keys.
func renderFrontmatter(n *graph.Node) (string, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}

	addPair := func(key string, value any) error {
		k := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		v := &yaml.Node{}
		if err := v.Encode(value); err != nil {
			return fmt.Errorf("vault: render %s: %w", key, err)
		}
		mapping.Content = append(mapping.Content, k, v)
		return nil
	}

	for _, f := range n.Extra {
		if err := addPair(f.Key, f.Value); err != nil {
			return "", err
		}
	}
	if c, ok := n.Color.Get(); ok {
		if err := addPair("color", c); err != nil {
			return "", err
		}
	}
	if p, ok := n.Position.Get(); ok {
		if err := addPair("position", map[string]float64{"x": p.X, "y": p.Y}); err != nil {
			return "", err
		}
	}
	if n.IsContext {
		if err := addPair("context", true); err != nil {
			return "", err
		}
	}
	if len(n.Aggregates) > 0 {
		if err := addPair("aggregates", n.Aggregates); err != nil {
			return "", err
		}
	}

	if len(mapping.Content) == 0 {
		return "", nil
	}
	out, err := yaml.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("vault: render frontmatter: %w", err)
	}
	return string(out), nil
}
