// Package parser extracts frontmatter, wikilinks, and the display body from
// Markdown note content. It is a pure function over raw bytes; all graph and
// file-system concerns live elsewhere.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/laguz/internal/graph"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	listLinkRe = regexp.MustCompile(`^\s*-\s*(.*?)\s*\[\[(.*?)\]\]\s*$`)
	headingRe  = regexp.MustCompile(`^#+\s+(.*)$`)
)

// linksMarker starts the trailing links section written by vault.Render.
// Everything from the marker on is link metadata, not body content.
const linksMarker = "_Links:_"

// Result holds the output of parsing a Markdown file.
type Result struct {
	Title      string
	Body       string
	Links      []graph.LinkRef
	Color      graph.Option[string]
	Position   graph.Option[graph.Position]
	Extra      []graph.Field
	IsContext  bool
	Aggregates []string
}

// Parse extracts frontmatter metadata, the body (with frontmatter and link
// markup stripped), and outgoing link references from raw Markdown bytes.
// Malformed frontmatter is an error; the caller decides what a bad file
// aborts (it never aborts anything beyond that one file).
func Parse(data []byte) (*Result, error) {
	res := &Result{}

	body, err := splitFrontmatter(data, res)
	if err != nil {
		return nil, err
	}

	body, sectionLinks := splitLinksSection(body)
	inlineLinks := extractLinks(body)
	res.Links = mergeLinks(sectionLinks, inlineLinks)
	res.Body = stripLinkMarkup(body)
	res.Title = deriveTitle(res.Body)

	return res, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body, decoding known metadata keys and preserving the
// document order of everything else in res.Extra.
func splitFrontmatter(data []byte, res *Result) (string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter; the whole file is body.
		return string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var doc yaml.Node
	if err := yaml.Unmarshal(yamlBlock, &doc); err != nil {
		return "", fmt.Errorf("parser: frontmatter: %w", err)
	}
	if len(doc.Content) == 0 {
		return body, nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return "", fmt.Errorf("parser: frontmatter is not a mapping")
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valNode := mapping.Content[i], mapping.Content[i+1]
		if err := decodeField(keyNode.Value, valNode, res); err != nil {
			return "", err
		}
	}
	return body, nil
}

// decodeField routes one frontmatter pair into the typed metadata fields or,
// for unknown keys, into the ordered Extra list.
func decodeField(key string, val *yaml.Node, res *Result) error {
	switch key {
	case "color":
		var c string
		if err := val.Decode(&c); err != nil {
			return fmt.Errorf("parser: color: %w", err)
		}
		if c != "" {
			res.Color = graph.Some(c)
		}
	case "position":
		var p graph.Position
		if err := val.Decode(&p); err != nil {
			return fmt.Errorf("parser: position: %w", err)
		}
		res.Position = graph.Some(p)
	case "context":
		var b bool
		if err := val.Decode(&b); err != nil {
			return fmt.Errorf("parser: context: %w", err)
		}
		res.IsContext = b
	case "aggregates":
		var a []string
		if err := val.Decode(&a); err != nil {
			return fmt.Errorf("parser: aggregates: %w", err)
		}
		res.Aggregates = a
	default:
		var v any
		if err := val.Decode(&v); err != nil {
			return fmt.Errorf("parser: field %s: %w", key, err)
		}
		res.Extra = append(res.Extra, graph.Field{Key: key, Value: v})
	}
	return nil
}

// splitLinksSection removes the trailing links section from the body and
// parses its entries, each "- label [[target]]" or a bare wikilink line.
func splitLinksSection(body string) (string, []graph.LinkRef) {
	idx := strings.Index(body, linksMarker)
	if idx < 0 {
		return body, nil
	}
	section := body[idx+len(linksMarker):]
	remainder := strings.TrimRight(body[:idx], "\n")
	// Drop a separator rule immediately before the marker, if present.
	if i := strings.LastIndex(remainder, "\n"); i >= 0 && strings.Trim(remainder[i+1:], "-") == "" {
		remainder = strings.TrimRight(remainder[:i], "\n")
	}

	var links []graph.LinkRef
	for _, line := range strings.Split(section, "\n") {
		if m := listLinkRe.FindStringSubmatch(line); m != nil {
			target, alias := splitAlias(m[2])
			label := alias
			if label == "" {
				label = strings.TrimSpace(m[1])
			}
			if target != "" {
				links = append(links, graph.LinkRef{Target: target, Label: label})
			}
			continue
		}
		for _, m := range wikilinkRe.FindAllStringSubmatch(line, -1) {
			target, alias := splitAlias(m[1])
			if target != "" {
				links = append(links, graph.LinkRef{Target: target, Label: alias})
			}
		}
	}
	return remainder, links
}

// extractLinks collects inline wikilink references from the body.
func extractLinks(body string) []graph.LinkRef {
	var out []graph.LinkRef
	for _, line := range strings.Split(body, "\n") {
		listLabel := ""
		if m := listLinkRe.FindStringSubmatch(line); m != nil {
			listLabel = strings.TrimSpace(m[1])
		}
		for _, m := range wikilinkRe.FindAllStringSubmatch(line, -1) {
			target, alias := splitAlias(m[1])
			if target == "" {
				continue
			}
			label := alias
			if label == "" {
				label = listLabel
			}
			out = append(out, graph.LinkRef{Target: target, Label: label})
		}
	}
	return out
}

// mergeLinks concatenates section and inline links, deduplicating by target
// and keeping the first occurrence's label.
func mergeLinks(section, inline []graph.LinkRef) []graph.LinkRef {
	seen := make(map[string]struct{}, len(section)+len(inline))
	var out []graph.LinkRef
	for _, l := range append(section, inline...) {
		if _, dup := seen[l.Target]; dup {
			continue
		}
		seen[l.Target] = struct{}{}
		out = append(out, l)
	}
	return out
}

// splitAlias handles [[Target|Alias]] link syntax.
func splitAlias(raw string) (target, alias string) {
	target = raw
	if i := strings.Index(raw, "|"); i >= 0 {
		target = raw[:i]
		alias = strings.TrimSpace(raw[i+1:])
	}
	return strings.TrimSpace(target), alias
}

// stripLinkMarkup replaces wikilink markup with its display text.
func stripLinkMarkup(body string) string {
	return wikilinkRe.ReplaceAllStringFunc(body, func(m string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(m, "[["), "]]")
		target, alias := splitAlias(inner)
		if alias != "" {
			return alias
		}
		return target
	})
}

// deriveTitle returns the first heading of any level. Frontmatter never
// contributes a title.
func deriveTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
