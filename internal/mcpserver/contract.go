package mcpserver

// NodeFormatContract describes the canonical Markdown node format that
// LLM consumers should follow when creating or updating nodes.
const NodeFormatContract = `# Laguz Node Format Contract

Every Markdown node stored in Laguz SHOULD follow this structure.

## Structure

` + "```" + `markdown
---
color: "#4A90D9"                    # OPTIONAL – display color for the graph UI
position:                           # OPTIONAL – layout coordinates
  x: 120.5
  y: -80.0
context: false                      # OPTIONAL – marks a context node
---

# Human-readable title

Body text in standard Markdown.

Use [[wikilinks]] to reference other nodes.
Use [[target|alias]] for display text that differs from the target.

-----------------
_Links:_

- relates to [[other-note]]
- [[folder/note]]
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present, the ` + "```" + `---` + "```" + ` fences must be the
   first thing in the file (no leading blank lines). Unknown keys are preserved.
2. **The title is the first Markdown heading.** If the body has no heading, the
   filename stem is used as the title.
3. **Wikilinks** use double brackets: ` + "`" + `[[other-node]]` + "`" + `. The target may be a
   bare name (resolved against the vault by trailing path components, ` + "`" + `.md` + "`" + `
   implied) or an absolute path (` + "`" + `[[/vault/folder/note.md]]` + "`" + `).
4. **The _Links:_ section** is optional. When present it sits at the end of the
   file after a horizontal rule, as a bullet list. Text before the wikilink on
   a bullet becomes the edge label (e.g. ` + "`" + `- depends on [[target]]` + "`" + `).
5. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
6. **Encoding** is UTF-8 with a trailing newline.
7. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Example

` + "```" + `markdown
---
color: "#27AE60"
---

# Weekly standup 2026-01-20

Attendees: Alice, Bob.

Discussed the [[design-doc]] and next steps.

-----------------
_Links:_

- owned by [[alice]]
- part of [[project-x/roadmap]]
` + "```" + `
`
