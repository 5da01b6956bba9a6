package mcpserver

// DocumentFormatContract describes the Markdown conventions the indexer
// understands. Ansuz never writes to the vault; the contract tells MCP
// clients how to author documents so every extraction path lights up.
const DocumentFormatContract = `# Ansuz Document Format

Ansuz indexes every Markdown (.md) file in the vault read-only. Nothing in
this contract is mandatory; it describes what the indexer extracts, so
documents written this way get the most out of search.

## Structure

` + "```" + `markdown
---
title: Human-readable title   # optional, see title rules below
tags:                         # optional, YAML list
  - tag-one
  - tag-two
created: 2025-01-15           # optional, see accepted formats below
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other documents (without .md extension).
Use [[target|alias]] for display text that differs from the target.
` + "```" + `

## What the indexer extracts

1. **Title**: the frontmatter ` + "`" + `title` + "`" + ` field, else the first ` + "`" + `# heading` + "`" + `,
   else the filename stem.
2. **Tags**: the frontmatter ` + "`" + `tags` + "`" + ` list plus inline ` + "`" + `#hashtags` + "`" + ` in the
   body (letters, digits, ` + "`" + `_` + "`" + `, ` + "`" + `-` + "`" + `, ` + "`" + `/` + "`" + `). Searches match tags without
   the ` + "`" + `#` + "`" + ` prefix.
3. **Created date**: the frontmatter ` + "`" + `created` + "`" + ` field. Accepted formats:
   ` + "`" + `2006-01-02` + "`" + `, ` + "`" + `2006-01-02 15:04` + "`" + `, ` + "`" + `2006-01-02 15:04:05` + "`" + `, RFC 3339.
   Documents without one fall back to the file modification time in
   date-range searches.
4. **Links**: ` + "`" + `[[target]]` + "`" + ` and ` + "`" + `[[target|alias]]` + "`" + ` wikilinks. The target is
   the filename stem; path separators are allowed (` + "`" + `[[folder/note]]` + "`" + `).
   Resolved links become graph edges and backlinks on the target.
5. **Plain text**: the Markdown body with formatting stripped, used for
   exact-text search, pattern extraction, and embeddings.

## Connection graph

Beyond explicit wikilinks, documents sharing tags are connected, and
documents with similar content are connected semantically when embeddings
are available. The ` + "`" + `get_linked_documents` + "`" + ` tool walks all three edge kinds.
`
