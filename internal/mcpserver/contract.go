package mcpserver

const searchSyntaxURI = "flashdesk://search-syntax"

// SearchSyntax describes the search tokens list_items forwards to the
// collection. Tokens are combined with AND; prefix a token with - to negate.
const SearchSyntax = `# Search Syntax

Searches are space-separated tokens. Every token must match (AND).
Prefix a token with ` + "`-`" + ` to negate it.

## Tokens

| token | matches |
|---|---|
| ` + "`dog`" + ` | any field containing "dog" (case-insensitive) |
| ` + "`deck:Japanese`" + ` | cards in the deck; quote names with spaces: ` + "`deck:\"Japanese Core\"`" + ` |
| ` + "`note:Basic`" + ` | notes of the note type |
| ` + "`tag:verb`" + ` | notes tagged verb |
| ` + "`flag:1`" + ` | cards with flag 1 (0 none, 1 red, 2 orange, 3 green, 4 blue, 5 pink, 6 turquoise, 7 purple) |
| ` + "`is:new`" + `, ` + "`is:learn`" + `, ` + "`is:review`" + `, ` + "`is:due`" + ` | cards by scheduling state |
| ` + "`is:suspended`" + ` | suspended cards (` + "`is:suspend`" + ` is accepted and rewritten) |

## Examples

- ` + "`deck:Japanese is:suspended`" + `: suspended cards in Japanese
- ` + "`tag:verb -flag:0`" + `: flagged verb notes
- ` + "`-is:suspend flag:1`" + `: red-flagged cards that are not suspended
`
