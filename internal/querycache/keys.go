package querycache

import (
	"strings"

	"github.com/starford/flashdesk/internal/models"
)

// Key prefixes.
const (
	SchemaKey   = "schema"
	ItemsPrefix = "items|"
)

// ItemsKey identifies one item list. search must already be the effective
// (normalised, flag-qualified) search string.
func ItemsKey(model string, mode models.ViewMode, search string) string {
	return ItemsPrefix + strings.Join([]string{model, string(mode), search}, "|")
}
