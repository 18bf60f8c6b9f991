// internal/selectors/merge.go
package selectors

import (
	"strings"

	"github.com/samber/lo"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

// MergeList returns custom entries followed by defaults, trimmed, with empty
// entries and duplicates removed. The first occurrence of a selector keeps its
// position, so custom entries always precede defaults.
func MergeList(custom, defaults []string) []string {
	all := make([]string, 0, len(custom)+len(defaults))
	all = append(all, custom...)
	all = append(all, defaults...)
	all = lo.Map(all, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Compact(all))
}

// Merge overlays a custom set onto the defaults. Lists are merged with
// MergeList; scalar fields take the custom value when it is set.
func Merge(custom, defaults schemas.SelectorSet) schemas.SelectorSet {
	return schemas.SelectorSet{
		Containers:         MergeList(custom.Containers, defaults.Containers),
		Editors:            MergeList(custom.Editors, defaults.Editors),
		SendButtons:        MergeList(custom.SendButtons, defaults.SendButtons),
		ButtonsContainerID: lo.CoalesceOrEmpty(strings.TrimSpace(custom.ButtonsContainerID), defaults.ButtonsContainerID),
		ThreadRoot:         lo.CoalesceOrEmpty(strings.TrimSpace(custom.ThreadRoot), defaults.ThreadRoot),
	}
}

// Prepend puts selector at the head of list, removing any later copy of it.
func Prepend(list []string, selector string) []string {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return append([]string(nil), list...)
	}
	return MergeList([]string{selector}, list)
}
