package expr

import "strings"

// Identifier paths accepted by Compile.
const (
	ItemAuthor     = "item.author"
	ItemAssignees  = "item.assignees"
	ItemColumn     = "item.column"
	ItemSprint     = "item.sprint"
	ItemRepository = "item.repository"
	ItemState      = "item.state"
	ItemMerged     = "item.merged"
	ItemClosed     = "item.closed"
	ItemInProject  = "item.inProject"
	MonitoredUser  = "monitored.user"
	MonitoredRepos = "monitored.repos"
	PRColumn       = "item.pr.column"
	PRAssignees    = "item.pr.assignees"
	PRClosed       = "item.pr.closed"
	PRMerged       = "item.pr.merged"
)

var vocabulary = map[string]bool{
	ItemAuthor:     true,
	ItemAssignees:  true,
	ItemColumn:     true,
	ItemSprint:     true,
	ItemRepository: true,
	ItemState:      true,
	ItemMerged:     true,
	ItemClosed:     true,
	ItemInProject:  true,
	MonitoredUser:  true,
	MonitoredRepos: true,
	PRColumn:       true,
	PRAssignees:    true,
	PRClosed:       true,
	PRMerged:       true,
}

// IsKnown reports whether path is a complete vocabulary identifier.
func IsKnown(path string) bool {
	return vocabulary[path]
}

// IsLinkedOnly reports whether path is only bound for linked-issue items.
func IsLinkedOnly(path string) bool {
	return strings.HasPrefix(path, "item.pr.")
}

// isPrefix reports whether path can still grow into a vocabulary
// identifier through further property access.
func isPrefix(path string) bool {
	for k := range vocabulary {
		if strings.HasPrefix(k, path+".") {
			return true
		}
	}
	return false
}
