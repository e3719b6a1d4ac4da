package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/boardsync/internal/rules"
)

// AuthorToken is the monitored-user placeholder replaced by the running
// user's login.
const AuthorToken = "GITHUB_AUTHOR"

// LookupFunc resolves an environment-style token to a value.
// os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// Scope is the resolved set of identifiers a pass reconciles.
type Scope struct {
	Organization string
	// Users are the resolved monitored logins in rule-file order.
	Users []string
	// Repos are organization-prefixed repository names.
	Repos []string
}

// MonitoredUser returns the login bound to monitored.user: the first
// resolved user.
func (s Scope) MonitoredUser() string {
	if len(s.Users) == 0 {
		return ""
	}
	return s.Users[0]
}

// ResolveScope expands the rule file's user and repository scope.
//
// A user entry of type env, or the bare string GITHUB_AUTHOR, is replaced
// by lookup(name). An unresolved token is fatal: the pass must not run
// with a partially known scope.
func ResolveScope(rs *rules.RuleSet, lookup LookupFunc) (Scope, error) {
	scope := Scope{Organization: rs.Organization()}

	for _, u := range rs.MonitoredUsers() {
		login := u.Name
		if u.Type == "env" || (u.Type == "" && u.Name == AuthorToken) {
			v, ok := "", false
			if lookup != nil {
				v, ok = lookup(u.Name)
			}
			v = strings.TrimSpace(v)
			if !ok || v == "" {
				return Scope{}, &PassError{
					Stage:   StageScope,
					Code:    ErrCodeUnresolvedUser,
					Message: fmt.Sprintf("monitored user %s is not set", u.Name),
				}
			}
			login = v
		}
		if !slices.Contains(scope.Users, login) {
			scope.Users = append(scope.Users, login)
		}
	}

	for _, r := range rs.Repositories() {
		if !strings.Contains(r, "/") {
			r = scope.Organization + "/" + r
		}
		if !slices.Contains(scope.Repos, r) {
			scope.Repos = append(scope.Repos, r)
		}
	}

	if len(scope.Users) == 0 {
		return Scope{}, &PassError{
			Stage:   StageScope,
			Code:    ErrCodeEmptyScope,
			Message: "no monitored users",
		}
	}
	return scope, nil
}
