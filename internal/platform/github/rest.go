package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	gh "github.com/google/go-github/v74/github"

	"github.com/roach88/boardsync/internal/ir"
)

func toItem(is *gh.Issue) ir.Item {
	item := ir.Item{
		ContentID:  is.GetNodeID(),
		Number:     is.GetNumber(),
		Repository: repoFromURL(is.GetRepositoryURL()),
		Kind:       ir.KindIssue,
		Author:     is.GetUser().GetLogin(),
		State:      ir.StateOpen,
		IsDraft:    is.GetDraft(),
		UpdatedAt:  is.GetUpdatedAt().Time,
	}
	for _, a := range is.Assignees {
		item.Assignees = append(item.Assignees, a.GetLogin())
	}
	if is.GetState() == "closed" {
		item.State = ir.StateClosed
	}
	if is.IsPullRequest() {
		item.Kind = ir.KindPullRequest
		if !is.GetPullRequestLinks().GetMergedAt().IsZero() {
			item.State = ir.StateMerged
		}
	}
	return item
}

// repoFromURL turns https://api.github.com/repos/org/name into org/name.
func repoFromURL(u string) string {
	_, rest, found := strings.Cut(u, "/repos/")
	if !found {
		return ""
	}
	return rest
}

// ListUpdatedItems pages through the repository's issues, which include
// pull requests.
func (c *Client) ListUpdatedItems(ctx context.Context, repo string, since time.Time) ([]ir.Item, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		Since:       since.UTC(),
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var items []ir.Item
	for {
		page, resp, err := c.rest.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues of %s: %w", repo, restError(err))
		}
		for _, is := range page {
			item := toItem(is)
			if item.Repository == "" {
				item.Repository = repo
			}
			items = append(items, item)
		}
		if resp.NextPage == 0 {
			return items, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

// ListAssignedItems uses issue search scoped to the organization.
func (c *Client) ListAssignedItems(ctx context.Context, org, login string, since time.Time) ([]ir.Item, error) {
	q := fmt.Sprintf("org:%s assignee:%s updated:>=%s", org, login, since.UTC().Format(time.RFC3339))
	opts := &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: 100}}

	var items []ir.Item
	for {
		result, resp, err := c.rest.Search.Issues(ctx, q, opts)
		if err != nil {
			return nil, fmt.Errorf("searching items assigned to %s: %w", login, restError(err))
		}
		for _, is := range result.Issues {
			items = append(items, toItem(is))
		}
		if resp.NextPage == 0 {
			return items, nil
		}
		opts.Page = resp.NextPage
	}
}

// AddAssignees adds logins; GitHub leaves existing assignees in place.
func (c *Client) AddAssignees(ctx context.Context, repo string, number int, logins []string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, _, err = c.rest.Issues.AddAssignees(ctx, owner, name, number, logins)
	return restError(err)
}
