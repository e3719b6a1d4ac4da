package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/roach88/boardsync/internal/ir"
	"github.com/roach88/boardsync/internal/platform"
)

type logins struct {
	Nodes []struct {
		Login string
	}
}

func (l logins) list() []string {
	out := make([]string, 0, len(l.Nodes))
	for _, n := range l.Nodes {
		out = append(out, n.Login)
	}
	return out
}

type repository struct {
	NameWithOwner string
}

// contentFields are the fields read from an issue or pull request on the
// board.
type contentFields struct {
	ID         string
	Number     int
	Repository repository
	Assignees  logins `graphql:"assignees(first: 20)"`
}

type fieldName struct {
	Common struct {
		Name string
	} `graphql:"... on ProjectV2FieldCommon"`
}

type memberNode struct {
	ID      string
	Content struct {
		Typename    string        `graphql:"__typename"`
		Issue       contentFields `graphql:"... on Issue"`
		PullRequest contentFields `graphql:"... on PullRequest"`
	}
	FieldValues struct {
		Nodes []struct {
			Typename     string `graphql:"__typename"`
			SingleSelect struct {
				Name  string
				Field fieldName
			} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
			Iteration struct {
				IterationID string `graphql:"iterationId"`
				Field       fieldName
			} `graphql:"... on ProjectV2ItemFieldIterationValue"`
		}
	} `graphql:"fieldValues(first: 20)"`
}

// content returns the fields of whichever fragment matched.
func (n memberNode) content() (contentFields, ir.Kind, bool) {
	switch n.Content.Typename {
	case "Issue":
		return n.Content.Issue, ir.KindIssue, true
	case "PullRequest":
		return n.Content.PullRequest, ir.KindPullRequest, true
	default:
		return contentFields{}, "", false
	}
}

func boardNotFound(boardID string) error {
	return &platform.APIError{StatusCode: 404, Code: "NOT_FOUND", Message: "board " + boardID + " not found"}
}

// ListBoardMembers returns one page of project items. Draft issues have no
// content id and are skipped.
func (c *Client) ListBoardMembers(ctx context.Context, boardID, cursor string) (platform.MemberPage, error) {
	var q struct {
		Node *struct {
			ProjectV2 struct {
				Items struct {
					PageInfo struct {
						HasNextPage bool
						EndCursor   string
					}
					Nodes []memberNode
				} `graphql:"items(first: 100, after: $cursor)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $id)"`
	}
	vars := map[string]any{
		"id":     githubv4.ID(boardID),
		"cursor": (*githubv4.String)(nil),
	}
	if cursor != "" {
		vars["cursor"] = githubv4.NewString(githubv4.String(cursor))
	}
	if err := c.gql.Query(ctx, &q, vars); err != nil {
		return platform.MemberPage{}, fmt.Errorf("listing board members: %w", err)
	}
	if q.Node == nil {
		return platform.MemberPage{}, boardNotFound(boardID)
	}

	items := q.Node.ProjectV2.Items
	page := platform.MemberPage{
		HasNext:    items.PageInfo.HasNextPage,
		NextCursor: items.PageInfo.EndCursor,
	}
	for _, n := range items.Nodes {
		content, kind, ok := n.content()
		if !ok || content.ID == "" {
			continue
		}
		m := platform.BoardMember{
			ProjectItemID: n.ID,
			ContentID:     content.ID,
			Kind:          kind,
			Number:        content.Number,
			Repository:    content.Repository.NameWithOwner,
			Assignees:     content.Assignees.list(),
			SingleSelect:  make(map[string]string),
			Iteration:     make(map[string]string),
		}
		for _, fv := range n.FieldValues.Nodes {
			switch fv.Typename {
			case "ProjectV2ItemFieldSingleSelectValue":
				m.SingleSelect[fv.SingleSelect.Field.Common.Name] = fv.SingleSelect.Name
			case "ProjectV2ItemFieldIterationValue":
				m.Iteration[fv.Iteration.Field.Common.Name] = fv.Iteration.IterationID
			}
		}
		page.Members = append(page.Members, m)
	}
	return page, nil
}

type iterationNode struct {
	ID        string
	Title     string
	StartDate string
	Duration  int
}

// ListBoardFields returns every field with options and iterations.
func (c *Client) ListBoardFields(ctx context.Context, boardID string) ([]platform.BoardField, error) {
	var q struct {
		Node *struct {
			ProjectV2 struct {
				Fields struct {
					Nodes []struct {
						Typename string `graphql:"__typename"`
						Common   struct {
							ID   string
							Name string
						} `graphql:"... on ProjectV2FieldCommon"`
						SingleSelect struct {
							Options []struct {
								ID   string
								Name string
							}
						} `graphql:"... on ProjectV2SingleSelectField"`
						Iteration struct {
							Configuration struct {
								Iterations          []iterationNode
								CompletedIterations []iterationNode
							}
						} `graphql:"... on ProjectV2IterationField"`
					}
				} `graphql:"fields(first: 50)"`
			} `graphql:"... on ProjectV2"`
		} `graphql:"node(id: $id)"`
	}
	if err := c.gql.Query(ctx, &q, map[string]any{"id": githubv4.ID(boardID)}); err != nil {
		return nil, fmt.Errorf("listing board fields: %w", err)
	}
	if q.Node == nil {
		return nil, boardNotFound(boardID)
	}

	nodes := q.Node.ProjectV2.Fields.Nodes
	fields := make([]platform.BoardField, 0, len(nodes))
	for _, n := range nodes {
		f := platform.BoardField{ID: n.Common.ID, Name: n.Common.Name, Kind: platform.FieldKindOther}
		switch n.Typename {
		case "ProjectV2SingleSelectField":
			f.Kind = platform.FieldKindSingleSelect
			for _, o := range n.SingleSelect.Options {
				f.Options = append(f.Options, platform.FieldOption{ID: o.ID, Name: o.Name})
			}
		case "ProjectV2IterationField":
			f.Kind = platform.FieldKindIteration
			cfg := n.Iteration.Configuration
			for _, it := range append(cfg.Iterations, cfg.CompletedIterations...) {
				f.Iterations = append(f.Iterations, ir.Iteration{
					ID: it.ID, Title: it.Title, StartDate: it.StartDate, Duration: it.Duration,
				})
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// AdmitToBoard adds content to the project. GitHub returns the existing
// item when the content is already on the board.
func (c *Client) AdmitToBoard(ctx context.Context, boardID, contentID string) (string, error) {
	var m struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string
			}
		} `graphql:"addProjectV2ItemById(input: $input)"`
	}
	input := githubv4.AddProjectV2ItemByIdInput{
		ProjectID: githubv4.ID(boardID),
		ContentID: githubv4.ID(contentID),
	}
	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return "", err
	}
	return m.AddProjectV2ItemByID.Item.ID, nil
}

// SetSingleSelectField selects an option on a single-select field.
func (c *Client) SetSingleSelectField(ctx context.Context, boardID, projectItemID, fieldID, optionID string) error {
	return c.setField(ctx, boardID, projectItemID, fieldID, githubv4.ProjectV2FieldValue{
		SingleSelectOptionID: githubv4.NewString(githubv4.String(optionID)),
	})
}

// SetIterationField assigns an iteration.
func (c *Client) SetIterationField(ctx context.Context, boardID, projectItemID, fieldID, iterationID string) error {
	return c.setField(ctx, boardID, projectItemID, fieldID, githubv4.ProjectV2FieldValue{
		IterationID: githubv4.NewString(githubv4.String(iterationID)),
	})
}

func (c *Client) setField(ctx context.Context, boardID, projectItemID, fieldID string, value githubv4.ProjectV2FieldValue) error {
	var m struct {
		UpdateProjectV2ItemFieldValue struct {
			ProjectV2Item struct {
				ID string
			}
		} `graphql:"updateProjectV2ItemFieldValue(input: $input)"`
	}
	input := githubv4.UpdateProjectV2ItemFieldValueInput{
		ProjectID: githubv4.ID(boardID),
		ItemID:    githubv4.ID(projectItemID),
		FieldID:   githubv4.ID(fieldID),
		Value:     value,
	}
	return c.gql.Mutate(ctx, &m, input, nil)
}

// ListClosingIssueReferences returns the issues a pull request closes.
func (c *Client) ListClosingIssueReferences(ctx context.Context, prContentID string) ([]ir.IssueRef, error) {
	var q struct {
		Node *struct {
			PullRequest struct {
				ClosingIssuesReferences struct {
					Nodes []struct {
						ID         string
						Number     int
						State      string
						Repository repository
						Assignees  logins `graphql:"assignees(first: 20)"`
					}
				} `graphql:"closingIssuesReferences(first: 25)"`
			} `graphql:"... on PullRequest"`
		} `graphql:"node(id: $id)"`
	}
	if err := c.gql.Query(ctx, &q, map[string]any{"id": githubv4.ID(prContentID)}); err != nil {
		return nil, fmt.Errorf("listing closing references of %s: %w", prContentID, err)
	}
	if q.Node == nil {
		return nil, nil
	}

	nodes := q.Node.PullRequest.ClosingIssuesReferences.Nodes
	refs := make([]ir.IssueRef, 0, len(nodes))
	for _, n := range nodes {
		refs = append(refs, ir.IssueRef{
			ContentID:  n.ID,
			Number:     n.Number,
			Repository: n.Repository.NameWithOwner,
			State:      ir.State(n.State),
			Assignees:  n.Assignees.list(),
		})
	}
	return refs, nil
}
