// Package harness runs reconciliation scenarios described in YAML against
// an in-memory board.
//
// # Scenario Format
//
//	name: new_pr_by_monitored_user
//	description: "What this scenario validates"
//	rules: ../rules/board.yaml
//	now: "2026-10-15T12:00:00Z"
//	env: { GITHUB_AUTHOR: alice }
//	iterations:
//	  - { id: IT_42, title: Sprint 42, start: "2026-10-12", days: 14 }
//	items:
//	  - { id: PR_1, kind: PullRequest, repo: org/r1, number: 1, author: alice, state: OPEN }
//	board:
//	  - { item: PR_1, column: Active, sprint: IT_42 }
//	failures:
//	  - { op: AdmitToBoard, status: 429 }
//	mode: plan            # or run
//	golden: true
//	assertions:
//	  - type: plan
//	    item: PR_1
//	    mutations: [Admit, SetStatus=Active, SetSprint=current, AddAssignee=[alice]]
//
// Item ids double as platform content ids. Sprint mutations whose value is
// the current iteration render as SetSprint=current.
//
// # Assertion Types
//
//   - plan: the planned mutations, for one item or "id Mutation" lines for all
//   - no_mutations: the item has no planned mutation
//   - outcome: an item's outcome for one field (run mode)
//   - summary: the report counts (run mode)
//   - warning: a pass warning with the given reason exists
//   - writes: the number of board writes performed
//
// # Deterministic Testing
//
// Every scenario runs with a fixed clock, a recording sleeper and a fixed
// pass id, so plans compare byte-for-byte against golden files in
// testdata/golden. Regenerate them with:
//
//	go test ./internal/harness -update
package harness
