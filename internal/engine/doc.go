// Package engine implements the boardsync reconciliation pass.
//
// A pass runs leaves-first through fixed stages:
//
//  1. Scope: monitored logins and repositories are resolved.
//  2. Snapshot: board fields and every board member are loaded.
//  3. Calendar: the current sprint is found by date inclusion.
//  4. Activity: recently updated items are collected and merged.
//  5. Evaluate: rules turn each item into desired mutations.
//  6. Plan: desired mutations are diffed against the snapshot.
//  7. Dispatch: the plan is applied in batches with retry.
//
// Stages 1-6 either succeed or abort the pass with a *PassError before
// any write happens. Dispatch never aborts; every mutation ends with
// exactly one outcome in the StatusTracker.
//
// Evaluation and planning are pure functions over a PassContext. All
// platform access goes through platform.Platform, so the whole pass runs
// against testutil.FakeBoard in tests.
//
// Ordering guarantees:
//   - Per content id, mutations apply Membership, Status, Sprint, Assignees.
//   - A pull request's mutations are planned before its linked issues'.
//   - Items within a batch run concurrently; there is no cross-item order.
package engine
