// Package ir defines the data model shared by every stage of a reconciliation
// pass: items, board projections, mutations, outcomes and reason codes, plus
// the constrained value types used by rule conditions.
//
// This package imports nothing internal. All other internal packages import
// ir, which keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - condition values are strings, booleans, null
//     and lists
//   - Mutation identity is content-addressed over canonical JSON
//   - All JSON tags use snake_case
package ir
