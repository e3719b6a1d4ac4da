package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseColumn(t *testing.T) {
	for _, c := range Columns {
		got, ok := ParseColumn(string(c))
		assert.True(t, ok, c)
		assert.Equal(t, c, got)
	}

	got, ok := ParseColumn("None")
	assert.True(t, ok)
	assert.Equal(t, ColumnNone, got)

	_, ok = ParseColumn("active")
	assert.False(t, ok, "column names are case-sensitive")
	_, ok = ParseColumn("")
	assert.False(t, ok)
}

func TestColumnString(t *testing.T) {
	assert.Equal(t, "None", ColumnNone.String())
	assert.Equal(t, "Waiting", ColumnWaiting.String())
}

func TestFieldOrder(t *testing.T) {
	assert.Less(t, FieldMembership.Order(), FieldStatus.Order())
	assert.Less(t, FieldStatus.Order(), FieldSprint.Order())
	assert.Less(t, FieldSprint.Order(), FieldAssignees.Order())
	assert.True(t, FieldStatus.RequiresMembership())
	assert.True(t, FieldSprint.RequiresMembership())
	assert.False(t, FieldAssignees.RequiresMembership())
}

func TestItemState(t *testing.T) {
	merged := Item{State: StateMerged}
	closed := Item{State: StateClosed}
	open := Item{State: StateOpen}

	assert.True(t, merged.Merged())
	assert.True(t, merged.Closed())
	assert.False(t, closed.Merged())
	assert.True(t, closed.Closed())
	assert.False(t, open.Closed())
}

func TestItemKeyString(t *testing.T) {
	k := Item{Kind: KindPullRequest, Number: 12, Repository: "org/r1"}.Key()
	assert.Equal(t, "org/r1#12 (PullRequest)", k.String())
}

func TestMutationDescribe(t *testing.T) {
	assert.Equal(t, "Admit", Mutation{Field: FieldMembership}.Describe())
	assert.Equal(t, "SetStatus=Active", Mutation{Field: FieldStatus, Value: "Active"}.Describe())
	assert.Equal(t, "AddAssignee=[alice]", Mutation{Field: FieldAssignees, Logins: []string{"alice"}}.Describe())
}
