package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/models"
)

func TestDiffMembersAddRemoveUpdate(t *testing.T) {
	existing := []models.ProjectMember{
		{StudentID: "s1", RoleInTeam: "leader"},
		{StudentID: "s2", RoleInTeam: "member"},
		{StudentID: "s3", RoleInTeam: "member"},
	}
	desired := []dto.ProjectMemberInput{
		{StudentID: "s2", RoleInTeam: "leader"},
		{StudentID: "s3", RoleInTeam: "member"},
		{StudentID: "s4", RoleInTeam: "member"},
	}

	diff := DiffMembers(existing, desired)

	require.Len(t, diff.ToRemove, 1)
	assert.Equal(t, "s1", diff.ToRemove[0].StudentID)

	require.Len(t, diff.ToAdd, 1)
	assert.Equal(t, "s4", diff.ToAdd[0].StudentID)
	assert.Equal(t, "member", diff.ToAdd[0].RoleInTeam)

	require.Len(t, diff.ToUpdate, 1)
	assert.Equal(t, "s2", diff.ToUpdate[0].StudentID)
	assert.Equal(t, "member", diff.ToUpdate[0].OldRole)
	assert.Equal(t, "leader", diff.ToUpdate[0].NewRole)

	assert.True(t, diff.HasChanges())
}

func TestDiffMembersIdenticalListsProduceNoChanges(t *testing.T) {
	existing := []models.ProjectMember{
		{StudentID: "s1", RoleInTeam: "leader"},
		{StudentID: "s2", RoleInTeam: "member"},
	}
	desired := []dto.ProjectMemberInput{
		{StudentID: "s1", RoleInTeam: "leader"},
		{StudentID: "s2", RoleInTeam: "member"},
	}

	diff := DiffMembers(existing, desired)

	assert.Empty(t, diff.ToRemove)
	assert.Empty(t, diff.ToAdd)
	assert.Empty(t, diff.ToUpdate)
	assert.False(t, diff.HasChanges())
}

func TestDiffMembersRoleComparisonIsExact(t *testing.T) {
	existing := []models.ProjectMember{{StudentID: "s1", RoleInTeam: "Leader"}}
	desired := []dto.ProjectMemberInput{{StudentID: "s1", RoleInTeam: "leader"}}

	diff := DiffMembers(existing, desired)

	require.Len(t, diff.ToUpdate, 1)
	assert.Equal(t, "Leader", diff.ToUpdate[0].OldRole)
	assert.Equal(t, "leader", diff.ToUpdate[0].NewRole)
}

func TestDiffMembersDuplicateDesiredCollapsesToLast(t *testing.T) {
	existing := []models.ProjectMember{{StudentID: "s1", RoleInTeam: "member"}}
	desired := []dto.ProjectMemberInput{
		{StudentID: "s1", RoleInTeam: "leader"},
		{StudentID: "s1", RoleInTeam: "member"},
	}

	diff := DiffMembers(existing, desired)

	assert.Empty(t, diff.ToRemove)
	assert.Empty(t, diff.ToAdd)
	assert.Empty(t, diff.ToUpdate)
}

func TestDiffMembersEmptyDesiredRemovesEveryone(t *testing.T) {
	existing := []models.ProjectMember{
		{StudentID: "s1", RoleInTeam: "leader"},
		{StudentID: "s2", RoleInTeam: "member"},
	}

	diff := DiffMembers(existing, nil)

	assert.Len(t, diff.ToRemove, 2)
	assert.Empty(t, diff.ToAdd)
	assert.Empty(t, diff.ToUpdate)
}
