package service

import (
	"github.com/univsource/urp-portal-api/internal/dto"
	"github.com/univsource/urp-portal-api/internal/models"
)

// MemberRoleChange records a role move for an existing member.
type MemberRoleChange struct {
	StudentID string
	OldRole   string
	NewRole   string
}

// MemberDiff is the outcome of comparing the current member list against a
// desired one. The three sets are disjoint.
type MemberDiff struct {
	ToRemove []models.ProjectMember
	ToAdd    []models.ProjectMember
	ToUpdate []MemberRoleChange
}

// HasChanges reports whether applying the diff would write anything.
// Callers skip writes and notification fan-out when it is false.
func (d MemberDiff) HasChanges() bool {
	return len(d.ToRemove) > 0 || len(d.ToAdd) > 0 || len(d.ToUpdate) > 0
}

// DiffMembers computes add/remove/role-change sets between the existing
// member list and the desired one. Identity is the student id; role
// comparison is exact string equality. Duplicate desired entries collapse to
// the last occurrence.
func DiffMembers(existing []models.ProjectMember, desired []dto.ProjectMemberInput) MemberDiff {
	desiredByID := make(map[string]dto.ProjectMemberInput, len(desired))
	for _, member := range desired {
		desiredByID[member.StudentID] = member
	}
	existingByID := make(map[string]models.ProjectMember, len(existing))
	for _, member := range existing {
		existingByID[member.StudentID] = member
	}

	var diff MemberDiff
	for _, member := range existing {
		want, ok := desiredByID[member.StudentID]
		if !ok {
			diff.ToRemove = append(diff.ToRemove, member)
			continue
		}
		if want.RoleInTeam != member.RoleInTeam {
			diff.ToUpdate = append(diff.ToUpdate, MemberRoleChange{
				StudentID: member.StudentID,
				OldRole:   member.RoleInTeam,
				NewRole:   want.RoleInTeam,
			})
		}
	}
	for _, member := range desired {
		if _, ok := existingByID[member.StudentID]; !ok {
			diff.ToAdd = append(diff.ToAdd, models.ProjectMember{
				StudentID:  member.StudentID,
				RoleInTeam: member.RoleInTeam,
			})
		}
	}
	return diff
}
