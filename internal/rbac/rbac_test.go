package rbac

import (
	"testing"

	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		required Role
		wantErr  error
	}{
		{"member below owner", "member", RoleOwner, shared.ErrInsufficientRole},
		{"member below admin", "member", RoleAdmin, shared.ErrInsufficientRole},
		{"admin below owner", "admin", RoleOwner, shared.ErrInsufficientRole},
		{"owner satisfies member", "owner", RoleMember, nil},
		{"owner satisfies owner", "owner", RoleOwner, nil},
		{"admin satisfies admin", "admin", RoleAdmin, nil},
		{"member satisfies member", "member", RoleMember, nil},
		{"unknown role", "superuser", RoleMember, shared.ErrUnknownRole},
		{"empty role", "", RoleMember, shared.ErrUnknownRole},
		{"case sensitive", "Owner", RoleMember, shared.ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.role, tt.required)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheck_InsufficientCarriesRequiredRole(t *testing.T) {
	err := Check("member", RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, "admin", shared.GetErrorDetails(err)["required_role"])
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("viewer")
	assert.ErrorIs(t, err, shared.ErrUnknownRole)
}

func TestSatisfies_UnknownRequiredNeverPasses(t *testing.T) {
	assert.False(t, RoleOwner.Satisfies(Role("root")))
	assert.False(t, Role("root").Satisfies(RoleMember))
}
