package role_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hmemdev/hmem/internal/role"
	"github.com/hmemdev/hmem/internal/types"
)

func TestAllowedEnforcesTotalOrder(t *testing.T) {
	tests := []struct {
		name    string
		caller  types.Role
		minRole types.Role
		want    bool
	}{
		{"worker sees worker-gated", types.RoleWorker, types.RoleWorker, true},
		{"worker cannot see al-gated", types.RoleWorker, types.RoleAL, false},
		{"ceo sees everything", types.RoleCEO, types.RolePL, true},
		{"pl cannot see ceo-gated", types.RolePL, types.RoleCEO, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, role.Allowed(tt.caller, tt.minRole))
		})
	}
}

func TestCanWriteCompanyRequiresALOrAbove(t *testing.T) {
	assert.False(t, role.CanWriteCompany(types.RoleWorker))
	assert.True(t, role.CanWriteCompany(types.RoleAL))
	assert.True(t, role.CanWriteCompany(types.RolePL))
	assert.True(t, role.CanWriteCompany(types.RoleCEO))
}

func TestIsCuratorOnlyCEO(t *testing.T) {
	assert.False(t, role.IsCurator(types.RolePL))
	assert.True(t, role.IsCurator(types.RoleCEO))
}
