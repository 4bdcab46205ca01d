package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestAuthorizer_Allowed(t *testing.T) {
	authorizer, err := NewAuthorizer(zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		role     domain.Role
		resource string
		action   string
		want     bool
	}{
		{domain.RoleAdmin, ResourceCompanies, ActionWrite, true},
		{domain.RoleAdmin, ResourceTickets, ActionWrite, true},
		{domain.RoleManager, ResourceCompanies, ActionRead, true},
		{domain.RoleManager, ResourceCompanies, ActionWrite, false},
		{domain.RoleTechnician, ResourceCompanies, ActionWrite, false},
		{domain.RoleUser, ResourceCompanies, ActionWrite, false},
		{domain.RoleUser, ResourceTickets, ActionWrite, true},
		{domain.RoleUser, ResourceTickets, ActionRead, true},
		{domain.RoleUser, ResourceHistories, ActionRead, true},
		{domain.RoleUser, ResourceHistories, ActionWrite, false},
		{domain.RoleUser, ResourceAttachments, ActionWrite, true},
		{domain.Role("intruder"), ResourceTickets, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.resource+"/"+tt.action, func(t *testing.T) {
			got, err := authorizer.Allowed(tt.role, tt.resource, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
