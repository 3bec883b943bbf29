package authroles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/vitalsense/analysis-jobs/internal/domain/auth"
)

func TestStaticRoleMapper_Map(t *testing.T) {
	m := StaticRoleMapper{AdminGroup: "ops", WorkerGroup: "workers", UserGroup: "clinicians"}

	tests := []struct {
		name   string
		groups []string
		want   domainauth.Role
	}{
		{"admin wins", []string{"clinicians", "workers", "ops"}, domainauth.RoleAdmin},
		{"worker over user", []string{"clinicians", "workers"}, domainauth.RoleWorker},
		{"user", []string{"clinicians"}, domainauth.RoleUser},
		{"no match", []string{"other"}, domainauth.RoleGuest},
		{"no groups", nil, domainauth.RoleGuest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Map(tt.groups))
		})
	}
}

func TestStaticRoleMapper_EmptyGroupNeverMatches(t *testing.T) {
	m := StaticRoleMapper{UserGroup: "clinicians"}
	assert.Equal(t, domainauth.RoleGuest, m.Map([]string{""}))
}
