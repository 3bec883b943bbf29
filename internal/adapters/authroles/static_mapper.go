package authroles

import (
	domainauth "github.com/vitalsense/analysis-jobs/internal/domain/auth"
)

// StaticRoleMapper maps groups by simple string membership rules.
// Admin wins over worker, worker over user.
type StaticRoleMapper struct {
	AdminGroup  string
	WorkerGroup string
	UserGroup   string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, rule := range []struct {
		group string
		role  domainauth.Role
	}{
		{m.AdminGroup, domainauth.RoleAdmin},
		{m.WorkerGroup, domainauth.RoleWorker},
		{m.UserGroup, domainauth.RoleUser},
	} {
		if rule.group == "" {
			continue
		}
		for _, g := range groups {
			if g == rule.group {
				return rule.role
			}
		}
	}
	return domainauth.RoleGuest
}
