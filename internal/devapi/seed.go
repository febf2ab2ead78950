package devapi

import (
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

// SeedAccount is a user created at startup with a known password.
type SeedAccount struct {
	User     models.User
	Password string
}

// DefaultAccounts covers every role once.
func DefaultAccounts() []SeedAccount {
	return []SeedAccount{
		{User: models.User{Email: "superadmin@nexlearn.dev", Username: "superadmin", FirstName: "Super", LastName: "Admin", Role: models.RoleSuperAdmin, IsEmailVerified: true}, Password: "superadmin123"},
		{User: models.User{Email: "admin@nexlearn.dev", Username: "admin", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin, IsEmailVerified: true}, Password: "admin123"},
		{User: models.User{Email: "tenantadmin@nexlearn.dev", Username: "tenantadmin", FirstName: "Tess", LastName: "Tenant", Role: models.RoleTenantAdmin, IsEmailVerified: true}, Password: "tenantadmin123"},
		{User: models.User{Email: "instructor@nexlearn.dev", Username: "instructor", FirstName: "Ivan", LastName: "Instructor", Role: models.RoleInstructor, IsEmailVerified: true}, Password: "instructor123"},
		{User: models.User{Email: "student@nexlearn.dev", Username: "student", FirstName: "Stella", LastName: "Student", Role: models.RoleStudent, IsEmailVerified: true}, Password: "student123"},
	}
}

// SeedTenant creates accounts inside tenantID. Accounts that already exist
// are skipped.
func (s *Service) SeedTenant(tenantID string, accounts []SeedAccount) int {
	created := 0
	for _, acc := range accounts {
		if _, err := s.Seed(tenantID, acc.User, acc.Password); err != nil {
			s.logger.Debug("seed account skipped", zap.String("email", acc.User.Email), zap.Error(err))
			continue
		}
		created++
	}
	s.logger.Info("devapi tenant seeded", zap.String("tenant_id", tenantID), zap.Int("accounts", created))
	return created
}
