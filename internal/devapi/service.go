// Package devapi is an in-memory implementation of the remote LMS API the
// dashboard gateway talks to. It backs local development and the gateway's
// contract tests.
package devapi

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	appErrors "github.com/noah-isme/nexlearn-dashboard/pkg/errors"
)

const (
	defaultTokenTTL = 24 * time.Hour
	defaultResetTTL = time.Hour
	defaultIssuer   = "nexlearn-devapi"
)

// Config controls token issuance.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	ResetTTL  time.Duration
	Issuer    string
}

// Claims are carried by issued access tokens.
type Claims struct {
	UserID   string          `json:"userId"`
	TenantID string          `json:"tenantId"`
	Role     models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Service implements the remote auth and user management use cases.
type Service struct {
	dir       *directory
	validator *validator.Validate
	logger    *zap.Logger
	config    Config
	now       func() time.Time
}

// NewService constructs a Service with an empty directory.
func NewService(config Config, validate *validator.Validate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = defaultTokenTTL
	}
	if config.ResetTTL <= 0 {
		config.ResetTTL = defaultResetTTL
	}
	if config.Issuer == "" {
		config.Issuer = defaultIssuer
	}
	return &Service{
		dir:       newDirectory(),
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Seed adds a user with a known password.
func (s *Service) Seed(tenantID string, user models.User, password string) (*models.User, error) {
	if tenantID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Tenant ID is required")
	}
	user.TenantID = tenantID
	return s.create(user, password)
}

// Login verifies email and password inside tenantID.
func (s *Service) Login(ctx context.Context, tenantID string, req models.LoginRequest) (*models.AuthData, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid login payload")
	}

	acc, ok := s.dir.byEmailIn(tenantID, req.Email)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}

	return s.issue(&acc.user)
}

// Register creates a student account inside tenantID and signs it in.
func (s *Service) Register(ctx context.Context, tenantID string, req models.RegisterRequest) (*models.AuthData, error) {
	if req.TenantID != "" {
		tenantID = req.TenantID
	}
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid registration payload")
	}

	user, err := s.create(models.User{
		TenantID:  tenantID,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.RoleStudent,
	}, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Authenticate validates a bearer token.
func (s *Service) Authenticate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "Invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid token")
	}
	return claims, nil
}

// Profile returns the token's user.
func (s *Service) Profile(ctx context.Context, claims *Claims) (*models.User, error) {
	acc, ok := s.dir.get(claims.TenantID, claims.UserID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	return &acc.user, nil
}

// UpdateProfile applies a partial edit to the token's user.
func (s *Service) UpdateProfile(ctx context.Context, claims *Claims, req models.ProfileUpdateRequest) (*models.User, error) {
	return s.patch(claims.TenantID, claims.UserID, func(u *models.User) {
		*u = *req.Apply(u)
	})
}

// ChangePassword replaces the token user's password after checking the
// current one.
func (s *Service) ChangePassword(ctx context.Context, claims *Claims, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid password payload")
	}
	acc, ok := s.dir.get(claims.TenantID, claims.UserID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "Current password is incorrect")
	}
	return s.setPassword(claims.TenantID, claims.UserID, req.NewPassword)
}

// ForgotPassword issues a reset token. Unknown addresses succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, tenantID string, req models.ForgotPasswordRequest) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid email")
	}
	acc, ok := s.dir.byEmailIn(tenantID, req.Email)
	if !ok {
		s.logger.Info("password reset requested for unknown email", zap.String("email", req.Email))
		return nil
	}

	token := uuid.NewString()
	s.dir.grantReset(token, resetGrant{
		tenantID:  tenantID,
		userID:    acc.user.ID,
		expiresAt: s.now().Add(s.config.ResetTTL),
	})
	s.logger.Info("password reset token issued",
		zap.String("email", acc.user.Email),
		zap.String("reset_token", token),
	)
	return nil
}

// ResetPassword consumes a reset token.
func (s *Service) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid reset payload")
	}
	grant, ok := s.dir.redeemReset(req.Token, s.now())
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "Invalid or expired reset token")
	}
	return s.setPassword(grant.tenantID, grant.userID, req.Password)
}

// SetAvatar records the avatar URI of the token's user.
func (s *Service) SetAvatar(ctx context.Context, claims *Claims, uri string) (*models.User, error) {
	return s.patch(claims.TenantID, claims.UserID, func(u *models.User) {
		u.Avatar = uri
	})
}

// ListUsers pages through the caller's tenant.
func (s *Service) ListUsers(ctx context.Context, claims *Claims, filter models.UserFilter) (*models.UserList, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	role := filter.Role
	if role == "all" {
		role = ""
	}

	all := s.dir.list(claims.TenantID, filter.Search, role)
	total := len(all)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}

	return &models.UserList{
		Users: all[start:end],
		Pagination: &models.Pagination{
			CurrentPage: filter.Page,
			TotalPages:  int(math.Ceil(float64(total) / float64(filter.Limit))),
			TotalUsers:  total,
			Limit:       filter.Limit,
		},
	}, nil
}

// GetUser returns a user of the caller's tenant.
func (s *Service) GetUser(ctx context.Context, claims *Claims, id string) (*models.User, error) {
	acc, ok := s.dir.get(claims.TenantID, id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	return &acc.user, nil
}

// CreateUser adds a user to the caller's tenant.
func (s *Service) CreateUser(ctx context.Context, claims *Claims, req models.CreateUserRequest) (*models.User, error) {
	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	return s.create(models.User{
		TenantID:  claims.TenantID,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	}, req.Password)
}

// UpdateUser patches a user of the caller's tenant.
func (s *Service) UpdateUser(ctx context.Context, claims *Claims, id string, req models.UpdateUserRequest) (*models.User, error) {
	patch := models.ProfileUpdateRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Avatar:    req.Avatar,
		Profile:   req.Profile,
	}
	return s.patch(claims.TenantID, id, func(u *models.User) {
		*u = *patch.Apply(u)
	})
}

// ChangeRole moves a user of the caller's tenant to role. Callers cannot
// change their own role.
func (s *Service) ChangeRole(ctx context.Context, claims *Claims, id string, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid role")
	}
	if id == claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You cannot change your own role")
	}
	return s.patch(claims.TenantID, id, func(u *models.User) {
		u.Role = role
	})
}

// DeleteUser removes a user of the caller's tenant.
func (s *Service) DeleteUser(ctx context.Context, claims *Claims, id string) error {
	if id == claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "You cannot delete your own account")
	}
	if !s.dir.remove(claims.TenantID, id) {
		return appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	return nil
}

func (s *Service) create(user models.User, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := s.now()
	user.ID = uuid.NewString()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = &now
	user.UpdatedAt = &now

	if !s.dir.insert(&account{user: user, hash: hash}) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
	}
	return user.Clone(), nil
}

func (s *Service) patch(tenantID, id string, fn func(*models.User)) (*models.User, error) {
	now := s.now()
	acc, ok := s.dir.update(tenantID, id, func(a *account) {
		fn(&a.user)
		a.user.UpdatedAt = &now
	})
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	return &acc.user, nil
}

func (s *Service) setPassword(tenantID, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if _, ok := s.dir.update(tenantID, id, func(a *account) { a.hash = hash }); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	return nil
}

func (s *Service) issue(user *models.User) (*models.AuthData, error) {
	issuedAt := s.now()
	claims := &Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.AuthData{User: user.Clone(), Token: signed}, nil
}

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "Tenant ID is required")
	}
	return nil
}
