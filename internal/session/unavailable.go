package session

import (
	"context"
	"errors"

	"github.com/noah-isme/nexlearn-dashboard/internal/gateway"
	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

var errNoGateway = errors.New("session: no auth gateway configured")

// unavailableGateway rejects every call with the generic gateway error.
type unavailableGateway struct{}

func (unavailableGateway) err() error {
	return &gateway.Error{Message: gateway.GenericMessage, Err: errNoGateway}
}

func (g unavailableGateway) Login(context.Context, models.LoginRequest) (*models.AuthData, error) {
	return nil, g.err()
}

func (g unavailableGateway) Register(context.Context, models.RegisterRequest) (*models.AuthData, error) {
	return nil, g.err()
}

func (g unavailableGateway) Profile(context.Context) (*models.User, error) {
	return nil, g.err()
}

func (g unavailableGateway) UpdateProfile(context.Context, models.ProfileUpdateRequest) (*models.User, error) {
	return nil, g.err()
}

func (g unavailableGateway) ChangePassword(context.Context, models.ChangePasswordRequest) (string, error) {
	return "", g.err()
}

func (g unavailableGateway) ForgotPassword(context.Context, models.ForgotPasswordRequest) (string, error) {
	return "", g.err()
}

func (g unavailableGateway) ResetPassword(context.Context, models.ResetPasswordRequest) (string, error) {
	return "", g.err()
}

func (g unavailableGateway) UploadAvatar(context.Context, string, []byte) (*models.User, error) {
	return nil, g.err()
}
