package gateway

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

// AuthClient calls the /auth endpoints on behalf of one visitor.
type AuthClient struct {
	client *Client
	creds  CredentialSource
}

// Login exchanges credentials for a token and user.
func (a *AuthClient) Login(ctx context.Context, req models.LoginRequest) (*models.AuthData, error) {
	return a.authenticate(ctx, "/auth/login", req)
}

// Register creates an account and signs it in.
func (a *AuthClient) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthData, error) {
	return a.authenticate(ctx, "/auth/register", req)
}

func (a *AuthClient) authenticate(ctx context.Context, path string, payload interface{}) (*models.AuthData, error) {
	r, err := jsonRequest(http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.do(ctx, a.creds, r)
	if err != nil {
		return nil, err
	}

	var data models.AuthData
	ok, err := resp.Decode(&data)
	if err != nil {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: err}
	}
	if !ok || data.Token == "" || data.User == nil {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: fmt.Errorf("%s: response carries no credentials", path)}
	}
	return &data, nil
}

// Profile fetches the signed-in user. A nil user with a nil error means the
// API answered without data.
func (a *AuthClient) Profile(ctx context.Context) (*models.User, error) {
	resp, err := a.client.do(ctx, a.creds, request{method: http.MethodGet, path: "/auth/profile"})
	if err != nil {
		return nil, err
	}
	return a.userFrom(resp)
}

// UpdateProfile applies a partial profile edit and returns the server's user.
func (a *AuthClient) UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error) {
	r, err := jsonRequest(http.MethodPut, "/auth/profile", req)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.do(ctx, a.creds, r)
	if err != nil {
		return nil, err
	}
	return a.userFrom(resp)
}

// ChangePassword returns the server's confirmation message.
func (a *AuthClient) ChangePassword(ctx context.Context, req models.ChangePasswordRequest) (string, error) {
	return a.message(ctx, http.MethodPut, "/auth/change-password", req)
}

// ForgotPassword starts the reset flow for an email address.
func (a *AuthClient) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (string, error) {
	return a.message(ctx, http.MethodPost, "/auth/forgot-password", req)
}

// ResetPassword completes the reset flow.
func (a *AuthClient) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (string, error) {
	return a.message(ctx, http.MethodPost, "/auth/reset-password", req)
}

// UploadAvatar sends the image as the multipart field "avatar". Callers are
// expected to have run ValidateAvatar.
func (a *AuthClient) UploadAvatar(ctx context.Context, filename string, data []byte) (*models.User, error) {
	contentType, err := ValidateAvatar(data)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create avatar part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write avatar part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close avatar form: %w", err)
	}

	resp, err := a.client.do(ctx, a.creds, request{
		method:      http.MethodPost,
		path:        "/auth/avatar",
		body:        &body,
		contentType: writer.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	return a.userFrom(resp)
}

func (a *AuthClient) message(ctx context.Context, method, path string, payload interface{}) (string, error) {
	r, err := jsonRequest(method, path, payload)
	if err != nil {
		return "", err
	}
	resp, err := a.client.do(ctx, a.creds, r)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (a *AuthClient) userFrom(resp *models.APIResponse) (*models.User, error) {
	user, _, err := decodeUser(resp)
	if err != nil {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: err}
	}
	return user, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
