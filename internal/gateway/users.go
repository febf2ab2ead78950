package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

// UsersClient calls the /users admin endpoints on behalf of one visitor.
type UsersClient struct {
	client *Client
	creds  CredentialSource
}

// List returns one page of users. Zero page or limit fall back to 1 and 10.
func (u *UsersClient) List(ctx context.Context, filter models.UserFilter) (*models.UserList, error) {
	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Role != "" && filter.Role != "all" {
		query.Set("role", string(filter.Role))
	}

	resp, err := u.client.do(ctx, u.creds, request{method: http.MethodGet, path: "/users", query: query})
	if err != nil {
		return nil, err
	}

	list := &models.UserList{Users: []models.User{}}
	if _, err := resp.Decode(list); err != nil {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: err}
	}
	if list.Users == nil {
		list.Users = []models.User{}
	}
	return list, nil
}

// Get returns a single user.
func (u *UsersClient) Get(ctx context.Context, id string) (*models.User, error) {
	resp, err := u.client.do(ctx, u.creds, request{method: http.MethodGet, path: userPath(id)})
	if err != nil {
		return nil, err
	}
	return u.userFrom(resp)
}

// Create adds a user.
func (u *UsersClient) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	return u.send(ctx, http.MethodPost, "/users", req)
}

// Update patches a user.
func (u *UsersClient) Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error) {
	return u.send(ctx, http.MethodPut, userPath(id), req)
}

// ChangeRole moves a user to role.
func (u *UsersClient) ChangeRole(ctx context.Context, id string, role models.UserRole) (*models.User, error) {
	return u.send(ctx, http.MethodPut, userPath(id)+"/role", models.ChangeRoleRequest{Role: role})
}

// Delete removes a user.
func (u *UsersClient) Delete(ctx context.Context, id string) error {
	_, err := u.client.do(ctx, u.creds, request{method: http.MethodDelete, path: userPath(id)})
	return err
}

func (u *UsersClient) send(ctx context.Context, method, path string, payload interface{}) (*models.User, error) {
	r, err := jsonRequest(method, path, payload)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.do(ctx, u.creds, r)
	if err != nil {
		return nil, err
	}
	return u.userFrom(resp)
}

func (u *UsersClient) userFrom(resp *models.APIResponse) (*models.User, error) {
	user, _, err := decodeUser(resp)
	if err != nil {
		return nil, &Error{Status: http.StatusOK, Message: GenericMessage, Err: err}
	}
	return user, nil
}

func userPath(id string) string {
	return "/users/" + url.PathEscape(id)
}
