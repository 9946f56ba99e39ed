package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"bookhaven.ca/bookstore/api/internal/logging"
	"bookhaven.ca/bookstore/api/pkg/auth"
	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

const tokenType = "Bearer"

// UserService owns accounts and the credential/session flow
type UserService struct {
	users      store.UserStore
	carts      store.CartStore
	tokens     *auth.TokenIssuer
	bcryptCost int
}

func NewUserService(users store.UserStore, carts store.CartStore, tokens *auth.TokenIssuer, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{users: users, carts: carts, tokens: tokens, bcryptCost: bcryptCost}
}

func (s *UserService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// Register creates a regular user; admins only come from EnsureAdmin
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     models.NormalizeEmail(req.Email),
		Password:  hashed,
		Role:      models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: email already exists", models.ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// Login verifies the password and rotates the stored refresh token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenPair, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", models.ErrNotFound)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", models.ErrUnauthenticated)
	}

	access, exp, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, err
	}
	user.RefreshToken = refresh

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
		ExpiresAt:    exp,
		User:         user,
	}, nil
}

// Refresh exchanges the currently stored refresh token for a new access
// token. A valid but superseded token is refused with ErrUnauthorized.
func (s *UserService) Refresh(ctx context.Context, req *models.RefreshRequest) (*models.AccessToken, error) {
	if err := models.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: refresh token is not provided", models.ErrUnauthenticated)
	}
	userID, err := s.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.RefreshToken == "" || user.RefreshToken != req.RefreshToken {
		return nil, fmt.Errorf("%w: refresh token incorrect", models.ErrUnauthorized)
	}
	access, exp, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	return &models.AccessToken{AccessToken: access, TokenType: tokenType, ExpiresAt: exp}, nil
}

// Authenticate resolves a bearer token to the caller identity
func (s *UserService) Authenticate(raw string) (models.Identity, error) {
	return s.tokens.ParseAccess(raw)
}

func (s *UserService) Get(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// Update applies a partial update. Users may edit themselves; admins may
// edit anyone and are the only ones allowed to change a role.
func (s *UserService) Update(ctx context.Context, actor models.Identity, id bson.ObjectID, req *models.UpdateUserRequest) (*models.User, error) {
	if !actor.CanAccess(id) {
		return nil, fmt.Errorf("%w: cannot edit another user", models.ErrUnauthorized)
	}
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	if req.Role != nil && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can change roles", models.ErrUnauthorized)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		user.Email = models.NormalizeEmail(*req.Email)
	}
	if req.Password != nil {
		if user.Password, err = s.hash(*req.Password); err != nil {
			return nil, err
		}
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: email already exists", models.ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

// Delete removes the account and its cart
func (s *UserService) Delete(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, err
	}
	if s.carts != nil {
		if err := s.carts.Delete(ctx, id); err != nil {
			logging.FromCtx(ctx).Warn("failed to delete cart of removed user", "user_id", id.Hex(), "err", err)
		}
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account if the email is unused,
// or promotes the existing account.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			return existing, nil
		}
		existing.Role = models.RoleAdmin
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	if firstName == "" {
		firstName = "Store"
	}
	if lastName == "" {
		lastName = "Admin"
	}
	admin := &models.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  hashed,
		Role:      models.RoleAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}
