package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"licitacao/internal/apperror"
	"licitacao/internal/model"
	"licitacao/internal/repository"
	"licitacao/pkg/pagination"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username     string     `json:"username" binding:"required"`
	Email        string     `json:"email" binding:"required,email"`
	Phone        string     `json:"phone"`
	Password     string     `json:"password" binding:"required,min=6"`
	Role         string     `json:"role" binding:"required"`
	DepartmentID *uuid.UUID `json:"department_id"`
}

type UpdateUserRequest struct {
	Username     string     `json:"username"`
	Email        string     `json:"email" binding:"omitempty,email"`
	Phone        string     `json:"phone"`
	Role         string     `json:"role"`
	DepartmentID *uuid.UUID `json:"department_id"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Role           string     `json:"role"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	DepartmentName string     `json:"department_name,omitempty"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
}

// AuthClaims is the JWT payload issued at login and read by the auth middleware.
type AuthClaims struct {
	Role         string `json:"role"`
	DepartmentID string `json:"dept,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the caller identity used by services.
func (c *AuthClaims) Actor() (Actor, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Actor{}, errors.New("invalid subject claim")
	}
	actor := Actor{UserID: userID, Role: c.Role}
	if c.DepartmentID != "" {
		dept, err := uuid.Parse(c.DepartmentID)
		if err != nil {
			return Actor{}, errors.New("invalid department claim")
		}
		actor.DepartmentID = &dept
	}
	return actor, nil
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	ListUsers(ctx context.Context, departmentID *uuid.UUID, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo        repository.UserRepository
	departments repository.DepartmentRepository
	secret      []byte
	ttl         time.Duration
	now         func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, departments repository.DepartmentRepository, jwtSecret string, ttl time.Duration) UserService {
	return &userService{
		repo:        repo,
		departments: departments,
		secret:      []byte(jwtSecret),
		ttl:         ttl,
		now:         time.Now,
	}
}

// Helper: check if role is allowed
func validateRole(role string) bool {
	return role == model.RoleAdmin || role == model.RoleManager || role == model.RoleStaff
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Phone:        user.Phone,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    user.UpdatedAt.Format(time.RFC3339),
	}
	if user.Department != nil {
		res.DepartmentName = user.Department.Name
	}
	return res
}

func (s *userService) checkDepartment(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.departments.FindByID(ctx, *id); err != nil {
		return referenceErr(err, "department_id", "department", *id)
	}
	return nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !validateRole(req.Role) {
		return nil, apperror.Validation("role", "invalid role: must be admin, manager, or staff")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, apperror.Validation("email", "invalid email format")
	}
	if len(req.Password) < 6 {
		return nil, apperror.Validation("password", "password must have at least 6 characters")
	}
	if req.Role != model.RoleAdmin && req.DepartmentID == nil {
		return nil, apperror.Validation("department_id", "non-admin users must belong to a department")
	}
	if err := s.checkDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}

	// Double check username/email uniqueness via repo directly
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperror.Validation("username", "username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperror.Validation("email", "email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err, "failed to hash password")
	}

	user := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     string(hashedPassword),
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperror.Internal(err, "failed to create user")
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Validation("email", "invalid email or password")
		}
		return nil, apperror.Internal(err, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperror.Validation("email", "invalid email or password")
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := AuthClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if user.DepartmentID != nil {
		claims.DepartmentID = user.DepartmentID.String()
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, apperror.Internal(err, "failed to generate token")
	}

	return &TokenResponse{Token: tokenString, ExpiresAt: expires}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "user", id)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, departmentID *uuid.UUID, page, limit int) ([]UserResponse, int64, error) {
	params := pagination.New(page, limit)
	users, total, err := s.repo.List(ctx, departmentID, params.Page, params.Limit)
	if err != nil {
		return nil, 0, apperror.Internal(err, "failed to list users")
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}

	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "user", id)
	}

	if req.Role != "" {
		if !validateRole(req.Role) {
			return nil, apperror.Validation("role", "invalid role: must be admin, manager, or staff")
		}
		user.Role = req.Role
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, apperror.Validation("username", "username already exists")
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, apperror.Validation("email", "email already exists")
		}
		user.Email = req.Email
	}

	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if req.DepartmentID != nil {
		if err := s.checkDepartment(ctx, req.DepartmentID); err != nil {
			return nil, err
		}
		user.DepartmentID = req.DepartmentID
		user.Department = nil
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, apperror.Internal(err, "failed to update user")
	}

	return s.GetUserByID(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return lookupErr(err, "user", id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperror.Internal(err, "failed to delete user")
	}
	return nil
}
