package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/pkg/response"
	"github.com/classmeet/backend/pkg/utils"
)

// CredentialLength is the size of generated onboarding passwords.
const CredentialLength = 10

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// UserStore is the persistence the handler needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, p ListParams) ([]models.UserPublic, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// CreateUserRequest is the body for POST /users.
type CreateUserRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
}

// UpdateUserRequest is the body for PATCH /users/:id. Empty fields are left unchanged.
type UpdateUserRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
}

// Handler handles auth and user directory HTTP endpoints.
type Handler struct {
	users  UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Create handles POST /users. Admins may only create students.
func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		response.BadRequest(c, "first_name, last_name and email are required")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		response.BadRequest(c, "invalid email format")
		return
	}
	if req.PhoneNumber != "" && !phonePattern.MatchString(req.PhoneNumber) {
		response.BadRequest(c, "phone number must be 10 digits")
		return
	}

	role := models.RoleStudent
	if req.Role != "" {
		r, ok := models.ParseRole(req.Role)
		if !ok {
			response.BadRequest(c, "invalid role")
			return
		}
		role = r
	}
	if !ActorRole(c).Manages(role) {
		response.Forbidden(c, "not allowed to create "+string(role)+" users")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.GetByEmail(ctx, req.Email); err == nil {
		response.BadRequest(c, "email already exists")
		return
	} else if !errors.Is(err, ErrUserNotFound) {
		h.internal(c, "lookup email", err)
		return
	}

	credential, err := utils.NewCredential(CredentialLength)
	if err != nil {
		h.internal(c, "generate credential", err)
		return
	}
	hash, err := utils.HashPassword(credential)
	if err != nil {
		h.internal(c, "hash credential", err)
		return
	}
	u := &models.User{
		Email:                req.Email,
		Password:             hash,
		FirstName:            Capitalize(req.FirstName),
		LastName:             Capitalize(req.LastName),
		PhoneNumber:          req.PhoneNumber,
		Role:                 role,
		OnboardingCredential: &credential,
	}
	if err := h.users.Create(ctx, u); err != nil {
		h.internal(c, "create user", err)
		return
	}
	h.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(role)))
	response.Created(c, gin.H{"message": "User created successfully", "user": u.ToPublic()})
}

// List handles GET /users. Owners see admins and students, admins see students.
// Query: ?search= matches names, email, phone and role; ?role= narrows (repeatable).
func (h *Handler) List(c *gin.Context) {
	visible := ActorRole(c).Visible()
	roles := visible
	if wanted := c.QueryArray("role"); len(wanted) > 0 {
		roles = nil
		for _, w := range wanted {
			r, ok := models.ParseRole(w)
			if !ok {
				response.BadRequest(c, "invalid role")
				return
			}
			if containsRole(visible, r) {
				roles = append(roles, r)
			}
		}
		if len(roles) == 0 {
			response.OK(c, []models.UserPublic{})
			return
		}
	}

	list, err := h.users.List(c.Request.Context(), ListParams{Roles: roles, Search: strings.TrimSpace(c.Query("search"))})
	if err != nil {
		h.internal(c, "list users", err)
		return
	}
	if list == nil {
		list = []models.UserPublic{}
	}
	response.OK(c, list)
}

// GetByID handles GET /users/:id.
func (h *Handler) GetByID(c *gin.Context) {
	u, ok := h.target(c, "view")
	if !ok {
		return
	}
	response.OK(c, u.ToPublic())
}

// Update handles PATCH /users/:id. Only owners may change a role.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, ok := h.target(c, "update")
	if !ok {
		return
	}

	if s := strings.TrimSpace(req.FirstName); s != "" {
		u.FirstName = Capitalize(s)
	}
	if s := strings.TrimSpace(req.LastName); s != "" {
		u.LastName = Capitalize(s)
	}
	if s := strings.TrimSpace(req.Email); s != "" {
		if !emailPattern.MatchString(s) {
			response.BadRequest(c, "invalid email format")
			return
		}
		u.Email = s
	}
	if req.PhoneNumber != "" {
		if !phonePattern.MatchString(req.PhoneNumber) {
			response.BadRequest(c, "phone number must be 10 digits")
			return
		}
		u.PhoneNumber = req.PhoneNumber
	}
	if req.Role != "" && ActorRole(c) == models.RoleOwner {
		r, ok := models.ParseRole(req.Role)
		if !ok {
			response.BadRequest(c, "invalid role")
			return
		}
		u.Role = r
	}

	if err := h.users.Update(c.Request.Context(), u); err != nil {
		h.internal(c, "update user", err)
		return
	}
	response.OK(c, gin.H{"message": "User updated", "user": u.ToPublic()})
}

// Delete handles DELETE /users/:id.
func (h *Handler) Delete(c *gin.Context) {
	u, ok := h.target(c, "delete")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), u.ID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		h.internal(c, "delete user", err)
		return
	}
	response.OK(c, gin.H{"message": "User deleted successfully"})
}

// target loads the :id user and checks the caller manages its role.
func (h *Handler) target(c *gin.Context, verb string) (*models.User, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return nil, false
	}
	u, err := h.users.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		response.NotFound(c, "user not found")
		return nil, false
	}
	if err != nil {
		h.internal(c, "get user", err)
		return nil, false
	}
	if !ActorRole(c).Manages(u.Role) {
		response.Forbidden(c, "not allowed to "+verb+" "+string(u.Role)+" users")
		return nil, false
	}
	return u, true
}

func (h *Handler) internal(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	_ = c.Error(err)
	response.Internal(c, "internal error")
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}

func containsRole(list []models.Role, r models.Role) bool {
	for _, x := range list {
		if x == r {
			return true
		}
	}
	return false
}
