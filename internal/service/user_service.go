package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/export"
	"github.com/noah-isme/academy-api/pkg/password"
)

const (
	exportPageSize = 100
	maxExportRows  = 10000
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByRegistrationNumber(ctx context.Context, registrationNumber string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for provisioning accounts.
type CreateUserRequest struct {
	RegistrationNumber string          `json:"registrationNumber"`
	Email              string          `json:"email" validate:"omitempty,email"`
	FirstName          string          `json:"firstName" validate:"required"`
	LastName           string          `json:"lastName"`
	Role               models.UserRole `json:"role" validate:"required,oneof=admin teacher parent student"`
	Phone              string          `json:"phone"`
	Password           string          `json:"password"`
	Active             *bool           `json:"active"`
}

// UpdateUserStatusRequest toggles the active flag.
type UpdateUserStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// UserConfig tunes provisioning rules.
type UserConfig struct {
	MinPasswordLength int
	RevocationTTL     time.Duration
}

// UserService handles account provisioning workflows.
type UserService struct {
	repo      userRepository
	hasher    credentialHasher
	revoker   tokenRevoker
	validator *validator.Validate
	logger    *zap.Logger
	config    UserConfig
}

// NewUserService creates an instance of UserService. revoker may be nil.
func NewUserService(repo userRepository, hasher credentialHasher, revoker tokenRevoker, validate *validator.Validate, logger *zap.Logger, config UserConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = defaultMinPasswordLen
	}
	return &UserService{repo: repo, hasher: hasher, revoker: revoker, validator: validate, logger: logger, config: config}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions an account. Without a password the account can only sign in by OTP.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if strings.TrimSpace(req.RegistrationNumber) == "" && strings.TrimSpace(req.Email) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registrationNumber or email is required")
	}

	user := &models.User{
		ID:        uuid.NewString(),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      req.Role,
		Active:    req.Active == nil || *req.Active,
	}

	if reg := strings.TrimSpace(req.RegistrationNumber); reg != "" {
		if HasParentMarker(reg) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "registrationNumber must not end in p or P")
		}
		if _, err := s.repo.FindByRegistrationNumber(ctx, reg); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration number already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration number")
		}
		user.RegistrationNumber = &reg
	}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		if _, err := s.repo.FindByEmail(ctx, email); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
		}
		user.Email = &email
	}

	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = &phone
	}

	if req.Password != "" {
		if len(req.Password) < s.config.MinPasswordLength || len(req.Password) > password.MaxLength {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("password must be %d to %d characters", s.config.MinPasswordLength, password.MaxLength))
		}
		digest, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = &digest
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "role": user.Role, "active": user.Active})
	s.audit(ctx, actorID, models.AuditActionUserCreate, user.ID, nil, newPayload, meta)

	return user, nil
}

// SetActive toggles the active flag. Deactivation revokes outstanding tokens.
func (s *UserService) SetActive(ctx context.Context, id string, active bool, actorID string, meta models.RequestMeta) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.SetActive(ctx, id, active, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}

	if !active && s.revoker != nil {
		if err := s.revoker.RevokeUserTokens(ctx, id, now, s.config.RevocationTTL); err != nil {
			s.logger.Warn("failed to revoke tokens of deactivated user", zap.String("user_id", id), zap.Error(err))
		}
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"active": user.Active})
	newPayload, _ := json.Marshal(map[string]interface{}{"active": active})
	s.audit(ctx, actorID, models.AuditActionUserStatus, id, oldPayload, newPayload, meta)

	user.Active = active
	user.UpdatedAt = now
	return user, nil
}

// ExportFile is a rendered user roster.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// Export renders every user matching filter, ignoring its paging fields.
func (s *UserService) Export(ctx context.Context, filter models.UserFilter, format export.Format, actorID string, meta models.RequestMeta) (*ExportFile, error) {
	filter.PageSize = exportPageSize
	var users []models.User
	for page := 1; len(users) < maxExportRows; page++ {
		filter.Page = page
		batch, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
		}
		users = append(users, batch...)
		if len(batch) < exportPageSize || len(users) >= total {
			break
		}
	}
	if len(users) > maxExportRows {
		users = users[:maxExportRows]
	}

	renderer := export.For(format)
	body, err := renderer.Render(userDataset(users))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	now := time.Now().UTC()
	newPayload, _ := json.Marshal(map[string]interface{}{"format": format, "rows": len(users)})
	s.audit(ctx, actorID, models.AuditActionUserExport, "", nil, newPayload, meta)

	return &ExportFile{
		Filename:    fmt.Sprintf("users-%s.%s", now.Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
		Rows:        len(users),
	}, nil
}

func userDataset(users []models.User) export.Dataset {
	data := export.Dataset{
		Title:   "User roster",
		Headers: []string{"ID", "Registration number", "Email", "First name", "Last name", "Role", "Active", "Last login"},
		Rows:    make([][]string, 0, len(users)),
	}
	for _, u := range users {
		lastLogin := ""
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.UTC().Format(time.RFC3339)
		}
		registration := ""
		if u.RegistrationNumber != nil {
			registration = *u.RegistrationNumber
		}
		data.Rows = append(data.Rows, []string{
			u.ID,
			registration,
			u.EmailAddress(),
			u.FirstName,
			u.LastName,
			string(u.StoredRole()),
			fmt.Sprintf("%t", u.Active),
			lastLogin,
		})
	}
	return data
}

func (s *UserService) audit(ctx context.Context, actorID, action, resourceID string, oldValues, newValues []byte, meta models.RequestMeta) {
	var resource *string
	if resourceID != "" {
		resource = &resourceID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: resource,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
