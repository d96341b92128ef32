package security

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/insightdash/internal/apperrors"
)

// Role represents a user role
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Permission represents an action permission
type Permission string

const (
	PermManageResources Permission = "manage_resources"
	PermViewDashboard   Permission = "view_dashboard"
	PermUploadData      Permission = "upload_data"
	PermUseAssistant    Permission = "use_assistant"
	PermManageUsers     Permission = "manage_users"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageResources,
		PermViewDashboard,
		PermUploadData,
		PermUseAssistant,
		PermManageUsers,
	},
	RoleUser: {
		PermManageResources,
		PermViewDashboard,
		PermUploadData,
		PermUseAssistant,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role Role, permission Permission) bool {
	return slices.Contains(RolePermissions[role], permission)
}

// ValidatePermission returns an error wrapping apperrors.ErrForbidden when role lacks permission
func (as *AuthorizationService) ValidatePermission(role Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%s role cannot %s: %w", role, permission, apperrors.ErrForbidden)
	}
	return nil
}
