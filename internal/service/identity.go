package service

import (
	"strings"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

// parentMarker is the legacy trailing character selecting parent view.
const parentMarker = "p"

// LoginIdentity is the account key of a login attempt and how it is presented.
type LoginIdentity struct {
	Identifier string
	ParentView bool
}

// OTPSubject is the key one-time codes are bound to. Parent-view codes carry
// the marker so they never redeem a self login and vice versa.
func (i LoginIdentity) OTPSubject() string {
	if i.ParentView {
		return i.Identifier + parentMarker
	}
	return i.Identifier
}

// ResolveLogin maps a raw identifier and an optional view selector to the
// account key. An explicit viewAs disables suffix parsing; without it a single
// trailing p or P selects parent view.
func ResolveLogin(raw string, viewAs models.ViewMode) (LoginIdentity, error) {
	identifier := strings.TrimSpace(raw)
	if identifier == "" {
		return LoginIdentity{}, appErrors.Clone(appErrors.ErrValidation, "registrationNumber is required")
	}

	switch viewAs {
	case models.ViewParent:
		return LoginIdentity{Identifier: identifier, ParentView: true}, nil
	case models.ViewSelf:
		return LoginIdentity{Identifier: identifier}, nil
	case "":
	default:
		return LoginIdentity{}, appErrors.Clone(appErrors.ErrValidation, "viewAs must be self or parent")
	}

	if HasParentMarker(identifier) {
		return LoginIdentity{Identifier: identifier[:len(identifier)-1], ParentView: true}, nil
	}
	return LoginIdentity{Identifier: identifier}, nil
}

// HasParentMarker reports whether identifier ends in the legacy parent-view
// suffix. Such identifiers cannot be used as registration numbers.
func HasParentMarker(identifier string) bool {
	return len(identifier) > 1 && strings.EqualFold(identifier[len(identifier)-1:], parentMarker)
}

// EffectiveRole returns the role presented for user under identity. Parent
// view is only granted over a student account.
func EffectiveRole(user *models.User, identity LoginIdentity) (models.UserRole, error) {
	if identity.ParentView {
		if user == nil || user.Role != models.RoleStudent {
			return "", appErrors.Clone(appErrors.ErrInvalidParentLogin, "")
		}
		return models.RoleParent, nil
	}
	return user.StoredRole(), nil
}
