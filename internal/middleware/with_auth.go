package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// Audiences accepted by AuthOptions.Role. Any other value is matched as a
// single concrete role.
const (
	AuthRoleAny     = "any"
	AuthRoleStaff   = "staff"
	AuthRoleLearner = "learner"
)

var audiences = map[string][]string{
	AuthRoleStaff:   {RoleAdmin, RoleTeacher},
	AuthRoleLearner: {RoleStudent, RoleParent},
}

// AuthOptions configures WithAuth and Guard. Naming an audience implies
// RequireUser.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

func (o AuthOptions) allowedRoles() map[string]struct{} {
	role := strings.ToLower(strings.TrimSpace(o.Role))
	if role == "" || role == AuthRoleAny {
		return nil
	}
	members, ok := audiences[role]
	if !ok {
		members = []string{role}
	}
	allowed := make(map[string]struct{}, len(members))
	for _, member := range members {
		allowed[member] = struct{}{}
	}
	return allowed
}

// WithAuth wraps a single handler with the user and audience checks.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	allowed := opts.allowedRoles()
	requireUser := opts.RequireUser || allowed != nil

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			if requireUser {
				return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
			}
			return handler(c)
		}

		if allowed != nil {
			if _, ok := allowed[normalizeRoleValue(c.Locals("user_role"))]; !ok {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}
		return handler(c)
	}
}

// Guard is WithAuth as group middleware.
func Guard(opts AuthOptions) fiber.Handler {
	return WithAuth(func(c *fiber.Ctx) error { return c.Next() }, opts)
}
