package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/auth"
	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

const (
	// LocalOperatorID is the key to retrieve the operator id from context
	LocalOperatorID = "operator_id"
	// LocalOperatorRole is the key to retrieve the operator role from context
	LocalOperatorRole = "operator_role"
)

// AuthDependencies contains dependencies for operator authentication
type AuthDependencies struct {
	JWTService *auth.JWTService
	Logger     *slog.Logger
}

// Auth validates the bearer token and stores operator identity in the
// request context.
func Auth(deps AuthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearerToken(c)
		if token == "" {
			deps.Logger.Debug("missing authorization header")
			return domain.ErrUnauthorized
		}

		claims, err := deps.JWTService.ValidateToken(token)
		if err != nil {
			deps.Logger.Warn("invalid JWT token", "error", err)
			return domain.ErrUnauthorized
		}

		c.Locals(LocalOperatorID, claims.OperatorID)
		c.Locals(LocalOperatorRole, claims.Role)

		return c.Next()
	}
}

// GetOperatorID retrieves the authenticated operator id from context
func GetOperatorID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(LocalOperatorID).(uuid.UUID)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}

// extractBearerToken pulls the token from the Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
