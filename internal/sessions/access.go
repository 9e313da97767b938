package sessions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mingle-rounds/backend/internal/middleware"
	"github.com/mingle-rounds/backend/internal/organizations"
	"github.com/mingle-rounds/backend/pkg/response"
)

// RequireSessionAccess returns a middleware that allows the session creator,
// members of its organization, and platform admins.
func RequireSessionAccess(repo *Repository, orgRepo *organizations.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid session id")
			c.Abort()
			return
		}
		s, err := repo.GetByID(c.Request.Context(), sessionID)
		if err != nil {
			response.NotFound(c, "session not found")
			c.Abort()
			return
		}

		userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		role, _ := c.MustGet(middleware.ContextUserRole).(string)
		if role == "admin" || s.CreatedBy == userID {
			c.Next()
			return
		}
		if s.OrganizationID != nil {
			if ok, err := orgRepo.IsMember(c.Request.Context(), *s.OrganizationID, userID); err == nil && ok {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "no access to this session")
		c.Abort()
	}
}
