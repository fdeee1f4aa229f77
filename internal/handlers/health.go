package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/crewdeck/crewdeck/pkg/response"
)

// Health returns a status payload useful for readiness checks. The database
// ping degrades the report instead of failing the endpoint.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		dbStatus := "ok"

		if db != nil {
			sqlDB, err := db.DB()
			if err != nil {
				dbStatus = "error"
			} else if err := sqlDB.PingContext(requestContext(c)); err != nil {
				dbStatus = "error"
			}
		} else {
			dbStatus = "not configured"
		}

		if dbStatus != "ok" {
			status = "degraded"
		}

		response.Success(c, http.StatusOK, gin.H{
			"status":   status,
			"database": dbStatus,
		})
	}
}
