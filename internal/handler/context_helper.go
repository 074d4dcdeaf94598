package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration-api/internal/middleware"
	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) (*models.JWTClaims, error) {
	claims := middleware.Claims(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

// sectionFromPath reads the :courseCode and :sectionNumber route parameters.
func sectionFromPath(c *gin.Context) (models.SectionKey, error) {
	code := strings.TrimSpace(c.Param("courseCode"))
	if code == "" {
		return models.SectionKey{}, appErrors.Clone(appErrors.ErrValidation, "course code is required")
	}
	number, err := strconv.Atoi(c.Param("sectionNumber"))
	if err != nil || number <= 0 {
		return models.SectionKey{}, appErrors.Clone(appErrors.ErrValidation, "section number must be a positive integer")
	}
	return models.SectionKey{CourseCode: code, SectionNumber: number}, nil
}

func positiveID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return id, nil
}

func invalidPayload(err error) error {
	return appErrors.WrapAs(err, appErrors.ErrValidation, "invalid payload")
}
