package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// bindBody parses the request body into req and runs its validate tags.
func bindBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return apperrors.ValidateStruct(req)
}

func queryString(c *fiber.Ctx, key string) *string {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil
	}
	return &v
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewFieldError(key, "must be a non-negative integer")
	}
	return n, nil
}

func pagination(c *fiber.Ctx) (limit, offset int, err error) {
	if limit, err = queryInt(c, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(c, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
