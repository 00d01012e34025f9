package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/storypilot/scheduler/internal/repository"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

// statusFor picks the HTTP status for a service error; lifecycle conflicts
// surface as 409 so the UI can tell them apart from bad requests.
func statusFor(err error) int {
	var ce *repository.ConflictError
	var se *repository.StateError
	if errors.As(err, &ce) || errors.As(err, &se) {
		return fiber.StatusConflict
	}
	return fiber.StatusBadRequest
}
