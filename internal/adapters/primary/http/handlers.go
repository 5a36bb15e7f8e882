package http

import (
	"codescribe/internal/core/domain"
	"codescribe/internal/core/ports"
	"codescribe/pkg/errors"
	"codescribe/pkg/validator"

	"github.com/gofiber/fiber/v2"
)

// RootMessage is returned by GET /
const RootMessage = "✅ CodeScribe backend is running!"

// DocsHandler handles HTTP requests for documentation generation
type DocsHandler struct {
	docs ports.DocumentationService
}

// NewDocsHandler creates a new documentation handler
func NewDocsHandler(docs ports.DocumentationService) *DocsHandler {
	return &DocsHandler{docs: docs}
}

// GenerateDocsRequest is the body of POST /generate-docs.
// Code is a pointer so a missing field can be told apart from an empty string.
type GenerateDocsRequest struct {
	Code *string `json:"code" validate:"required,code_length"`
}

// GenerateDocsResponse is the success body of POST /generate-docs
type GenerateDocsResponse struct {
	Documentation string `json:"documentation"`
}

// Root reports that the service is up
func (h *DocsHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": RootMessage})
}

// GenerateDocs handles documentation requests
func (h *DocsHandler) GenerateDocs(c *fiber.Ctx) error {
	var req GenerateDocsRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.Wrap(err, errors.ValidationError, "INVALID_REQUEST_BODY", "Invalid request body: code must be a string")
	}

	if err := validator.Get().ValidateStruct(&req); err != nil {
		return errors.NewValidationError(err.Error())
	}

	doc, err := h.docs.GenerateDocs(c.UserContext(), domain.CodeInput{Code: *req.Code})
	if err != nil {
		return err
	}

	return c.JSON(GenerateDocsResponse{Documentation: doc.Documentation})
}

// SetupRoutes registers the documentation routes
func (h *DocsHandler) SetupRoutes(app *fiber.App) {
	app.Get("/", h.Root)
	app.Post("/generate-docs", h.GenerateDocs)
}
