package handler

import (
	"io"

	"test-solver/internal/dto"
	"test-solver/internal/logger"
	"test-solver/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// defaultCreatedBy is used when the upload form carries no owner.
const defaultCreatedBy = "api_user"

// TestHandler handles test-related HTTP requests
type TestHandler struct {
	testService       service.TestService
	processingService service.ProcessingService
}

// NewTestHandler creates a new TestHandler instance
func NewTestHandler(testService service.TestService, processingService service.ProcessingService) *TestHandler {
	return &TestHandler{
		testService:       testService,
		processingService: processingService,
	}
}

// UploadTest godoc
// @Summary Upload a test file
// @Description Accepts a PDF or image file, stores it, and starts asynchronous solving
// @Tags tests
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Test file (pdf, png, jpg, jpeg, tiff, bmp)"
// @Param title formData string false "Test title, defaults to the filename"
// @Param created_by formData string false "Owner identifier"
// @Success 202 {object} dto.UploadResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/tests/upload [post]
func (h *TestHandler) UploadTest(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "uploaded file could not be opened")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "uploaded file could not be read")
	}

	createdBy := c.FormValue("created_by")
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}

	resp, err := h.testService.UploadTest(c.Context(), service.UploadTestRequest{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
		Title:       c.FormValue("title"),
		CreatedBy:   createdBy,
	})
	if err != nil {
		return err
	}

	logger.Get().Info("Upload accepted",
		zap.String("test_id", resp.TestID),
		zap.String("filename", resp.Filename))
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// ListTests godoc
// @Summary List tests
// @Description Returns the tests owned by created_by, newest first
// @Tags tests
// @Produce json
// @Param created_by query string false "Owner identifier"
// @Success 200 {object} dto.TestListResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /api/tests [get]
func (h *TestHandler) ListTests(c *fiber.Ctx) error {
	createdBy := c.Query("created_by")
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}

	resp, err := h.testService.ListTests(c.Context(), createdBy)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GetTest godoc
// @Summary Get a test with its questions
// @Tags tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} dto.TestResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/tests/{id} [get]
func (h *TestHandler) GetTest(c *fiber.Ctx) error {
	resp, err := h.testService.GetTest(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// GetTestStatus godoc
// @Summary Get processing progress for a test
// @Tags tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} dto.StatusResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/tests/{id}/status [get]
func (h *TestHandler) GetTestStatus(c *fiber.Ctx) error {
	resp, err := h.processingService.GetProcessingStatus(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// CancelTest godoc
// @Summary Cancel processing of a test
// @Tags tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/tests/{id}/cancel [post]
func (h *TestHandler) CancelTest(c *fiber.Ctx) error {
	if err := h.processingService.CancelProcessing(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Processing cancelled"})
}

// DeleteTest godoc
// @Summary Delete a test and its stored file
// @Tags tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/tests/{id} [delete]
func (h *TestHandler) DeleteTest(c *fiber.Ctx) error {
	if err := h.testService.DeleteTest(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Test deleted"})
}
