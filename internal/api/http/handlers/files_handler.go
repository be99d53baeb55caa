package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/claim-service/internal/auth"
	"github.com/spec-kit/claim-service/internal/storage"
	apperrors "github.com/spec-kit/claim-service/pkg/util/errorutil"
)

// FilesHandler serves stored receipt files.
type FilesHandler struct {
	receipts storage.ReceiptStore
}

// NewFilesHandler constructs handler.
func NewFilesHandler(receipts storage.ReceiptStore) *FilesHandler {
	return &FilesHandler{receipts: receipts}
}

// Serve GET /uploads/:file.
func (h *FilesHandler) Serve(c *fiber.Ctx) error {
	if _, ok := auth.ActorFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	path, err := h.receipts.Resolve(c.Params("file"))
	if err != nil {
		return err
	}
	return c.SendFile(path)
}
