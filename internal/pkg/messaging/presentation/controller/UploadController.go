package controller

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// UploadController accepts one file per request and stores it under the
// upload directory, returning the remote reference the attachment pipeline
// consumes. The stored name is uuid-prefixed so user filenames cannot
// collide or traverse paths.
type UploadController struct {
	dir     string
	maxSize int64
}

const defaultUploadLimit = 10 << 20 // matches the client pipeline ceiling

func NewUploadController(dir string, maxSize int64) *UploadController {
	if maxSize <= 0 {
		maxSize = defaultUploadLimit
	}
	return &UploadController{dir: dir, maxSize: maxSize}
}

func (h *UploadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize)

		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file field is required: %v", err)})
			return
		}
		if file.Size > h.maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds size limit"})
			return
		}

		if err := os.MkdirAll(h.dir, 0o755); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload storage unavailable"})
			return
		}

		name := uuid.NewString() + "_" + filepath.Base(file.Filename)
		if err := c.SaveUploadedFile(file, filepath.Join(h.dir, name)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}

		c.JSON(http.StatusCreated, domain.AttachmentRef{
			URL:      "/uploads/" + name,
			Filename: file.Filename,
			Size:     file.Size,
		})
	}
}
