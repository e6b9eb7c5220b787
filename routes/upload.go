package routes

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"skyquery-bot/internal/logger"
	"skyquery-bot/internal/queue"
	"skyquery-bot/middleware"
	"skyquery-bot/models"
	"skyquery-bot/utils"

	"github.com/gin-gonic/gin"
)

// DefaultMaxUploadSize caps an uploaded document.
const DefaultMaxUploadSize = 50 << 20

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
)

// HandleDocumentUpload stores a PDF, DOCX or XLSX next to the crawled
// documents and enqueues chunk preparation (chained to the graph build).
func HandleDocumentUpload(uploadDir string, maxSize int64, enqueuer queue.Enqueuer) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+1<<20)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file", "No document provided", gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		if header.Size > maxSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large", "File size exceeds maximum limit", gin.H{"max_bytes": maxSize})
			return
		}

		name := filepath.Base(filepath.Clean(header.Filename))
		docType, ok := models.ChunkTypeFromExt(filepath.Ext(name))
		if !ok || name == "." || strings.HasPrefix(name, ".") {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type", "Only PDF, DOCX and XLSX files are allowed", nil)
			return
		}

		// Check the signature without loading the whole file
		headerBuf := make([]byte, 4)
		if _, err := io.ReadFull(file, headerBuf); err != nil || !hasMagic(docType, headerBuf) {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file", fmt.Sprintf("File does not appear to be a valid %s", strings.ToUpper(string(docType))), nil)
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			utils.RespondWithInternalError(c, "Failed to reset file for saving", nil)
			return
		}

		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}
		dest := filepath.Join(uploadDir, name)
		size, err := saveUpload(file, dest)
		if err != nil {
			logger.Error("Failed to save upload", "file", name, "error", err)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		task, err := queue.NewChunksTask(queue.ChunksPayload{Chain: true})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()
		info, err := enqueuer.EnqueueContext(ctx, task)
		if err != nil {
			// The file stays; the next chunk run picks it up.
			logger.Error("Failed to enqueue chunk preparation", "file", name, "error", err)
			utils.RespondWithServiceUnavailable(c, "Document saved but processing could not be queued", gin.H{"filename": name})
			return
		}

		logger.Info("Document uploaded", "file", name, "size", size, "task_id", info.ID, "by", middleware.GetAdminSubject(c))
		c.JSON(http.StatusAccepted, gin.H{
			"message":  "Document accepted for processing",
			"filename": name,
			"type":     docType,
			"size":     size,
			"task_id":  info.ID,
		})
	}
}

func hasMagic(docType models.ChunkType, head []byte) bool {
	switch docType {
	case models.ChunkTypePDF:
		return bytes.Equal(head, pdfMagic)
	case models.ChunkTypeDOCX, models.ChunkTypeXLSX:
		return bytes.Equal(head, zipMagic)
	}
	return false
}

// saveUpload writes to a temp file in the target directory and renames it
// into place so chunk preparation never reads a partial document.
func saveUpload(src io.Reader, dest string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, err
	}
	return n, nil
}
