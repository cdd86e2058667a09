package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"document-extraction-platform/internal/logger"
	"document-extraction-platform/models"
	"document-extraction-platform/services"
	"document-extraction-platform/utils"
)

// Process accepts a multipart upload and streams the run as server-sent
// events. Form fields: files (repeated), schema_key, model (optional),
// instructions (optional).
func (h *Handler) Process(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		utils.RespondWithBadRequest(c, "invalid multipart form", err.Error())
		return
	}

	schemaKey := c.PostForm("schema_key")
	if _, ok := h.registry.Get(schemaKey); !ok {
		utils.RespondWithError(c, 400, string(models.ErrKindInvalidSchemaKey),
			fmt.Sprintf("unknown schema key %q", schemaKey), nil)
		return
	}

	modelID := c.PostForm("model")
	if modelID == "" {
		modelID = h.cfg.DefaultModel
	}

	uploads := form.File["files"]
	for _, f := range uploads {
		if f.Size > h.cfg.MaxFileSize {
			utils.RespondWithPayloadTooLarge(c,
				fmt.Sprintf("file %q exceeds the %d byte limit", f.Filename, h.cfg.MaxFileSize))
			return
		}
	}

	// Saved uploads are handed to the lifecycle manager during the run;
	// the retention sweeper deletes them, not this handler.
	entries, err := h.saveUploads(uploads)
	if err != nil {
		utils.RespondWithInternalError(c, "failed to store uploads", err.Error())
		return
	}

	runID := uuid.New().String()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Run-ID", runID)
	c.Writer.Flush()

	sink := func(event any) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	req := services.RunRequest{
		RunID:        runID,
		Files:        entries,
		SchemaKey:    schemaKey,
		Instructions: c.PostForm("instructions"),
		ModelID:      modelID,
	}
	if err := h.orchestrator.Run(c.Request.Context(), req, sink); err != nil {
		// Validation failed before the stream opened.
		logger.Warn("run rejected", "run_id", runID, "error", err)
	}
}

// saveUploads persists multipart files under the uploads directory and
// returns their pipeline entries. On error the partial copies are removed.
func (h *Handler) saveUploads(uploads []*multipart.FileHeader) ([]models.FileEntry, error) {
	if err := os.MkdirAll(h.cfg.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	entries := make([]models.FileEntry, 0, len(uploads))
	for _, f := range uploads {
		dst := filepath.Join(h.cfg.UploadsDir, uuid.New().String()+filepath.Ext(f.Filename))
		if err := saveFile(f, dst); err != nil {
			for _, e := range entries {
				if rmErr := os.Remove(e.Path); rmErr != nil && !os.IsNotExist(rmErr) {
					logger.Warn("failed to remove upload", "path", e.Path, "error", rmErr)
				}
			}
			return nil, err
		}
		entries = append(entries, models.NewDirectEntry(dst, filepath.Base(f.Filename)))
	}
	return entries, nil
}

func saveFile(f *multipart.FileHeader, dst string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload %q: %w", f.Filename, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to write %q: %w", dst, err)
	}
	return nil
}
