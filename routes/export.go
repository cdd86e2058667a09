package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"document-extraction-platform/services"
	"document-extraction-platform/utils"
)

// Export renders extracted records as an XLSX download.
func (h *Handler) Export(c *gin.Context) {
	var req services.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "invalid export request", err.Error())
		return
	}

	schema, ok := h.registry.Get(req.SchemaKey)
	if !ok {
		utils.RespondWithNotFound(c, fmt.Sprintf("unknown schema key %q", req.SchemaKey))
		return
	}

	workbook, err := services.BuildWorkbook(schema, req.Records)
	if err != nil {
		utils.RespondWithInternalError(c, "failed to build workbook", err.Error())
		return
	}

	filename := fmt.Sprintf("%s-export-%s.xlsx", schema.Key, time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
