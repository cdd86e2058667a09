package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/models"
)

type schemaListing struct {
	Key         string             `json:"key"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Shape       models.OutputShape `json:"shape"`
	Fields      []models.Field     `json:"fields"`
	Models      []ai.ModelConfig   `json:"models"`
}

// ListSchemas returns every registered schema together with the models it
// can be extracted with.
func (h *Handler) ListSchemas(c *gin.Context) {
	modelList := ai.AvailableModels()
	schemas := h.registry.List()

	out := make([]schemaListing, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, schemaListing{
			Key:         s.Key,
			Name:        s.Name,
			Description: s.Description,
			Shape:       s.Shape(),
			Fields:      s.Fields,
			Models:      modelList,
		})
	}
	c.JSON(http.StatusOK, gin.H{"schemas": out})
}
