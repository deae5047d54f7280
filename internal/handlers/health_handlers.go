package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HealthHandler struct {
	pool *pgxpool.Pool
}

func NewHealthHandler(pool *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Health godoc
// @Summary      Health check
// @Description  Checks if the server and its database connection are healthy
// @Tags         health
// @Accept       json
// @Produce      json
// @Success      200  {object}  HealthResponse   "Returns health status"
// @Failure      503  {object}  ErrorResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if h.pool != nil {
		if err := h.pool.Ping(c.Request.Context()); err != nil {
			sendError(c, http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
