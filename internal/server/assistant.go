package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/aide/internal/orchestrator"
)

// Assistant is the part of the orchestrator the HTTP API calls.
type Assistant interface {
	RouteAs(ctx context.Context, query, defaultUser string) (string, error)
	Ask(ctx context.Context, domain, query, defaultUser string) (string, error)
	Domains() []string
}

type AssistantHandler struct {
	Assistant Assistant
}

type askRequest struct {
	Instruction string `json:"instruction"`
	// UserID is the default identity when the instruction names none.
	UserID string `json:"user_id"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

func (h *AssistantHandler) Register(g *echo.Group) {
	g.POST("/assistant", h.assistant)
	g.GET("/agents", h.list)
	g.POST("/agents/:domain", h.agent)
}

func (h *AssistantHandler) assistant(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instruction is required")
	}
	reply, err := h.Assistant.RouteAs(c.Request().Context(), req.Instruction, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, askResponse{Reply: reply})
}

func (h *AssistantHandler) agent(c echo.Context) error {
	domain := c.Param("domain")
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instruction is required")
	}
	reply, err := h.Assistant.Ask(c.Request().Context(), domain, req.Instruction, req.UserID)
	if errors.Is(err, orchestrator.ErrUnknownDomain) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown agent: "+domain)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, askResponse{Reply: reply})
}

func (h *AssistantHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"agents": h.Assistant.Domains()})
}
