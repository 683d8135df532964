package controller

import (
	"compliance-assistant-be/internal/dto"
	"compliance-assistant-be/internal/pkg/serverutils"
	"compliance-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IIngestionController interface {
	RegisterRoutes(r fiber.Router)
	Run(ctx *fiber.Ctx) error
}

type ingestionController struct {
	ingestionService service.IIngestionService
}

func NewIngestionController(ingestionService service.IIngestionService) IIngestionController {
	return &ingestionController{
		ingestionService: ingestionService,
	}
}

func (c *ingestionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/ingestion/v1")
	h.Use(serverutils.JwtMiddleware) // ingestion is an operator action
	h.Post("run", c.Run)
}

func (c *ingestionController) Run(ctx *fiber.Ctx) error {
	var req dto.IngestionRunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.ingestionService.Run(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success run ingestion", res))
}
