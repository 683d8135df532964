package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"compliance-assistant-be/internal/dto"
	"compliance-assistant-be/internal/pkg/serverutils"
	"compliance-assistant-be/internal/service"
	"compliance-assistant-be/pkg/agent"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type ISearchController interface {
	RegisterRoutes(r fiber.Router)
	Retrieve(ctx *fiber.Ctx) error
	ChatStream(ctx *fiber.Ctx) error
	Logs(ctx *fiber.Ctx) error
}

type searchController struct {
	searchService service.ISearchService
}

func NewSearchController(searchService service.ISearchService) ISearchController {
	return &searchController{
		searchService: searchService,
	}
}

func (c *searchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/search/v1")
	h.Post("retrieve", c.Retrieve)
	h.Post("chat/stream", c.ChatStream)
	h.Get("logs", c.Logs)
}

func (c *searchController) Retrieve(ctx *fiber.Ctx) error {
	var req dto.RetrieveRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.searchService.Retrieve(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success retrieve documents", res))
}

// ChatStream streams the assistant's answer as server-sent events. Each agent
// event becomes one SSE event; the stream always ends with "done" or "error".
func (c *searchController) ChatStream(ctx *fiber.Ctx) error {
	var req dto.ChatStreamRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// The handler has already returned by the time this runs, so the
		// stream carries its own context, cancelled when the client is gone.
		streamCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := c.searchService.ChatStream(streamCtx, &req)
		if err != nil {
			writeSSE(w, "error", map[string]interface{}{"error": err.Error()})
			return
		}

		for event := range events {
			if err := writeSSE(w, string(event.Type), sseData(event)); err != nil {
				// Client disconnected; cancel tells the service to stop.
				return
			}
		}
	}))

	return nil
}

func (c *searchController) Logs(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 20)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.searchService.GetLogs(ctx.Context(), limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get search logs", res))
}

func sseData(event agent.Event) map[string]interface{} {
	switch event.Type {
	case agent.EventTextDelta:
		return map[string]interface{}{"delta": event.Delta}
	case agent.EventToolCall:
		return map[string]interface{}{"tool": event.ToolName, "args": event.ToolArgs}
	case agent.EventToolResult:
		return map[string]interface{}{"tool": event.ToolName, "result": event.ToolResult}
	case agent.EventDone:
		return map[string]interface{}{"answer": event.Answer}
	case agent.EventError:
		return map[string]interface{}{"error": event.Err.Error()}
	default:
		return map[string]interface{}{}
	}
}

func writeSSE(w *bufio.Writer, eventType string, data map[string]interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	return w.Flush()
}
