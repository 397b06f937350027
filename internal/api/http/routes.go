package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/sunshine-wear/internal/render"
	"github.com/i474232898/sunshine-wear/internal/wearsync"
	"github.com/i474232898/sunshine-wear/internal/weather"
)

var validate = validator.New()

// Pusher starts one phone-to-watch sync.
type Pusher interface {
	Push(ctx context.Context) error
}

// Display is the watchface the watch routes drive.
type Display interface {
	SetVisible(bool)
	SetAmbient(bool)
	Mode() (visible, ambient bool)
	LastFrame() (render.Frame, bool)
}

type weatherResponse struct {
	weather.Snapshot
	Icon weather.Icon `json:"icon"`
}

func newWeatherResponse(s weather.Snapshot) weatherResponse {
	return weatherResponse{Snapshot: s, Icon: s.Icon()}
}

// RegisterPhoneRoutes wires the phone's handlers into the Fiber app.
func RegisterPhoneRoutes(app *fiber.App, service *weather.Service, pusher Pusher, logger *zap.Logger) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		snapshot, err := service.Current(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather data")
		}
		return c.JSON(newWeatherResponse(snapshot))
	})

	// Manual override of the phone's snapshot, pushed to the watch afterwards.
	v1.Put("/weather", func(c *fiber.Ctx) error {
		var req weather.Snapshot
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stored, err := service.Update(c.UserContext(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to store weather data")
		}

		go pushInBackground(pusher, logger)
		return c.JSON(newWeatherResponse(stored))
	})

	v1.Post("/sync", func(c *fiber.Ctx) error {
		if !c.QueryBool("wait") {
			go pushInBackground(pusher, logger)
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
		}

		if err := pusher.Push(c.UserContext()); err != nil {
			return fiber.NewError(syncStatus(err), err.Error())
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})
}

func pushInBackground(pusher Pusher, logger *zap.Logger) {
	if err := pusher.Push(context.Background()); err != nil {
		logger.Warn("background sync failed", zap.Error(err))
	}
}

func syncStatus(err error) int {
	switch {
	case errors.Is(err, wearsync.ErrConnection):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, wearsync.ErrPeerUnavailable):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, wearsync.ErrSend):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// displayRequest carries a visibility and/or ambient mode transition.
type displayRequest struct {
	Visible *bool `json:"visible" validate:"required_without=Ambient"`
	Ambient *bool `json:"ambient" validate:"required_without=Visible"`
}

// RegisterWatchRoutes wires the watch's handlers into the Fiber app.
func RegisterWatchRoutes(app *fiber.App, store weather.Store, display Display) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		snapshot, err := store.Load(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather data")
		}
		return c.JSON(newWeatherResponse(snapshot))
	})

	v1.Get("/frame", func(c *fiber.Ctx) error {
		frame, ok := display.LastFrame()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no frame rendered yet")
		}

		if c.Query("format") != "png" {
			return c.JSON(frame)
		}
		b, err := render.EncodePNG(frame)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to encode frame")
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(b)
	})

	v1.Post("/display", func(c *fiber.Ctx) error {
		var req displayRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if req.Visible != nil {
			display.SetVisible(*req.Visible)
		}
		if req.Ambient != nil {
			display.SetAmbient(*req.Ambient)
		}

		visible, ambient := display.Mode()
		return c.JSON(fiber.Map{"visible": visible, "ambient": ambient})
	})
}
