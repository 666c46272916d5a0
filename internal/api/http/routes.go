package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/cropple-dashboard/internal/dashboard"
	"github.com/i474232898/cropple-dashboard/internal/farm"
	"github.com/i474232898/cropple-dashboard/internal/geo"
	"github.com/i474232898/cropple-dashboard/internal/inference"
	"github.com/i474232898/cropple-dashboard/internal/store"
)

var validate = validator.New()

// Deps are the services behind the HTTP API. Geocoder is optional.
type Deps struct {
	Registry   *dashboard.Registry
	Prefetcher *dashboard.Prefetcher
	Archive    store.Archive
	Geocoder   geo.Resolver
	Logger     *zap.Logger
	AccessLog  bool
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	log := deps.logger()
	v1 := app.Group("/api/v1")
	farms := v1.Group("/farms/:farmId")

	farms.Post("/mount", func(c *fiber.Ctx) error {
		farmID, err := farmParam(c)
		if err != nil {
			return err
		}
		var req mountRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		if err := req.validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		f := req.toFarm(farmID)
		if !f.HasCoordinates() && !f.Address.IsZero() && deps.Geocoder != nil {
			located, err := geo.Locate(c.UserContext(), deps.Geocoder, f)
			if err != nil {
				log.Warn("geocoding failed; mounting without coordinates", zap.String("farmId", farmID), zap.Error(err))
			} else {
				f = located
			}
		}

		p, err := deps.Registry.Mount(c.UserContext(), f)
		if err != nil {
			return mapError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(p.Data())
	})

	farms.Delete("/mount", func(c *fiber.Ctx) error {
		farmID, err := farmParam(c)
		if err != nil {
			return err
		}
		if !deps.Registry.Unmount(farmID) {
			return fiber.NewError(fiber.StatusNotFound, "dashboard not mounted for farm")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	farms.Get("/dashboard", func(c *fiber.Ctx) error {
		p, err := provider(c, deps.Registry)
		if err != nil {
			return err
		}
		return c.JSON(p.Data())
	})

	farms.Post("/dashboard/refresh", func(c *fiber.Ctx) error {
		p, err := provider(c, deps.Registry)
		if err != nil {
			return err
		}
		p.FetchAll(c.UserContext())
		return c.JSON(p.Data())
	})

	farms.Put("/dashboard/:key", func(c *fiber.Ctx) error {
		p, err := provider(c, deps.Registry)
		if err != nil {
			return err
		}
		key, err := dashboard.ParseKey(c.Params("key"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		value := append([]byte(nil), c.Body()...)
		if err := p.UpdateData(c.UserContext(), key, value); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(p.Data())
	})

	farms.Put("/location", func(c *fiber.Ctx) error {
		farmID, err := farmParam(c)
		if err != nil {
			return err
		}
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, err := deps.Registry.Relocate(c.UserContext(), farmID, *req.Latitude, *req.Longitude)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(p.Data())
	})

	farms.Get("/dashboard/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return err
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := deps.Archive.GetRange(req.FarmID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no dashboard history for requested range")
			}
			log.Error("history query failed", zap.String("farmId", req.FarmID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch dashboard history")
		}

		return c.JSON(fiber.Map{
			"farmId":    req.FarmID,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	farms.Post("/prefetch", func(c *fiber.Ctx) error {
		farmID, err := farmParam(c)
		if err != nil {
			return err
		}
		if err := deps.Prefetcher.Prefetch(c.UserContext(), farmID); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "prefetch incomplete: "+err.Error())
		}
		return c.JSON(fiber.Map{"farmId": farmID, "prefetched": true})
	})

	farms.Get("/resources/:name", func(c *fiber.Ctx) error {
		farmID, err := farmParam(c)
		if err != nil {
			return err
		}
		state, err := deps.Prefetcher.Lookup(c.UserContext(), farmID, dashboard.Key(c.Params("name")))
		if err != nil {
			return mapError(err)
		}
		return c.JSON(state)
	})

	farms.Get("/alerts", func(c *fiber.Ctx) error {
		p, err := provider(c, deps.Registry)
		if err != nil {
			return err
		}
		limit, err := limitQuery(c)
		if err != nil {
			return err
		}
		return c.JSON(dashboard.AlertsView(p.Data(), limit))
	})

	farms.Get("/recommendations", func(c *fiber.Ctx) error {
		p, err := provider(c, deps.Registry)
		if err != nil {
			return err
		}
		limit, err := limitQuery(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"recommendations": dashboard.RecommendationsView(p.Data(), limit)})
	})

	v1.Post("/ml-inference", func(c *fiber.Ctx) error {
		var req inference.Request
		if err := c.BodyParser(&req); err != nil {
			return inferenceError(c, errors.New("invalid request body"))
		}
		if err := validate.Struct(req); err != nil {
			return inferenceError(c, err)
		}
		result, err := inference.Run(req)
		if err != nil {
			return inferenceError(c, err)
		}
		return c.JSON(fiber.Map{
			"success":   true,
			"data":      result,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func inferenceError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success":   false,
		"error":     err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// mapError translates domain errors into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, dashboard.ErrNotMounted), errors.Is(err, dashboard.ErrUnknownResource):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, farm.ErrMissingFarmID), errors.Is(err, dashboard.ErrUnknownKey):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

func farmParam(c *fiber.Ctx) (string, error) {
	id := c.Params("farmId")
	if err := validate.Var(id, "required,max=128"); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid farm id")
	}
	return id, nil
}

func provider(c *fiber.Ctx, r *dashboard.Registry) (*dashboard.Provider, error) {
	farmID, err := farmParam(c)
	if err != nil {
		return nil, err
	}
	p, err := r.Get(farmID)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func limitQuery(c *fiber.Ctx) (int, error) {
	limit := c.QueryInt("limit", dashboard.DefaultAlertLimit)
	if err := validate.Var(limit, "min=1,max=50"); err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 50")
	}
	return limit, nil
}

// mountRequest is the optional body of a mount call.
type mountRequest struct {
	Name      string       `json:"name" validate:"max=200"`
	Latitude  *float64     `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64     `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Address   farm.Address `json:"address"`
}

func (m mountRequest) validate() error {
	if err := validate.Struct(m); err != nil {
		return err
	}
	if (m.Latitude == nil) != (m.Longitude == nil) {
		return errors.New("latitude and longitude must be given together")
	}
	return nil
}

func (m mountRequest) toFarm(farmID string) farm.Farm {
	return farm.Farm{
		ID:        farmID,
		Name:      m.Name,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Address:   m.Address,
	}
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	FarmID string    `validate:"required"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	farmID, err := farmParam(c)
	if err != nil {
		return err
	}
	h.FarmID = farmID

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	to, err := parseTime(toStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
