package http

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/georef"
	"github.com/digmaps/groundcontrol/internal/core/ports"
	"github.com/digmaps/groundcontrol/internal/core/usecases"
	"github.com/digmaps/groundcontrol/internal/pkg/geospatial"
)

// ---- Request payloads ----

type pixelPointInput struct {
	X float64 `json:"x" validate:"gte=0"`
	Y float64 `json:"y" validate:"gte=0"`
}

type geoPointInput struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// controlPointInput requires both halves of the correspondence; a point with
// only a pixel position or only a map position is unusable and rejected here,
// before the solver ever sees it.
type controlPointInput struct {
	ID    string           `json:"id"`
	Image *pixelPointInput `json:"image" validate:"required"`
	Map   *geoPointInput   `json:"map" validate:"required"`
}

type imageInput struct {
	Name   string `json:"name"`
	Width  int    `json:"width" validate:"required,gt=0"`
	Height int    `json:"height" validate:"required,gt=0"`
}

// fitRequest deliberately has no min=3 on points: too few points is a solver
// outcome (422 insufficient_points), not a malformed request.
type fitRequest struct {
	Image  imageInput          `json:"image" validate:"required"`
	Points []controlPointInput `json:"points" validate:"dive"`
}

type projectRequest struct {
	Transform *domain.AffineTransform `json:"transform" validate:"required"`
	Inverse   bool                    `json:"inverse"`
	Points    json.RawMessage         `json:"points" validate:"required"`
}

type boundsRequest struct {
	Transform *domain.AffineTransform `json:"transform" validate:"required"`
	Image     imageInput              `json:"image" validate:"required"`
}

type updatePointsRequest struct {
	Points []controlPointInput `json:"points" validate:"dive"`
}

// pointBatch wrappers exist so the shared validator can dive into the decoded
// point arrays of /v1/project, whose element type depends on the direction.
type pixelBatch struct {
	Points []pixelPointInput `json:"points" validate:"min=1,dive"`
}

type geoBatch struct {
	Points []geoPointInput `json:"points" validate:"min=1,dive"`
}

func toControlPoints(in []controlPointInput) []domain.ControlPoint {
	points := make([]domain.ControlPoint, len(in))
	for i, p := range in {
		points[i] = domain.ControlPoint{
			ID:    p.ID,
			Image: domain.PixelPoint{X: p.Image.X, Y: p.Image.Y},
			Map:   domain.GeoPoint{Lat: p.Map.Lat, Lng: p.Map.Lng},
		}
	}
	return points
}

// solverError maps domain failures to HTTP responses. The two fit failure
// modes get distinct 422 codes so callers can tell "add more points" apart
// from "spread your points out".
func solverError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, georef.ErrInsufficientPoints):
		return errUnprocessable(c, "insufficient_points", err.Error())
	case errors.Is(err, georef.ErrDegenerateGeometry):
		return errUnprocessable(c, "degenerate_geometry", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "georeference not found")
	default:
		return errInternal(c, err.Error())
	}
}

// ---- Stateless compute handlers ----

// FitHandler computes an affine transform from control points and returns it
// with the derived bounds and quality metrics. Nothing is persisted.
func FitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req fitRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(&req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}
		if deps.MaxControlPoints > 0 && len(req.Points) > deps.MaxControlPoints {
			return errBadRequest(c, "too many control points (limit "+strconv.Itoa(deps.MaxControlPoints)+")")
		}

		result, err := deps.Georef.Fit(c.UserContext(),
			float64(req.Image.Width), float64(req.Image.Height), toControlPoints(req.Points))
		if err != nil {
			return solverError(c, err)
		}

		return c.JSON(result)
	}
}

// ProjectHandler maps points through a caller-supplied transform. Forward
// (pixel to geographic) by default; inverse when the inverse flag is set.
func ProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req projectRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(&req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		if req.Inverse {
			var batch geoBatch
			if err := json.Unmarshal(req.Points, &batch.Points); err != nil {
				return errBadRequest(c, "points must be [{lat,lng}...] when inverse is set")
			}
			if err := validate.Struct(&batch); err != nil {
				return errBadRequest(c, validationMessage(err))
			}

			geoPoints := make([]domain.GeoPoint, len(batch.Points))
			for i, p := range batch.Points {
				geoPoints[i] = domain.GeoPoint{Lat: p.Lat, Lng: p.Lng}
			}
			out, err := deps.Georef.Unproject(c.UserContext(), *req.Transform, geoPoints)
			if err != nil {
				return solverError(c, err)
			}
			return c.JSON(fiber.Map{"points": out, "count": len(out)})
		}

		var batch pixelBatch
		if err := json.Unmarshal(req.Points, &batch.Points); err != nil {
			return errBadRequest(c, "points must be [{x,y}...]")
		}
		if err := validate.Struct(&batch); err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		pixelPoints := make([]domain.PixelPoint, len(batch.Points))
		for i, p := range batch.Points {
			pixelPoints[i] = domain.PixelPoint{X: p.X, Y: p.Y}
		}
		out := deps.Georef.Project(c.UserContext(), *req.Transform, pixelPoints)
		return c.JSON(fiber.Map{"points": out, "count": len(out)})
	}
}

// BoundsHandler projects the image corners through an existing transform.
func BoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req boundsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(&req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}

		bounds := deps.Georef.BoundsFor(c.UserContext(), *req.Transform,
			float64(req.Image.Width), float64(req.Image.Height))
		return c.JSON(fiber.Map{"bounds": bounds})
	}
}

// ---- Reference record handlers ----

// CreateReferenceHandler fits and persists a georeference record.
func CreateReferenceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req fitRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(&req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}
		if deps.MaxControlPoints > 0 && len(req.Points) > deps.MaxControlPoints {
			return errBadRequest(c, "too many control points (limit "+strconv.Itoa(deps.MaxControlPoints)+")")
		}
		if req.Image.Name == "" {
			return errBadRequest(c, "image.name is required for stored references")
		}

		ref, err := deps.References.Create(c.UserContext(), usecases.CreateInput{
			ImageName:   req.Image.Name,
			ImageWidth:  req.Image.Width,
			ImageHeight: req.Image.Height,
			Points:      toControlPoints(req.Points),
		})
		if err != nil {
			return solverError(c, err)
		}

		return c.Status(201).JSON(ref)
	}
}

// GetReferenceHandler returns a single georeference record by ID.
func GetReferenceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "reference id is required")
		}

		ref, err := deps.References.Get(c.UserContext(), id)
		if err != nil {
			return solverError(c, err)
		}
		return c.JSON(ref)
	}
}

// ListReferencesHandler lists records, optionally filtered by image name and
// by area: either an explicit bbox=s,w,n,e or near=lat,lng with a radius in
// meters. The page is cut in memory over the capped repository result.
func ListReferencesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := ports.ReferenceFilter{ImageName: c.Query("image")}

		bbox := c.Query("bbox")
		near := c.Query("near")
		if bbox != "" && near != "" {
			return errBadRequest(c, "bbox and near are mutually exclusive")
		}

		if bbox != "" {
			b, err := parseBBox(bbox)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			filter.Intersects = b
		}

		if near != "" {
			lat, lng, err := parseLatLng(near)
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			radius := c.QueryFloat("radius", 1000)
			if radius <= 0 || radius > 100000 {
				return errBadRequest(c, "radius must be between 1 and 100000 meters")
			}
			minLat, minLng, maxLat, maxLng := geospatial.BoundingBox(lat, lng, radius)
			filter.Intersects = &domain.GeoBounds{South: minLat, West: minLng, North: maxLat, East: maxLng}
		}

		refs, err := deps.References.List(c.UserContext(), filter)
		if err != nil {
			return errInternal(c, err.Error())
		}

		offset, limit := clampPage(c.QueryInt("offset", 0), c.QueryInt("limit", 50), 50, 200)
		page, pg := pageSlice(refs, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// UpdateReferencePointsHandler refits a stored record from an edited point
// set. The transform, bounds, and RMSE are replaced together or not at all.
func UpdateReferencePointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "reference id is required")
		}

		var req updatePointsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := validate.Struct(&req); err != nil {
			return errBadRequest(c, validationMessage(err))
		}
		if deps.MaxControlPoints > 0 && len(req.Points) > deps.MaxControlPoints {
			return errBadRequest(c, "too many control points (limit "+strconv.Itoa(deps.MaxControlPoints)+")")
		}

		ref, err := deps.References.UpdatePoints(c.UserContext(), id, toControlPoints(req.Points))
		if err != nil {
			return solverError(c, err)
		}
		return c.JSON(ref)
	}
}

// DeleteReferenceHandler removes a stored record.
func DeleteReferenceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "reference id is required")
		}

		if err := deps.References.Delete(c.UserContext(), id); err != nil {
			return solverError(c, err)
		}
		return c.SendStatus(204)
	}
}

// ---- Query parsing helpers ----

func parseBBox(raw string) (*domain.GeoBounds, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, errors.New("bbox must be south,west,north,east")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("bbox must be four numbers: south,west,north,east")
		}
		vals[i] = v
	}
	b := &domain.GeoBounds{South: vals[0], West: vals[1], North: vals[2], East: vals[3]}
	if !b.Valid() {
		return nil, errors.New("bbox is not a valid WGS84 envelope")
	}
	return b, nil
}

func parseLatLng(raw string) (float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, errors.New("near must be lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, errors.New("near must be two numbers: lat,lng")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, errors.New("near must be two numbers: lat,lng")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, errors.New("near is outside WGS84 ranges")
	}
	return lat, lng, nil
}
