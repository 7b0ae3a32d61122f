package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/ports"
)

// buildSchema creates the GraphQL read schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	pixelPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PixelPoint",
		Fields: graphql.Fields{
			"x": &graphql.Field{Type: graphql.Float},
			"y": &graphql.Field{Type: graphql.Float},
		},
	})

	controlPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ControlPoint",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.String},
			"image": &graphql.Field{Type: pixelPointType},
			"map":   &graphql.Field{Type: geoPointType},
		},
	})

	transformType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AffineTransform",
		Fields: graphql.Fields{
			"a0": &graphql.Field{Type: graphql.Float},
			"a1": &graphql.Field{Type: graphql.Float},
			"a2": &graphql.Field{Type: graphql.Float},
			"b0": &graphql.Field{Type: graphql.Float},
			"b1": &graphql.Field{Type: graphql.Float},
			"b2": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoBounds",
		Fields: graphql.Fields{
			"south": &graphql.Field{Type: graphql.Float},
			"west":  &graphql.Field{Type: graphql.Float},
			"north": &graphql.Field{Type: graphql.Float},
			"east":  &graphql.Field{Type: graphql.Float},
		},
	})

	georeferenceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Georeference",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"image_name":   &graphql.Field{Type: graphql.String},
			"image_width":  &graphql.Field{Type: graphql.Int},
			"image_height": &graphql.Field{Type: graphql.Int},
			"points":       &graphql.Field{Type: graphql.NewList(controlPointType)},
			"transform":    &graphql.Field{Type: transformType},
			"bounds":       &graphql.Field{Type: boundsType},
			"rmse_meters":  &graphql.Field{Type: graphql.Float},
			"created_at":   &graphql.Field{Type: graphql.DateTime},
			"updated_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"reference": &graphql.Field{
				Type:        georeferenceType,
				Description: "Get a georeference record by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.References.Get(p.Context, id)
				},
			},
			"references": &graphql.Field{
				Type:        graphql.NewList(georeferenceType),
				Description: "List georeference records, optionally filtered by image name",
				Args: graphql.FieldConfigArgument{
					"image": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					image := p.Args["image"].(string)
					limit := p.Args["limit"].(int)
					return deps.References.List(p.Context, ports.ReferenceFilter{
						ImageName: image,
						Limit:     limit,
					})
				},
			},
			"projectPoint": &graphql.Field{
				Type:        geoPointType,
				Description: "Project a pixel position through an affine transform",
				Args: graphql.FieldConfigArgument{
					"a0": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"a1": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"a2": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"b0": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"b1": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"b2": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"x":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"y":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					tr := domain.AffineTransform{
						A0: p.Args["a0"].(float64),
						A1: p.Args["a1"].(float64),
						A2: p.Args["a2"].(float64),
						B0: p.Args["b0"].(float64),
						B1: p.Args["b1"].(float64),
						B2: p.Args["b2"].(float64),
					}
					return tr.Project(p.Args["x"].(float64), p.Args["y"].(float64)), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if result.HasErrors() {
			LoggerFromCtx(c.UserContext()).Warn("graphql query errors",
				"operation", req.OperationName, "errors", len(result.Errors))
		}

		return c.JSON(result)
	}
}
