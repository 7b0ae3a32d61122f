package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/georef"
	"github.com/digmaps/groundcontrol/internal/pkg/gcpfile"
)

var (
	rootCmd = &cobra.Command{
		Use:   "gcp",
		Short: "Fit and apply affine georeferencing transforms from QGIS .points files",
	}

	asJSON bool
	width  float64
	height float64

	pointsFile             string
	a0, a1, a2, b0, b1, b2 float64
	inverse                bool
)

var fitCmd = &cobra.Command{
	Use:   "fit <file.points>",
	Short: "Fit an affine transform to the control points in a .points file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := gcpfile.LoadFile(args[0])
		if err != nil {
			return err
		}

		tr, err := georef.Fit(points)
		if err != nil {
			return err
		}

		result := domain.FitResult{
			Transform:       tr,
			Bounds:          georef.Bounds(tr, width, height),
			RMSEMeters:      georef.RMSE(tr, points),
			ResidualsMeters: georef.Residuals(tr, points),
			ExtentMeters:    georef.Extent(points),
		}
		result.PixelSizeMeters, result.RotationDegrees = georef.Decompose(tr, width, height)

		if asJSON {
			return printJSON(result)
		}

		fmt.Printf("fitted %d control points from %s\n\n", len(points), args[0])
		fmt.Printf("lat = %.10g %+.10g x %+.10g y\n", tr.A0, tr.A1, tr.A2)
		fmt.Printf("lng = %.10g %+.10g x %+.10g y\n\n", tr.B0, tr.B1, tr.B2)
		printBounds(result.Bounds)
		fmt.Printf("rmse        %.3f m\n", result.RMSEMeters)
		fmt.Printf("pixel size  %.3f m/px\n", result.PixelSizeMeters)
		fmt.Printf("rotation    %.2f deg\n", result.RotationDegrees)
		fmt.Printf("extent      %.0f m\n", result.ExtentMeters)
		fmt.Println("residuals")
		for i, r := range result.ResidualsMeters {
			fmt.Printf("  %-8s %.3f m\n", points[i].ID, r)
		}
		return nil
	},
}

var projectCmd = &cobra.Command{
	Use:   "project <x> <y>",
	Short: "Project a pixel point to WGS 84, or lat lng back to pixels with --inverse",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := resolveTransform(cmd)
		if err != nil {
			return err
		}

		u, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("parse %q: %w", args[0], err)
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parse %q: %w", args[1], err)
		}

		if inverse {
			inv, err := georef.Invert(tr)
			if err != nil {
				return err
			}
			px := georef.Unproject(inv, domain.GeoPoint{Lat: u, Lng: v})
			if asJSON {
				return printJSON(px)
			}
			fmt.Printf("x=%.3f y=%.3f\n", px.X, px.Y)
			return nil
		}

		geo := tr.Project(u, v)
		if asJSON {
			return printJSON(geo)
		}
		fmt.Printf("lat=%.8f lng=%.8f\n", geo.Lat, geo.Lng)
		return nil
	},
}

var boundsCmd = &cobra.Command{
	Use:   "bounds",
	Short: "Project the image corners and print the overlay envelope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := resolveTransform(cmd)
		if err != nil {
			return err
		}

		b := georef.Bounds(tr, width, height)
		if asJSON {
			return printJSON(b)
		}
		printBounds(b)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	for _, cmd := range []*cobra.Command{fitCmd, boundsCmd} {
		cmd.Flags().Float64Var(&width, "width", 0, "image width in pixels")
		cmd.Flags().Float64Var(&height, "height", 0, "image height in pixels")
		_ = cmd.MarkFlagRequired("width")
		_ = cmd.MarkFlagRequired("height")
	}

	for _, cmd := range []*cobra.Command{projectCmd, boundsCmd} {
		cmd.Flags().StringVar(&pointsFile, "points", "", "fit the transform from a QGIS .points file")
		cmd.Flags().Float64Var(&a0, "a0", 0, "latitude intercept")
		cmd.Flags().Float64Var(&a1, "a1", 0, "latitude change per pixel x")
		cmd.Flags().Float64Var(&a2, "a2", 0, "latitude change per pixel y")
		cmd.Flags().Float64Var(&b0, "b0", 0, "longitude intercept")
		cmd.Flags().Float64Var(&b1, "b1", 0, "longitude change per pixel x")
		cmd.Flags().Float64Var(&b2, "b2", 0, "longitude change per pixel y")
	}
	projectCmd.Flags().BoolVar(&inverse, "inverse", false, "treat the arguments as lat lng and return the pixel position")

	rootCmd.AddCommand(fitCmd, projectCmd, boundsCmd)
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveTransform builds the transform for project/bounds either by fitting a
// .points file or from the six coefficient flags.
func resolveTransform(cmd *cobra.Command) (domain.AffineTransform, error) {
	if pointsFile != "" {
		points, err := gcpfile.LoadFile(pointsFile)
		if err != nil {
			return domain.AffineTransform{}, err
		}
		return georef.Fit(points)
	}

	for _, name := range []string{"a0", "a1", "a2", "b0", "b1", "b2"} {
		if cmd.Flags().Changed(name) {
			return domain.AffineTransform{A0: a0, A1: a1, A2: a2, B0: b0, B1: b1, B2: b2}, nil
		}
	}
	return domain.AffineTransform{}, errors.New("a transform is required: pass --points or the coefficient flags")
}

func printBounds(b domain.GeoBounds) {
	fmt.Printf("bounds      south=%.8f west=%.8f north=%.8f east=%.8f\n", b.South, b.West, b.North, b.East)
}

func printJSON(v any) error {
	data, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
