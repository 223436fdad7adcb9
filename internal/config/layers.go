package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jcom-dev/weathergrid/internal/coordinator"
	"github.com/jcom-dev/weathergrid/internal/render/colormap"
	"github.com/jcom-dev/weathergrid/internal/render/contour"
	"github.com/jcom-dev/weathergrid/internal/render/windbarb"
)

// layersFile is the on-disk shape of the layer/style registry YAML
// named by Config.LayersPath.
type layersFile struct {
	Layers []layerYAML `yaml:"layers"`
}

type layerYAML struct {
	Name      string               `yaml:"name"`
	Model     string               `yaml:"model"`
	Parameter string               `yaml:"parameter"`
	Styles    map[string]styleYAML `yaml:"styles"`
}

type styleYAML struct {
	Kind string `yaml:"kind"` // "raster", "contour", or "wind_barb"

	// raster
	Stops     []stopYAML `yaml:"stops,omitempty"`
	Transform string     `yaml:"transform,omitempty"` // "identity" or "kelvin_to_celsius"

	// contour
	Levels          []float64        `yaml:"levels,omitempty"`
	SpecialLevels   []specialLevelYAML `yaml:"special_levels,omitempty"`
	SmoothingPasses int              `yaml:"smoothing_passes,omitempty"`
	StrokeWidth     float64          `yaml:"stroke_width,omitempty"`
	StrokeColor     string           `yaml:"stroke_color,omitempty"`

	// wind_barb
	UComponent string `yaml:"u_component,omitempty"`
	VComponent string `yaml:"v_component,omitempty"`
	SpacingPx  float64 `yaml:"spacing_px,omitempty"`
}

type stopYAML struct {
	Value float64 `yaml:"value"`
	Color string  `yaml:"color"` // "#RRGGBB" or "#RRGGBBAA"
}

type specialLevelYAML struct {
	Value float64 `yaml:"value"`
	Width float64 `yaml:"width"`
	Label string  `yaml:"label"`
}

// LoadLayers reads the layer/style registry named by Config.LayersPath
// and builds the coordinator.Layer map it's constructed with.
func LoadLayers(path string) (map[string]coordinator.Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read layers file: %w", err)
	}

	var f layersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse layers file: %w", err)
	}

	layers := make(map[string]coordinator.Layer, len(f.Layers))
	for _, ly := range f.Layers {
		styles := make(map[string]coordinator.LayerStyle, len(ly.Styles))
		for name, sy := range ly.Styles {
			style, err := buildLayerStyle(sy)
			if err != nil {
				return nil, fmt.Errorf("config: layer %q style %q: %w", ly.Name, name, err)
			}
			styles[name] = style
		}
		layers[ly.Name] = coordinator.Layer{Model: ly.Model, Parameter: ly.Parameter, Styles: styles}
	}
	return layers, nil
}

func buildLayerStyle(sy styleYAML) (coordinator.LayerStyle, error) {
	switch sy.Kind {
	case "contour":
		stroke := contour.StrokeStyle{Width: float32(sy.StrokeWidth)}
		if sy.StrokeColor != "" {
			c, err := parseHexColor(sy.StrokeColor)
			if err != nil {
				return coordinator.LayerStyle{}, err
			}
			stroke.Color = c
		}
		special := make([]contour.SpecialLevel, len(sy.SpecialLevels))
		for i, sl := range sy.SpecialLevels {
			special[i] = contour.SpecialLevel{Value: sl.Value, Width: float32(sl.Width), Label: sl.Label}
		}
		return coordinator.LayerStyle{
			Kind: coordinator.RenderContour,
			ContourConfig: contour.Config{
				Levels: sy.Levels, SpecialLevels: special, SmoothingPasses: sy.SmoothingPasses,
			},
			ContourStroke: stroke,
		}, nil

	case "wind_barb":
		style := windbarb.DefaultStyle()
		if sy.SpacingPx > 0 {
			style.SpacingPx = sy.SpacingPx
		}
		return coordinator.LayerStyle{
			Kind: coordinator.RenderWindBarb, WindBarbStyle: style,
			UComponent: sy.UComponent, VComponent: sy.VComponent,
		}, nil

	default: // "raster"
		stops := make([]colormap.Stop, len(sy.Stops))
		for i, s := range sy.Stops {
			c, err := parseHexColor(s.Color)
			if err != nil {
				return coordinator.LayerStyle{}, err
			}
			stops[i] = colormap.Stop{Value: s.Value, Color: c}
		}
		transform := colormap.Identity
		if sy.Transform == "kelvin_to_celsius" {
			transform = colormap.KelvinToCelsius
		}
		return coordinator.LayerStyle{
			Kind:       coordinator.RenderRaster,
			ColorStyle: colormap.Style{Stops: stops, Transform: transform},
		}, nil
	}
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA" (alpha defaults to 255).
func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s[:6], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	c := color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
	if len(s) == 8 {
		a, err := strconv.ParseUint(s[6:8], 16, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid hex alpha %q: %w", s, err)
		}
		c.A = uint8(a)
	}
	return c, nil
}
