package viewer

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/taigrr/stlview/pkg/render"
)

// DefaultColor is the surface color of a freshly loaded mesh.
const DefaultColor = "#ff8a65"

// Params are the display parameters applied to a mesh when it is presented.
type Params struct {
	Color     render.Color
	Wireframe bool
	Scale     float64
}

// DefaultParams returns the parameters the UI controls start with.
func DefaultParams() Params {
	c, _ := ParseColor(DefaultColor)
	return Params{Color: c, Scale: 1}
}

// Validate reports whether the parameters can be applied.
func (p Params) Validate() error {
	return validateScale(p.Scale)
}

// ParseColor parses a "#rrggbb" or "#rgb" hex color.
func ParseColor(s string) (render.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return render.Color{}, fmt.Errorf("%w: color %q", ErrInvalidValue, s)
	}
	r, g, b := c.RGB255()
	return render.RGB(r, g, b), nil
}

// FormatColor returns c as a "#rrggbb" hex string.
func FormatColor(c render.Color) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

// linearColor converts c to linear RGB in [0, 1], as glTF materials expect.
func linearColor(c render.Color) [3]float64 {
	cf, _ := colorful.MakeColor(c)
	r, g, b := cf.LinearRgb()
	return [3]float64{r, g, b}
}

func validateScale(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return fmt.Errorf("%w: scale %v must be positive", ErrInvalidValue, s)
	}
	return nil
}

// ValidateLighting checks that both light intensities are finite and not
// negative.
func ValidateLighting(ambient, directional float64) error {
	if err := validateIntensity("ambient", ambient); err != nil {
		return err
	}
	return validateIntensity("directional", directional)
}

func validateIntensity(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s intensity %v must not be negative", ErrInvalidValue, name, v)
	}
	return nil
}
