package effects

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/go-drift/motion/pkg/animation"
)

// blurSteps is the quantization of blur-class values on the CPU path.
// Ripple and Morph are approximated: the CPU renders 256 distinct levels
// where the GPU shader interpolates continuously.
const blurSteps = 256

// RasterSurface is an optional capability of a target object. When the
// target's Object implements it, the CPU backend composites the effect into
// Canvas from Source before calling the target's setter.
type RasterSurface interface {
	// Source is the unmodified content.
	Source() image.Image
	// Canvas receives the composited frame.
	Canvas() draw.Image
}

// CPUBackend renders every effect kind in software. It is always available.
type CPUBackend struct{}

// NewCPUBackend creates a CPU backend.
func NewCPUBackend() *CPUBackend { return &CPUBackend{} }

// Name returns "cpu".
func (*CPUBackend) Name() string { return "cpu" }

// Apply writes value to target. Transform-class kinds pass the value through
// unchanged; blur-class kinds are quantized to 1/256 steps.
func (b *CPUBackend) Apply(kind animation.Kind, value float64, target animation.Target) error {
	if !kind.Valid() {
		return fmt.Errorf("cpu: unsupported effect %v", kind)
	}
	if kind.IsBlurClass() {
		value = Quantize(value)
	}
	if surface, ok := target.Object.(RasterSurface); ok {
		composite(surface, kind, value)
	}
	return target.Apply(value)
}

// Quantize rounds a blur-class value to the CPU path's resolution.
func Quantize(v float64) float64 {
	return math.Round(v*blurSteps) / blurSteps
}

func composite(s RasterSurface, kind animation.Kind, value float64) {
	src, dst := s.Source(), s.Canvas()
	if src == nil || dst == nil {
		return
	}
	bounds := dst.Bounds()
	sb := src.Bounds()
	draw.Draw(dst, bounds, image.Transparent, image.Point{}, draw.Src)

	switch kind {
	case animation.Fade:
		mask := image.NewUniform(color.Alpha{A: unitByte(value)})
		draw.DrawMask(dst, bounds, src, sb.Min, mask, image.Point{}, draw.Over)

	case animation.Scale:
		draw.ApproxBiLinear.Scale(dst, scaledRect(bounds, value, value), src, sb, draw.Over, nil)

	case animation.Slide, animation.Spring:
		offset := image.Pt(int(math.Round(value)), 0)
		draw.Draw(dst, bounds.Add(offset), src, sb.Min, draw.Over)

	case animation.Ripple:
		draw.DrawMask(dst, bounds, src, sb.Min, &circleMask{
			center: image.Pt((bounds.Min.X+bounds.Max.X)/2, (bounds.Min.Y+bounds.Max.Y)/2),
			radius: clampUnit(value) * diagonal(bounds) / 2,
			bounds: bounds,
		}, bounds.Min, draw.Over)

	case animation.Morph:
		draw.CatmullRom.Scale(dst, scaledRect(bounds, clampUnit(value), 1), src, sb, draw.Over, nil)
	}
}

// scaledRect scales r about its center.
func scaledRect(r image.Rectangle, sx, sy float64) image.Rectangle {
	cx := float64(r.Min.X+r.Max.X) / 2
	cy := float64(r.Min.Y+r.Max.Y) / 2
	hw := float64(r.Dx()) * sx / 2
	hh := float64(r.Dy()) * sy / 2
	return image.Rect(
		int(math.Round(cx-hw)), int(math.Round(cy-hh)),
		int(math.Round(cx+hw)), int(math.Round(cy+hh)),
	)
}

func diagonal(r image.Rectangle) float64 {
	return math.Hypot(float64(r.Dx()), float64(r.Dy()))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func unitByte(v float64) uint8 {
	return uint8(math.Round(clampUnit(v) * 255))
}

// circleMask is an alpha mask that is opaque inside a circle.
type circleMask struct {
	center image.Point
	radius float64
	bounds image.Rectangle
}

func (m *circleMask) ColorModel() color.Model { return color.AlphaModel }

func (m *circleMask) Bounds() image.Rectangle { return m.bounds }

func (m *circleMask) At(x, y int) color.Color {
	dx := float64(x - m.center.X)
	dy := float64(y - m.center.Y)
	if dx*dx+dy*dy <= m.radius*m.radius {
		return color.Opaque
	}
	return color.Transparent
}
