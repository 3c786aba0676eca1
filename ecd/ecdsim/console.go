// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecdsim

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

var (
	// BleachedColor is the tint of a fully bleached segment.
	BleachedColor = color.NRGBA{R: 0xe8, G: 0xec, B: 0xef, A: 0xff}
	// ColoredColor is the tint of a fully colored segment.
	ColoredColor = color.NRGBA{R: 0x1b, G: 0x3a, B: 0x8c, A: 0xff}
)

// Tint returns the color of a segment of coloration q.
func Tint(q float64) color.NRGBA {
	q = clamp(q, 0, 1)
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*q + 0.5)
	}
	return color.NRGBA{
		R: mix(BleachedColor.R, ColoredColor.R),
		G: mix(BleachedColor.G, ColoredColor.G),
		B: mix(BleachedColor.B, ColoredColor.B),
		A: 0xff,
	}
}

// ConsoleOpts represents the options of a Console.
type ConsoleOpts struct {
	// W defaults to a colorable stdout.
	W       io.Writer
	Palette *ansi256.Palette
	// Plain prints one character per segment without escape sequences, for
	// output that is not a terminal.
	Plain bool

	_ struct{}
}

// Console prints a row of segments to a terminal using ANSI color codes.
//
// It is a display.Drawer one pixel high, with one pixel per segment.
type Console struct {
	w       io.Writer
	palette ansi256.Palette
	plain   bool

	pixels []color.NRGBA
	buf    bytes.Buffer
}

// NewConsole returns a console for n segments.
func NewConsole(n int, opts *ConsoleOpts) *Console {
	o := ConsoleOpts{}
	if opts != nil {
		o = *opts
	}
	p := o.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := o.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	c := &Console{
		w:       w,
		palette: *p,
		plain:   o.Plain,
		pixels:  make([]color.NRGBA, n),
	}
	for i := range c.pixels {
		c.pixels[i] = Tint(0.5)
	}
	return c
}

func (c *Console) String() string {
	return "ecdsim.Console"
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes and ends the line.
func (c *Console) Halt() error {
	if c.plain {
		return nil
	}
	_, err := io.WriteString(c.w, "\033[0m\n")
	return err
}

// Render prints the panel.
func (c *Console) Render(p *Panel) error {
	if p.Len() != len(c.pixels) {
		return fmt.Errorf("ecdsim: console has %d segments, panel %d", len(c.pixels), p.Len())
	}
	for i := range c.pixels {
		c.pixels[i] = Tint(p.Coloration(i))
	}
	return c.refresh()
}

// ColorModel implements display.Drawer.
func (c *Console) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (c *Console) Bounds() image.Rectangle {
	return image.Rectangle{Max: image.Point{X: len(c.pixels), Y: 1}}
}

// Draw implements display.Drawer.
func (c *Console) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(c.Bounds())
	srcR := src.Bounds()
	srcR.Min = srcR.Min.Add(sp)
	if dX := r.Dx(); dX < srcR.Dx() {
		srcR.Max.X = srcR.Min.X + dX
	}
	deltaX := r.Min.X - srcR.Min.X
	for sX := srcR.Min.X; sX < srcR.Max.X; sX++ {
		c.pixels[sX+deltaX] = color.NRGBAModel.Convert(src.At(sX, srcR.Min.Y)).(color.NRGBA)
	}
	return c.refresh()
}

func (c *Console) refresh() error {
	c.buf.Reset()
	if c.plain {
		for _, px := range c.pixels {
			if luma(px) < luma(Tint(0.5)) {
				_ = c.buf.WriteByte('#')
			} else {
				_ = c.buf.WriteByte('.')
			}
		}
		_ = c.buf.WriteByte('\n')
	} else {
		_, _ = c.buf.WriteString("\r\033[0m")
		for _, px := range c.pixels {
			_, _ = io.WriteString(&c.buf, c.palette.Block(px))
		}
		_, _ = c.buf.WriteString("\033[0m ")
	}
	_, err := c.buf.WriteTo(c.w)
	return err
}

func luma(c color.NRGBA) int {
	return 299*int(c.R) + 587*int(c.G) + 114*int(c.B)
}

var _ display.Drawer = &Console{}
var _ fmt.Stringer = &Console{}
