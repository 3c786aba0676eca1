// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecdsim

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// SnapshotOpts represents the options of Snapshot.
type SnapshotOpts struct {
	// Cell is the side of a segment in pixels. Default 48.
	Cell int
	// Columns is the number of segments per row. Default 8.
	Columns int
	// Labels prints the segment index and its coloration under each
	// segment.
	Labels bool
}

// Snapshot renders the panel as a grid of segments.
func Snapshot(p *Panel, opts *SnapshotOpts) (image.Image, error) {
	o := SnapshotOpts{}
	if opts != nil {
		o = *opts
	}
	if o.Cell == 0 {
		o.Cell = 48
	}
	if o.Columns == 0 {
		o.Columns = 8
	}
	if o.Cell < 8 || o.Columns < 1 {
		return nil, fmt.Errorf("ecdsim: invalid snapshot options %+v", o)
	}
	cols := min(o.Columns, p.Len())
	rows := (p.Len() + cols - 1) / cols
	pad := float64(o.Cell) / 6
	cell := float64(o.Cell)
	label := 0.0
	if o.Labels {
		label = cell / 3
	}
	w := int(float64(cols)*(cell+pad) + pad)
	h := int(float64(rows)*(cell+pad+label) + pad)

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	if o.Labels {
		font, err := truetype.Parse(goregular.TTF)
		if err != nil {
			return nil, err
		}
		dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: label * 0.7}))
	}
	for i := 0; i < p.Len(); i++ {
		x := pad + float64(i%cols)*(cell+pad)
		y := pad + float64(i/cols)*(cell+pad+label)
		q := p.Coloration(i)
		dc.DrawRoundedRectangle(x, y, cell, cell, cell/8)
		dc.SetColor(Tint(q))
		dc.FillPreserve()
		dc.SetRGB(0.6, 0.6, 0.6)
		dc.SetLineWidth(1)
		dc.Stroke()
		if o.Labels {
			dc.SetRGB(0.2, 0.2, 0.2)
			dc.DrawStringAnchored(fmt.Sprintf("%d %.0f%%", i, 100*q), x+cell/2, y+cell+label/2, 0.5, 0.5)
		}
	}
	return dc.Image(), nil
}

// WritePNG encodes img as a PNG image.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SavePNG renders the panel into the PNG file path.
func SavePNG(path string, p *Panel, opts *SnapshotOpts) error {
	img, err := Snapshot(p, opts)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}
