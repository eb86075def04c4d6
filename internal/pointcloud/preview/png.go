package preview

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var defaultPointColor = color.RGBA{R: 0x4f, G: 0xc3, B: 0xf7, A: 255}

// WritePNG renders one square scatter plot per view of snap and returns
// the written paths, named <stem>_<view>.png.
func (w *Writer) WritePNG(stem string, snap Snapshot) ([]string, error) {
	pointColor := colorOr(snap.Style.PointColor, defaultPointColor)

	paths := make([]string, 0, len(views))
	for _, v := range views {
		path, err := w.outputPath(stem, "_"+v.name+".png")
		if err != nil {
			return paths, err
		}

		pr := project(snap.Points, v, w.maxPoints())
		p, err := scatterPlot(fmt.Sprintf("%s (%s)", stem, v.name), v, pr, pointColor)
		if err != nil {
			return paths, fmt.Errorf("%s view: %w", v.name, err)
		}

		wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
		if err != nil {
			return paths, fmt.Errorf("%s view: %w", v.name, err)
		}
		var buf bytes.Buffer
		if _, err := wt.WriteTo(&buf); err != nil {
			return paths, fmt.Errorf("render %s view: %w", v.name, err)
		}
		if err := w.write(path, buf.Bytes()); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func scatterPlot(title string, v view, pr projected, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = v.xLabel
	p.Y.Label.Text = v.yLabel
	p.Add(plotter.NewGrid())

	if len(pr.xs) > 0 {
		xys := make(plotter.XYs, len(pr.xs))
		for i := range pr.xs {
			xys[i] = plotter.XY{X: pr.xs[i], Y: pr.ys[i]}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = c
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}

	// Square axes so shapes are not distorted.
	p.X.Min, p.X.Max = -pr.extent, pr.extent
	p.Y.Min, p.Y.Max = -pr.extent, pr.extent
	return p, nil
}
