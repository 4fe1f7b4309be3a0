// Package render serialises interaction scenes to SVG documents.
package render

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/kenoir/weco-concept-explorer/application/interaction"
)

const svgNS = "http://www.w3.org/2000/svg"

// SVG renders a scene into a standalone SVG document.
func SVG(scene interaction.Scene) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, scene); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSVG streams the scene as SVG to w.
func WriteSVG(w io.Writer, scene interaction.Scene) error {
	sw := &svgWriter{w: bufio.NewWriter(w)}

	vb := scene.ViewBox
	sw.printf(`<svg xmlns="%s" width="%s" height="%s" viewBox="%s %s %s %s" style="max-width:100%%;height:auto;font-family:sans-serif">`,
		svgNS, num(scene.Surface.Width), num(scene.Surface.Height),
		num(vb[0]), num(vb[1]), num(vb[2]), num(vb[3]))

	switch {
	case scene.Blank:
	case scene.IsEmptyState():
		sw.printf(`<text class="empty" x="0" y="0" text-anchor="middle" fill="#6b7280" font-size="14px">`)
		sw.text(scene.EmptyMessage)
		sw.printf(`</text>`)
	default:
		sw.graph(scene)
		sw.tooltip(scene.Tooltip)
	}

	sw.printf(`</svg>`)
	if sw.err != nil {
		return sw.err
	}
	return sw.w.Flush()
}

type svgWriter struct {
	w   *bufio.Writer
	err error
}

func (s *svgWriter) printf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, args...)
}

func (s *svgWriter) text(v string) {
	if s.err != nil {
		return
	}
	s.err = xml.EscapeText(s.w, []byte(v))
}

func (s *svgWriter) attr(v string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(v))
	return buf.String()
}

func (s *svgWriter) graph(scene interaction.Scene) {
	v := scene.View
	s.printf(`<g class="viewport" transform="translate(%s,%s) scale(%s)">`, num(v.X), num(v.Y), num(v.K))

	s.printf(`<g class="links" stroke-linecap="round">`)
	for _, l := range scene.Links {
		s.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s" stroke-opacity="%s"/>`,
			num(l.X1), num(l.Y1), num(l.X2), num(l.Y2),
			l.Style.Stroke, num(l.Style.StrokeWidth), num(l.Style.Opacity))
	}
	s.printf(`</g>`)

	s.printf(`<g class="nodes">`)
	for _, n := range scene.Nodes {
		s.printf(`<g class="node" data-id="%s" transform="translate(%s,%s)">`, s.attr(n.ID), num(n.X), num(n.Y))

		c := n.Circle
		s.printf(`<circle r="%s" fill="%s" stroke="%s" stroke-width="%s" opacity="%s"/>`,
			num(c.Radius), c.Fill, c.Stroke, num(c.StrokeWidth), num(c.Opacity))

		p := n.Plate
		s.printf(`<rect x="%s" y="%s" width="%s" height="%s" rx="%s" fill="%s" stroke="%s" stroke-width="%s" opacity="%s"/>`,
			num(p.X), num(p.Y), num(p.Width), num(p.Height), num(p.RX),
			p.Fill, p.Stroke, num(p.StrokeWidth), num(p.Opacity))

		t := n.Text
		s.printf(`<text x="%s" dy="%s" font-size="%s" font-weight="%d" fill="%s" opacity="%s">`,
			num(t.X), t.DY, t.FontSize, t.FontWeight, t.Fill, num(t.Opacity))
		s.text(n.Label)
		s.printf(`</text><title>`)
		s.text(n.Label + " (" + n.ID + ")")
		s.printf(`</title></g>`)
	}
	s.printf(`</g></g>`)
}

func (s *svgWriter) tooltip(t interaction.Tooltip) {
	if !t.Visible {
		return
	}
	s.printf(`<g class="tooltip" transform="translate(%s,%s)">`, num(t.X), num(t.Y))
	s.printf(`<text font-size="12px" fill="#111"><tspan font-weight="700">`)
	s.text(t.Label)
	s.printf(`</tspan><tspan x="0" dy="1.2em" fill="#6b7280">`)
	s.text(t.ID)
	s.printf(`</tspan></text></g>`)
}

// num formats a coordinate with at most two decimals.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
