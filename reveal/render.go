// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reveal

import (
	"io"
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	svgNamespace = "http://www.w3.org/2000/svg"
	maskID       = "gazeflow-reveal"
	blurID       = "gazeflow-blur"
)

// Render writes the overlay as a standalone SVG image: the fog fill
// over the whole document with every mark cut out of it.
func (o *Overlay) Render(writer io.Writer) error {
	width, height := number(o.size.Width), number(o.size.Height)

	root := element("svg",
		"xmlns", svgNamespace,
		"width", width,
		"height", height,
		"viewBox", "0 0 "+width+" "+height,
	)

	defs := element("defs")
	filter := element("filter", "id", blurID)
	filter.AppendChild(element("feGaussianBlur", "stdDeviation", number(o.blur)))
	defs.AppendChild(filter)

	mask := element("mask", "id", maskID)
	mask.AppendChild(element("rect", "width", width, "height", height, "fill", "white"))
	cutouts := element("g", "filter", "url(#"+blurID+")")
	for _, mark := range o.marks {
		cutouts.AppendChild(element("circle",
			"cx", number(mark.X),
			"cy", number(mark.Y),
			"r", number(o.radius),
			"fill", "black",
		))
	}
	mask.AppendChild(cutouts)
	defs.AppendChild(mask)
	root.AppendChild(defs)

	root.AppendChild(element("rect",
		"width", width,
		"height", height,
		"fill", o.fill,
		"mask", "url(#"+maskID+")",
	))
	return html.Render(writer, root)
}

// element builds an SVG element from alternating attribute names and
// values.
func element(tag string, attributes ...string) *html.Node {
	node := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for i := 0; i+1 < len(attributes); i += 2 {
		node.Attr = append(node.Attr, html.Attribute{Key: attributes[i], Val: attributes[i+1]})
	}
	return node
}

func number(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
