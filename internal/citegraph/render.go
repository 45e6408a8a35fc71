package citegraph

import (
	"encoding/xml"
	"fmt"
	"strings"

	literrors "github.com/litfuse/litfuse/internal/errors"
)

// Format names a supported graph serialization.
type Format string

const (
	FormatCytoscape Format = "cytoscape"
	FormatG6        Format = "g6"
	FormatD3        Format = "d3"
	FormatVis       Format = "vis"
	FormatGraphML   Format = "graphml"
	FormatMermaid   Format = "mermaid"
)

// Formats lists the supported serializations.
func Formats() []Format {
	return []Format{FormatCytoscape, FormatG6, FormatD3, FormatVis, FormatGraphML, FormatMermaid}
}

// Render serializes the graph for the requested consumer. JSON formats
// return a marshalable value; graphml and mermaid return a string.
func Render(g *Graph, format Format) (any, error) {
	switch format {
	case FormatCytoscape:
		return renderCytoscape(g), nil
	case FormatG6:
		return renderG6(g), nil
	case FormatD3:
		return renderD3(g), nil
	case FormatVis:
		return renderVis(g), nil
	case FormatGraphML:
		return renderGraphML(g)
	case FormatMermaid:
		return renderMermaid(g), nil
	default:
		return nil, literrors.WrapValidation("render_graph",
			fmt.Errorf("unknown format %q, expected one of %v", format, Formats()))
	}
}

// Cytoscape.js: elements with nested data objects.
func renderCytoscape(g *Graph) map[string]any {
	nodes := make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, map[string]any{"data": map[string]any{
			"id":    n.ID,
			"label": n.Title,
			"year":  n.Year,
			"depth": n.Depth,
			"seed":  n.Seed,
		}})
	}
	edges := make([]map[string]any, 0, len(g.Edges))
	for i, e := range g.Edges {
		edges = append(edges, map[string]any{"data": map[string]any{
			"id":     fmt.Sprintf("e%d", i),
			"source": e.Source,
			"target": e.Target,
		}})
	}
	return map[string]any{"elements": map[string]any{"nodes": nodes, "edges": edges}}
}

// AntV G6: flat nodes and edges.
func renderG6(g *Graph) map[string]any {
	nodes := make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, map[string]any{
			"id":    n.ID,
			"label": truncate(n.Title, 40),
			"year":  n.Year,
			"depth": n.Depth,
		})
	}
	edges := make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, map[string]any{"source": e.Source, "target": e.Target})
	}
	return map[string]any{"nodes": nodes, "edges": edges}
}

// D3 force layout: nodes plus links.
func renderD3(g *Graph) map[string]any {
	nodes := make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, map[string]any{
			"id":    n.ID,
			"title": n.Title,
			"year":  n.Year,
			"group": n.Depth,
		})
	}
	links := make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		links = append(links, map[string]any{"source": e.Source, "target": e.Target, "value": 1})
	}
	return map[string]any{"nodes": nodes, "links": links}
}

// vis-network: nodes with label, edges with from/to.
func renderVis(g *Graph) map[string]any {
	nodes := make([]map[string]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		node := map[string]any{
			"id":    n.ID,
			"label": truncate(n.Title, 40),
			"level": n.Depth,
		}
		if n.Seed {
			node["shape"] = "star"
		}
		nodes = append(nodes, node)
	}
	edges := make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, map[string]any{"from": e.Source, "to": e.Target, "arrows": "to"})
	}
	return map[string]any{"nodes": nodes, "edges": edges}
}

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
	Edges       []graphmlEdge `xml:"edge"`
}

type graphmlNode struct {
	ID   string         `xml:"id,attr"`
	Data []graphmlDatum `xml:"data"`
}

type graphmlEdge struct {
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

type graphmlDatum struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

func renderGraphML(g *Graph) (string, error) {
	doc := graphmlDoc{
		XMLNS: "http://graphml.graphdrawing.org/xmlns",
		Keys: []graphmlKey{
			{ID: "title", For: "node", Name: "title", Type: "string"},
			{ID: "year", For: "node", Name: "year", Type: "int"},
		},
		Graph: graphmlGraph{ID: "citations", EdgeDefault: "directed"},
	}
	for _, n := range g.Nodes {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{
			ID: n.ID,
			Data: []graphmlDatum{
				{Key: "title", Value: n.Title},
				{Key: "year", Value: fmt.Sprintf("%d", n.Year)},
			},
		})
	}
	for _, e := range g.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{Source: e.Source, Target: e.Target})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", literrors.WrapPermanent("render_graph", "", err)
	}
	return xml.Header + string(out), nil
}

func renderMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, n := range g.Nodes {
		label := strings.ReplaceAll(truncate(n.Title, 50), `"`, "'")
		if n.Year > 0 {
			label = fmt.Sprintf("%s (%d)", label, n.Year)
		}
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", mermaidID(n.ID), label)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "    %s --> %s\n", mermaidID(e.Source), mermaidID(e.Target))
	}
	return b.String()
}

// mermaidID strips characters mermaid treats as syntax.
func mermaidID(id string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, id)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
