package graphs

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/erhlee-bird/vector/config"
)

// Dot renders the topology of cfg in the graphviz DOT language. Expanded
// transforms are drawn as their children.
func Dot(cfg *config.Config) (string, error) {
	graph := gographviz.NewGraph()
	if err := graph.SetName("vector"); err != nil {
		return "", err
	}
	if err := graph.SetDir(true); err != nil {
		return "", err
	}
	if err := graph.AddAttr("vector", "rankdir", "LR"); err != nil {
		return "", err
	}

	node := func(name, shape, kind string) error {
		return graph.AddNode("vector", quote(name), map[string]string{
			"shape": shape,
			"label": quote(fmt.Sprintf("%s\n(%s)", name, kind)),
		})
	}
	edges := func(name string, inputs []string) error {
		for _, from := range cfg.ResolveInputs(inputs) {
			if err := graph.AddEdge(quote(from), quote(name), true, nil); err != nil {
				return err
			}
		}
		return nil
	}

	for pair := cfg.Sources.Oldest(); pair != nil; pair = pair.Next() {
		if err := node(pair.Key, "trapezium", pair.Value.SourceType()); err != nil {
			return "", err
		}
	}
	for pair := cfg.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		if err := node(pair.Key, "diamond", pair.Value.TransformType()); err != nil {
			return "", err
		}
	}
	for pair := cfg.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		if err := node(pair.Key, "invtrapezium", pair.Value.SinkType()); err != nil {
			return "", err
		}
	}
	for pair := cfg.Transforms.Oldest(); pair != nil; pair = pair.Next() {
		if err := edges(pair.Key, pair.Value.Inputs); err != nil {
			return "", err
		}
	}
	for pair := cfg.Sinks.Oldest(); pair != nil; pair = pair.Next() {
		if err := edges(pair.Key, pair.Value.Inputs); err != nil {
			return "", err
		}
	}
	return graph.String(), nil
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
