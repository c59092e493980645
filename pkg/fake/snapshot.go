package fake

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/getconsole/consolekit/pkg/props"
)

// ToSnapshot renders the engine's tree as a declarative nested structure:
// top-level keys are collection names, each item holds its properties plus
// nested child collections. Derived addressing (URIs, parent links, class
// tags) is omitted; explicit identifiers are kept so a rebuilt engine
// reproduces them.
func (e *Engine) ToSnapshot() *props.Map {
	snap := props.New()
	for _, tag := range e.registry.TopLevel() {
		kind, _ := e.registry.Kind(tag)
		items := e.snapshotNodes(e.root.children[tag])
		if len(items) > 0 {
			snap.Set(kind.Collection, items)
		}
	}
	return snap
}

func (e *Engine) snapshotNodes(nodes []*Node) []any {
	items := make([]any, 0, len(nodes))
	for _, node := range nodes {
		item := props.New()
		item.Set("properties", snapshotProps(node))
		for _, childTag := range node.kind.Children {
			childKind, _ := e.registry.Kind(childTag)
			children := e.snapshotNodes(node.children[childTag])
			if len(children) > 0 {
				item.Set(childKind.Collection, children)
			}
		}
		items = append(items, item)
	}
	return items
}

func snapshotProps(node *Node) *props.Map {
	out := props.New()
	node.props.Each(func(k string, v any) bool {
		switch k {
		case node.kind.URIProp, "parent", "class":
			return true
		}
		out.Set(k, v)
		return true
	})
	return out
}

// ToYAML serializes the snapshot to YAML.
func (e *Engine) ToYAML() ([]byte, error) {
	return yaml.Marshal(e.ToSnapshot())
}

// FromSnapshot builds an engine whose tree is equal to the one the
// snapshot was taken from: same shape, same properties per node. Nodes
// without an explicit identifier in the snapshot get fresh ones.
func FromSnapshot(snap *props.Map, opts ...EngineOption) (*Engine, error) {
	e := NewEngine(opts...)
	for _, tag := range e.registry.TopLevel() {
		kind, _ := e.registry.Kind(tag)
		if err := e.restoreCollection(e.root, tag, snap, kind.Collection); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// FromYAML deserializes a YAML snapshot and rebuilds the engine.
func FromYAML(data []byte, opts ...EngineOption) (*Engine, error) {
	snap := props.New()
	if err := yaml.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return FromSnapshot(snap, opts...)
}

func (e *Engine) restoreCollection(parent *Node, tag string, container *props.Map, collection string) error {
	raw, ok := container.Get(collection)
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("snapshot collection %q is not a sequence", collection)
	}
	for i, rawItem := range items {
		item, ok := rawItem.(*props.Map)
		if !ok {
			return fmt.Errorf("snapshot collection %q item %d is not a mapping", collection, i)
		}
		var itemProps *props.Map
		if rawProps, ok := item.Get("properties"); ok {
			itemProps, ok = rawProps.(*props.Map)
			if !ok {
				return fmt.Errorf("snapshot collection %q item %d: properties is not a mapping", collection, i)
			}
		} else {
			itemProps = props.New()
		}

		node, err := e.Add(parent, tag, itemProps)
		if err != nil {
			return fmt.Errorf("restore %s item %d: %w", collection, i, err)
		}
		for _, childTag := range node.kind.Children {
			childKind, _ := e.registry.Kind(childTag)
			if err := e.restoreCollection(node, childTag, item, childKind.Collection); err != nil {
				return err
			}
		}
	}
	return nil
}
