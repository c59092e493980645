package resource

import "fmt"

// Kind is the per-kind metadata that parameterizes the generic engine.
type Kind struct {
	// Name is the class name, e.g. "cpc".
	Name string
	// Collection is the field holding the item list in listing responses,
	// and the collection key in snapshots, e.g. "cpcs".
	Collection string
	// Segment is the URI path segment under the parent, e.g. "cpcs".
	Segment string
	// OIDProp, URIProp, NameProp are the property names carrying the
	// object id, object URI, and name.
	OIDProp string
	URIProp string
	NameProp string
	// QueryProps are the property names the server accepts as query
	// parameters; everything else is filtered client-side.
	QueryProps []string
	// RequiredProps must be present when creating an object of this kind.
	RequiredProps []string
	// Children are the kind tags of nested collections.
	Children []string
}

// Registry is the explicit lookup table from kind tag to Kind metadata.
type Registry struct {
	kinds map[string]Kind
	// topLevel lists tags addressable directly under the API root, in
	// registration order.
	topLevel []string
}

// NewRegistry builds a registry from kinds. Tags in topLevel must be
// registered kinds.
func NewRegistry(topLevel []string, kinds ...Kind) (*Registry, error) {
	r := &Registry{kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		if k.Name == "" || k.Collection == "" || k.Segment == "" {
			return nil, fmt.Errorf("kind %+v: name, collection and segment are required", k)
		}
		if _, dup := r.kinds[k.Name]; dup {
			return nil, fmt.Errorf("kind %q registered twice", k.Name)
		}
		r.kinds[k.Name] = k
	}
	for _, k := range r.kinds {
		for _, child := range k.Children {
			if _, ok := r.kinds[child]; !ok {
				return nil, fmt.Errorf("kind %q references unregistered child kind %q", k.Name, child)
			}
		}
	}
	for _, tag := range topLevel {
		if _, ok := r.kinds[tag]; !ok {
			return nil, fmt.Errorf("top-level kind %q is not registered", tag)
		}
		r.topLevel = append(r.topLevel, tag)
	}
	return r, nil
}

// Kind returns the metadata for tag.
func (r *Registry) Kind(tag string) (Kind, bool) {
	k, ok := r.kinds[tag]
	return k, ok
}

// Kinds returns all registered kinds in unspecified order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	return out
}

// TopLevel returns the tags addressable under the API root.
func (r *Registry) TopLevel() []string {
	out := make([]string, len(r.topLevel))
	copy(out, r.topLevel)
	return out
}

// DefaultRegistry returns the standard console resource kinds. Business
// properties are not modeled here; only the addressing metadata is.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		[]string{"cpc"},
		Kind{
			Name:          "cpc",
			Collection:    "cpcs",
			Segment:       "cpcs",
			OIDProp:       "object-id",
			URIProp:       "object-uri",
			NameProp:      "name",
			QueryProps:    []string{"name"},
			RequiredProps: []string{"name"},
			Children:      []string{"partition", "adapter"},
		},
		Kind{
			Name:          "partition",
			Collection:    "partitions",
			Segment:       "partitions",
			OIDProp:       "object-id",
			URIProp:       "object-uri",
			NameProp:      "name",
			QueryProps:    []string{"name", "status"},
			RequiredProps: []string{"name"},
			Children:      []string{"nic"},
		},
		Kind{
			Name:          "adapter",
			Collection:    "adapters",
			Segment:       "adapters",
			OIDProp:       "object-id",
			URIProp:       "object-uri",
			NameProp:      "name",
			QueryProps:    []string{"name"},
			RequiredProps: []string{"name"},
		},
		Kind{
			Name:          "nic",
			Collection:    "nics",
			Segment:       "nics",
			OIDProp:       "element-id",
			URIProp:       "element-uri",
			NameProp:      "name",
			QueryProps:    []string{"name"},
			RequiredProps: []string{"name"},
		},
	)
	if err != nil {
		panic(err) // static table, cannot fail
	}
	return r
}
