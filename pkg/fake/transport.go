package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/getconsole/consolekit/internal/id"
	"github.com/getconsole/consolekit/pkg/filter"
	"github.com/getconsole/consolekit/pkg/props"
	"github.com/getconsole/consolekit/pkg/session"
)

// Server reason codes reported in error bodies, matching the live service.
const (
	reasonNotFound        = 1
	reasonCeasedExistence = 2
	reasonInvalidInput    = 5
	reasonDuplicate       = 8
)

// Transport adapts an Engine to session.Transport and session.BulkGetter,
// so the resource model is backend-agnostic: the same error taxonomy the
// live transport raises comes back from here.
type Transport struct {
	engine *Engine
}

// NewTransport wraps an engine.
func NewTransport(e *Engine) *Transport {
	return &Transport{engine: e}
}

// Engine returns the underlying engine, for fixture setup in tests.
func (t *Transport) Engine() *Engine {
	return t.engine
}

// Get serves object fetches (full property view) and collection listings
// (partial view, with server-side filtering from the query string).
func (t *Transport) Get(ctx context.Context, path string) (json.RawMessage, error) {
	plain, query := splitQuery(path)

	if parent, tag, ok := t.collectionFor(plain); ok {
		args, err := queryArgs(query)
		if err != nil {
			return nil, &session.HTTPError{Method: http.MethodGet, Path: path, Status: http.StatusBadRequest, Reason: reasonInvalidInput, Message: err.Error()}
		}
		nodes, err := t.engine.List(parent, tag, args)
		if err != nil {
			return nil, httpError(http.MethodGet, path, err)
		}
		items := make([]*props.Map, len(nodes))
		for i, node := range nodes {
			items[i] = node.PartialProps()
		}
		kind, _ := t.engine.registry.Kind(tag)
		return marshalEnvelope(kind.Collection, items)
	}

	node, err := t.engine.GetByURI(plain)
	if err != nil {
		return nil, httpError(http.MethodGet, path, err)
	}
	return json.Marshal(node.Props())
}

// Post serves logon, object creation, and property updates.
func (t *Transport) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if path == "/api/sessions" {
		return t.logon(path, body)
	}

	bag, err := bagFromBody(body)
	if err != nil {
		return nil, &session.HTTPError{Method: http.MethodPost, Path: path, Status: http.StatusBadRequest, Reason: reasonInvalidInput, Message: err.Error()}
	}

	if parent, tag, ok := t.collectionFor(path); ok {
		node, err := t.engine.Add(parent, tag, bag)
		if err != nil {
			return nil, httpError(http.MethodPost, path, err)
		}
		assigned := props.New()
		assigned.Set(node.kind.URIProp, node.URI())
		assigned.Set(node.kind.OIDProp, node.OID())
		return json.Marshal(assigned)
	}

	if err := t.engine.Update(path, bag); err != nil {
		return nil, httpError(http.MethodPost, path, err)
	}
	return nil, nil
}

// Delete serves logoff and object removal (cascading).
func (t *Transport) Delete(ctx context.Context, path string) error {
	if path == "/api/sessions/this-session" {
		return nil
	}
	if err := t.engine.Delete(path); err != nil {
		return httpError(http.MethodDelete, path, err)
	}
	return nil
}

// BulkGet implements session.BulkGetter.
func (t *Transport) BulkGet(ctx context.Context, reqs []session.BulkRequest) ([]session.BulkResult, error) {
	return t.engine.BulkGet(reqs), nil
}

func (t *Transport) logon(path string, body any) (json.RawMessage, error) {
	bag, err := bagFromBody(body)
	if err != nil || bag.GetString("userid") == "" || bag.GetString("password") == "" {
		return nil, &session.HTTPError{Method: http.MethodPost, Path: path, Status: http.StatusForbidden, Message: "invalid credentials"}
	}
	return json.Marshal(map[string]string{"api-session": id.Session()})
}

// collectionFor resolves a collection path to its parent node and kind
// tag: "/api/<segment>" for top-level kinds, "<parent-uri>/<segment>" for
// nested ones.
func (t *Transport) collectionFor(path string) (*Node, string, bool) {
	for _, kind := range t.engine.registry.Kinds() {
		if path == "/api/"+kind.Segment && slices.Contains(t.engine.registry.TopLevel(), kind.Name) {
			return t.engine.root, kind.Name, true
		}
		suffix := "/" + kind.Segment
		if strings.HasSuffix(path, suffix) {
			parentURI := strings.TrimSuffix(path, suffix)
			if parent, ok := t.engine.index[parentURI]; ok && slices.Contains(parent.kind.Children, kind.Name) {
				return parent, kind.Name, true
			}
		}
	}
	return nil, "", false
}

func splitQuery(path string) (string, string) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// queryArgs rebuilds filter criteria from a query string. Repeated
// parameters become an OR list, as the live server treats them.
func queryArgs(query string) (filter.Args, error) {
	if query == "" {
		return nil, nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("malformed query string: %w", err)
	}
	args := filter.Args{}
	for name, vs := range values {
		if len(vs) == 1 {
			args[name] = vs[0]
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		args[name] = list
	}
	return args, nil
}

func marshalEnvelope(collection string, items []*props.Map) (json.RawMessage, error) {
	envelope := props.New()
	list := make([]any, len(items))
	for i, item := range items {
		list[i] = item
	}
	envelope.Set(collection, list)
	return json.Marshal(envelope)
}

// bagFromBody converts any JSON-shaped request body into a property bag.
func bagFromBody(body any) (*props.Map, error) {
	if body == nil {
		return props.New(), nil
	}
	if bag, ok := body.(*props.Map); ok {
		return bag.Clone(), nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	bag := props.New()
	if err := json.Unmarshal(raw, bag); err != nil {
		return nil, err
	}
	return bag, nil
}

// httpError maps engine errors onto the uniform HTTP error taxonomy.
func httpError(method, path string, err error) *session.HTTPError {
	switch e := err.(type) {
	case *NotFoundError:
		return &session.HTTPError{Method: method, Path: path, Status: http.StatusNotFound, Reason: reasonNotFound, Message: e.Error()}
	case *CeasedExistenceError:
		return &session.HTTPError{Method: method, Path: path, Status: http.StatusNotFound, Reason: reasonCeasedExistence, Message: e.Error()}
	case *ValidationError:
		return &session.HTTPError{Method: method, Path: path, Status: http.StatusBadRequest, Reason: reasonInvalidInput, Message: e.Error()}
	case *ConflictError:
		return &session.HTTPError{Method: method, Path: path, Status: http.StatusConflict, Reason: reasonDuplicate, Message: e.Error()}
	case *filter.ConversionError:
		return &session.HTTPError{Method: method, Path: path, Status: http.StatusBadRequest, Reason: reasonInvalidInput, Message: e.Error()}
	default:
		return &session.HTTPError{Method: method, Path: path, Status: http.StatusInternalServerError, Message: err.Error()}
	}
}
