// Package exec implements the execution handler: it turns a resolver
// result into a concrete response by building the template data document,
// substituting the response template, persisting state, and honoring the
// stub's response delay.
package exec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danslapman/kolibri-go/internal/models"
	"github.com/danslapman/kolibri-go/internal/state"
	"github.com/danslapman/kolibri-go/internal/stub"
	"github.com/danslapman/kolibri-go/internal/template"
)

// Response is the envelope returned to the HTTP collaborator.
type Response struct {
	Code    int
	Headers map[string]string
	Body    []byte
}

// Handler orchestrates resolution, templating, persistence and delay.
type Handler struct {
	resolver *stub.Resolver
	states   *state.Store
}

// New builds a Handler over resolver and the shared state store.
func New(resolver *stub.Resolver, states *state.Store) *Handler {
	return &Handler{resolver: resolver, states: states}
}

// Exec resolves req and produces the response envelope. If ctx is
// cancelled during the stub's response delay, Exec returns ctx.Err()
// without rolling back any persistence performed first.
func (h *Handler) Exec(ctx context.Context, req stub.Request) (*Response, error) {
	result, err := h.resolver.Resolve(req)
	if err != nil {
		return nil, err
	}

	data := h.buildDataDocument(result, req)

	resp := result.Stub.Response
	body, err := h.renderBody(resp, data)
	if err != nil {
		return nil, err
	}

	if len(result.Stub.Persist) > 0 {
		h.persist(result, data)
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &Response{Code: resp.Code, Headers: resp.Headers, Body: body}, nil
}

func (h *Handler) buildDataDocument(result *stub.Result, req stub.Request) map[string]interface{} {
	var reqBody interface{}
	if req.Body.Present {
		var parsed interface{}
		if err := json.Unmarshal([]byte(req.Body.Raw), &parsed); err == nil {
			reqBody = parsed
		}
	}

	var stateData interface{}
	if result.State != nil {
		stateData = result.State.Data
	}

	headers := make(map[string]interface{}, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = v
	}

	return map[string]interface{}{
		"req":       reqBody,
		"state":     stateData,
		"query":     req.Query,
		"pathParts": result.PathParts,
		"headers":   headers,
	}
}

// persist fills the stub's persist spec (optic -> template) against data,
// renders it into a standalone patch document, and deep-merges that patch
// into a working copy of the matched state's data (or a freshly seeded
// document if no state matched). The merged document is upserted.
func (h *Handler) persist(result *stub.Result, data map[string]interface{}) {
	var base interface{} = map[string]interface{}{}
	id := ""
	if result.State != nil {
		base = result.State.Data
		id = result.State.ID
	} else if result.Stub.Seed != nil {
		base = result.Stub.Seed
	}

	fillDoc := persistFillDocument(data, base)

	var patch interface{} = map[string]interface{}{}
	template.Patch(&patch, fillDoc, result.Stub.Persist)

	merged := deepMerge(base, patch)
	h.states.Upsert(id, merged)
}

// persistFillDocument exposes the matched (or seeded) state's own fields
// as top-level variables alongside the standard data document, so a
// persist template like "%{counter+1}" can reference the state's
// "counter" field directly rather than through "state.counter".
func persistFillDocument(data map[string]interface{}, base interface{}) map[string]interface{} {
	doc := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		doc[k] = v
	}
	if baseMap, ok := base.(map[string]interface{}); ok {
		for k, v := range baseMap {
			doc[k] = v
		}
	}
	return doc
}

func (h *Handler) renderBody(resp models.StubResponse, data map[string]interface{}) ([]byte, error) {
	switch resp.Mode {
	case "raw":
		return []byte(resp.RawBody), nil
	case "json":
		body := resp.JSONBody
		if resp.IsTemplate {
			body = template.Substitute(deepCopy(body), data)
		}
		return json.Marshal(body)
	default:
		return nil, nil
	}
}

// deepMerge combines base and overlay: objects recurse key by key,
// arrays and scalars are replaced wholesale by overlay's value.
func deepMerge(base, overlay interface{}) interface{} {
	baseMap, baseIsMap := base.(map[string]interface{})
	overlayMap, overlayIsMap := overlay.(map[string]interface{})
	if baseIsMap && overlayIsMap {
		merged := make(map[string]interface{}, len(baseMap)+len(overlayMap))
		for k, v := range baseMap {
			merged[k] = v
		}
		for k, v := range overlayMap {
			if existing, ok := merged[k]; ok {
				merged[k] = deepMerge(existing, v)
			} else {
				merged[k] = v
			}
		}
		return merged
	}
	return overlay
}

func deepCopy(v interface{}) interface{} {
	encoded, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return v
	}
	return out
}
