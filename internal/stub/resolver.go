// Package stub implements the stub resolver: the multi-stage filter that
// picks at most one (stub, state?) pair for an incoming request.
package stub

import (
	"encoding/json"
	"errors"
	"log"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/danslapman/kolibri-go/internal/models"
	"github.com/danslapman/kolibri-go/internal/predicate"
	"github.com/danslapman/kolibri-go/internal/state"
	"github.com/danslapman/kolibri-go/internal/template"
)

// RequestBody describes the incoming request body as seen by the resolver.
type RequestBody struct {
	Present bool
	Raw     string
}

// Request is the inbound request the resolver matches stubs against.
type Request struct {
	Method  models.HTTPMethod
	Path    string
	Headers map[string]string
	Query   interface{}
	Body    RequestBody
}

// Result is a successful resolution: the selected stub, its path capture
// groups, and the state it was paired with, if any.
type Result struct {
	Stub      *models.Stub
	State     *models.State
	PathParts map[string]interface{}
}

// Debug gates the component-level diagnostic tracing (scope entered,
// survivor counts per filter stage) called for by the resolver's logging
// contract; off by default since it is per-request chatter.
var Debug bool

func debugf(format string, args ...interface{}) {
	if Debug {
		log.Printf("[stub] "+format, args...)
	}
}

// Resolver holds the immutable stub catalogue plus the mutable countdown
// bookkeeping that tracks remaining invocations per countdown stub. The
// catalogue itself is never mutated; countdown decrements live only here.
type Resolver struct {
	stubs     []*models.Stub
	remaining []*atomic.Int64 // parallel to stubs; nil unless scope == countdown
	states    *state.Store
}

// New builds a resolver over catalogue, seeding countdown counters from
// each countdown stub's Times.
func New(catalogue []*models.Stub, states *state.Store) *Resolver {
	r := &Resolver{
		stubs:     catalogue,
		remaining: make([]*atomic.Int64, len(catalogue)),
		states:    states,
	}
	for i, s := range catalogue {
		if s.Scope == models.ScopeCountdown && s.Times != nil {
			c := &atomic.Int64{}
			c.Store(*s.Times)
			r.remaining[i] = c
		}
	}
	return r
}

// Resolve attempts resolution in scope priority order; the first scope
// that yields a selection wins.
func (r *Resolver) Resolve(req Request) (*Result, error) {
	for _, scope := range models.ScopePriority {
		result, err := r.resolveInScope(scope, req)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, errors.New("no stub found for " + string(req.Method) + " " + req.Path)
}

type candidate struct {
	idx         int
	stub        *models.Stub
	pathParts   map[string]interface{}
	stateful    bool
	matchStates []*models.State
}

func (r *Resolver) resolveInScope(scope models.Scope, req Request) (*Result, error) {
	debugf("entering scope %s for %s %s", scope, req.Method, req.Path)

	candidates := r.prefilter(scope, req)
	debugf("scope %s: %d survivor(s) after method/path prefilter", scope, len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = filterCandidates(candidates, func(c *candidate) bool {
		return checkQuery(c.stub, req.Query)
	})
	debugf("scope %s: %d survivor(s) after query filter", scope, len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = filterCandidates(candidates, func(c *candidate) bool {
		return checkHeaders(c.stub, req.Headers)
	})
	debugf("scope %s: %d survivor(s) after header filter", scope, len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = filterCandidates(candidates, func(c *candidate) bool {
		return checkBody(c.stub, req.Body)
	})
	debugf("scope %s: %d survivor(s) after body filter", scope, len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}

	r.pairStates(candidates, req)

	selected, err := selectCandidate(candidates)
	if err != nil {
		log.Printf("[stub] scope %s: uniqueness violation: %v", scope, err)
		return nil, err
	}
	if selected == nil {
		return nil, nil
	}

	if selected.stub.Scope == models.ScopeCountdown {
		r.decrementCountdown(selected.idx)
	}

	var matchedState *models.State
	if len(selected.matchStates) == 1 {
		matchedState = selected.matchStates[0]
	}

	return &Result{Stub: selected.stub, State: matchedState, PathParts: selected.pathParts}, nil
}

func (r *Resolver) prefilter(scope models.Scope, req Request) []*candidate {
	var out []*candidate
	for i, s := range r.stubs {
		if s.Scope != scope || s.Method != req.Method {
			continue
		}

		pathParts, ok := matchesPath(s, req.Path)
		if !ok {
			continue
		}

		if scope == models.ScopeCountdown {
			c := r.remaining[i]
			if c == nil || c.Load() <= 0 {
				continue
			}
		}

		out = append(out, &candidate{idx: i, stub: s, pathParts: pathParts})
	}
	return out
}

func matchesPath(s *models.Stub, path string) (map[string]interface{}, bool) {
	if s.Path != nil {
		if *s.Path == path {
			return map[string]interface{}{}, true
		}
		return nil, false
	}
	re := s.PathRegexp()
	if re == nil {
		return nil, false
	}
	m := re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	parts := map[string]interface{}{}
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		parts[name] = m[i]
	}
	return parts, true
}

func filterCandidates(in []*candidate, keep func(*candidate) bool) []*candidate {
	out := in[:0:0]
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func checkQuery(s *models.Stub, query interface{}) bool {
	spec := s.Request.Query
	if len(spec) == 0 {
		return true
	}
	ok, err := predicate.Validate(spec, query)
	if err != nil {
		log.Printf("[stub] query predicate error for stub %q: %v", s.Name, err)
		return false
	}
	return ok
}

func checkHeaders(s *models.Stub, headers map[string]string) bool {
	for name, expected := range s.Request.Headers {
		actual, ok := headers[name]
		if !ok || !strings.EqualFold(actual, expected) {
			return false
		}
	}
	return true
}

func checkBody(s *models.Stub, body RequestBody) bool {
	switch s.Request.Mode {
	case "no_body":
		return !body.Present
	case "json":
		if !body.Present {
			return false
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(body.Raw), &parsed); err != nil {
			return false
		}
		return reflect.DeepEqual(parsed, s.Request.JSONBody)
	case "raw":
		return body.Present && body.Raw == s.Request.RawBody
	case "jlens":
		if !body.Present {
			return false
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(body.Raw), &parsed); err != nil {
			return false
		}
		ok, err := predicate.Validate(s.Request.BodyPredicate, parsed)
		if err != nil {
			log.Printf("[stub] jlens predicate error for stub %q: %v", s.Name, err)
			return false
		}
		return ok
	default:
		return false
	}
}

func extractJSONBody(s *models.Stub, body RequestBody) interface{} {
	if !body.Present || (s.Request.Mode != "json" && s.Request.Mode != "jlens") {
		return nil
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(body.Raw), &parsed); err != nil {
		return nil
	}
	return parsed
}

// pairStates fills and evaluates each stateful candidate's state predicate
// spec against every state in the store, and records its matches.
func (r *Resolver) pairStates(candidates []*candidate, req Request) {
	snapshot := r.states.Snapshot()

	for _, c := range candidates {
		if !c.stub.IsStateful() {
			continue
		}
		c.stateful = true

		filled, err := fillStateSpec(c.stub.State, req, c)
		if err != nil {
			log.Printf("[stub] failed to fill state spec for stub %q: %v", c.stub.Name, err)
			continue
		}

		for _, st := range snapshot {
			ok, err := predicate.Validate(filled, st.Data)
			if err != nil {
				log.Printf("[stub] state predicate error for stub %q: %v", c.stub.Name, err)
				continue
			}
			if ok {
				c.matchStates = append(c.matchStates, st)
			}
		}
	}
}

func fillStateSpec(spec predicate.Spec, req Request, c *candidate) (predicate.Spec, error) {
	encoded, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return nil, err
	}

	ctx := map[string]interface{}{
		"__query":    req.Query,
		"__segments": c.pathParts,
		"__headers":  headersToJSON(req.Headers),
	}
	if body := extractJSONBody(c.stub, req.Body); body != nil {
		ctx["body"] = body
	}

	filled := template.Substitute(generic, ctx)

	reencoded, err := json.Marshal(filled)
	if err != nil {
		return nil, err
	}
	var result predicate.Spec
	if err := json.Unmarshal(reencoded, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func headersToJSON(headers map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// selectCandidate enforces the uniqueness invariants and applies the
// selection rule: prefer a candidate matched to exactly one state,
// otherwise the unique stateless candidate.
func selectCandidate(candidates []*candidate) (*candidate, error) {
	matchedOnce := 0
	var soleMatch *candidate
	for _, c := range candidates {
		if len(c.matchStates) > 1 {
			return nil, errors.New("multiple suitable states for one stub")
		}
		if len(c.matchStates) == 1 {
			matchedOnce++
			soleMatch = c
		}
	}
	if matchedOnce > 1 {
		return nil, errors.New("suitable states for more than one stub")
	}
	if matchedOnce == 1 {
		return soleMatch, nil
	}

	statelessCount := 0
	var soleStateless *candidate
	allStateful := true
	for _, c := range candidates {
		if c.stateful {
			continue
		}
		allStateful = false
		statelessCount++
		soleStateless = c
	}

	// A lone stateful candidate that matched no state is simply not a
	// selection (invariant 3); it is not ambiguous, so it is not a fatal
	// error unless other candidates remain to be ambiguous with.
	if len(candidates) == 1 {
		if allStateful {
			return nil, nil
		}
		return soleStateless, nil
	}

	if allStateful {
		return nil, errors.New("no suitable state for any stub")
	}
	if statelessCount > 1 {
		return nil, errors.New("more than one stateless stub")
	}
	return soleStateless, nil
}

func (r *Resolver) decrementCountdown(idx int) {
	c := r.remaining[idx]
	if c == nil {
		return
	}
	for {
		cur := c.Load()
		if cur <= 0 {
			return
		}
		if c.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}
