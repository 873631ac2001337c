// Package models defines the persistent stub catalogue shape: a stub's
// match clauses, response template and the state records the resolver
// and execution handler operate over.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/danslapman/kolibri-go/internal/predicate"
)

// Scope controls stub selection priority and lifetime.
type Scope string

const (
	ScopeCountdown  Scope = "countdown"
	ScopeEphemeral  Scope = "ephemeral"
	ScopePersistent Scope = "persistent"
)

// Priority order the resolver consults scopes in; countdown wins first.
var ScopePriority = []Scope{ScopeCountdown, ScopeEphemeral, ScopePersistent}

// HTTPMethod is the stub's matched request method. It is decoded as
// written; decoding does not change its case.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodPatch   HTTPMethod = "PATCH"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
)

// StubRequest is the tagged request-matching clause: no_body, json, raw or
// jlens, distinguished by the wire "mode" field.
type StubRequest struct {
	Mode          string
	Headers       map[string]string
	Query         predicate.Spec
	JSONBody      interface{}
	RawBody       string
	BodyPredicate predicate.Spec
}

func (r *StubRequest) UnmarshalJSON(data []byte) error {
	var peek struct {
		Mode    string            `json:"mode"`
		Headers map[string]string `json:"headers"`
		Query   predicate.Spec    `json:"query"`
		Body    json.RawMessage   `json:"body"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return err
	}

	r.Mode = peek.Mode
	r.Headers = peek.Headers
	r.Query = peek.Query

	switch peek.Mode {
	case "no_body":
	case "json":
		if err := json.Unmarshal(peek.Body, &r.JSONBody); err != nil {
			return fmt.Errorf("models: decoding json request body: %w", err)
		}
	case "raw":
		if err := json.Unmarshal(peek.Body, &r.RawBody); err != nil {
			return fmt.Errorf("models: decoding raw request body: %w", err)
		}
	case "jlens":
		if err := json.Unmarshal(peek.Body, &r.BodyPredicate); err != nil {
			return fmt.Errorf("models: decoding jlens request body: %w", err)
		}
	default:
		return fmt.Errorf("models: unknown request mode %q", peek.Mode)
	}
	return nil
}

// StubResponse is the tagged response clause: raw or json, distinguished
// by the wire "mode" field.
type StubResponse struct {
	Mode       string
	Code       int
	Headers    map[string]string
	Delay      time.Duration
	RawBody    string
	JSONBody   interface{}
	IsTemplate bool
}

func (r *StubResponse) UnmarshalJSON(data []byte) error {
	var peek struct {
		Mode       string            `json:"mode"`
		Code       int               `json:"code"`
		Headers    map[string]string `json:"headers"`
		Body       json.RawMessage   `json:"body"`
		DelayMs    *int64            `json:"delay"`
		IsTemplate bool              `json:"is_template"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return err
	}

	r.Mode = peek.Mode
	r.Code = peek.Code
	r.Headers = peek.Headers
	r.IsTemplate = peek.IsTemplate
	if peek.DelayMs != nil {
		r.Delay = time.Duration(*peek.DelayMs) * time.Millisecond
	}

	switch peek.Mode {
	case "raw":
		if err := json.Unmarshal(peek.Body, &r.RawBody); err != nil {
			return fmt.Errorf("models: decoding raw response body: %w", err)
		}
	case "json":
		if err := json.Unmarshal(peek.Body, &r.JSONBody); err != nil {
			return fmt.Errorf("models: decoding json response body: %w", err)
		}
	default:
		return fmt.Errorf("models: unknown response mode %q", peek.Mode)
	}
	return nil
}

// Stub is a single persistent catalogue entry.
type Stub struct {
	Created     time.Time         `json:"created"`
	Scope       Scope             `json:"scope"`
	Times       *int64            `json:"times,omitempty"`
	Name        string            `json:"name"`
	Method      HTTPMethod        `json:"method"`
	Path        *string           `json:"path,omitempty"`
	PathPattern *string           `json:"path_pattern,omitempty"`
	Seed        interface{}       `json:"seed,omitempty"`
	State       predicate.Spec    `json:"state,omitempty"`
	Request     StubRequest       `json:"request"`
	Persist     map[string]string `json:"persist,omitempty"`
	Response    StubResponse      `json:"response"`
	Callback    *Callback         `json:"callback,omitempty"`

	compiledPattern *regexp.Regexp
}

// UnmarshalJSON decodes a stub and pre-compiles its path pattern, if any,
// so the resolver never compiles a regex on the request path.
func (s *Stub) UnmarshalJSON(data []byte) error {
	type stubAlias Stub
	var alias stubAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*s = Stub(alias)

	if s.Path != nil && s.PathPattern != nil {
		return fmt.Errorf("models: stub %q has both path and path_pattern", s.Name)
	}
	if s.Path == nil && s.PathPattern == nil {
		return fmt.Errorf("models: stub %q has neither path nor path_pattern", s.Name)
	}
	if s.PathPattern != nil {
		re, err := regexp.Compile(*s.PathPattern)
		if err != nil {
			return fmt.Errorf("models: stub %q has invalid path_pattern: %w", s.Name, err)
		}
		s.compiledPattern = re
	}
	return nil
}

// PathRegexp returns the stub's compiled path_pattern, or nil if the stub
// matches on a literal path instead.
func (s *Stub) PathRegexp() *regexp.Regexp {
	return s.compiledPattern
}

// IsStateful reports whether the resolver must pair this stub with a
// matching state before it can be selected.
func (s *Stub) IsStateful() bool {
	return len(s.State) > 0
}

// Callback is the outbound HTTP callback a stub may carry; it is part of
// the persistent model but is not invoked by the execution handler.
type Callback struct {
	Request      CallbackRequest   `json:"request"`
	ResponseMode string            `json:"response_mode,omitempty"`
	Persist      map[string]string `json:"persist,omitempty"`
	Callback     *Callback         `json:"callback,omitempty"`
	Delay        *int64            `json:"delay,omitempty"`
}

// CallbackRequest is the tagged outbound request a Callback issues.
type CallbackRequest struct {
	Mode     string
	URL      string
	Method   HTTPMethod
	Headers  map[string]string
	RawBody  string
	JSONBody interface{}
}

func (r *CallbackRequest) UnmarshalJSON(data []byte) error {
	var peek struct {
		Mode    string            `json:"mode"`
		URL     string            `json:"url"`
		Method  HTTPMethod        `json:"method"`
		Headers map[string]string `json:"headers"`
		Body    json.RawMessage   `json:"body"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return err
	}
	r.Mode = peek.Mode
	r.URL = peek.URL
	r.Method = peek.Method
	r.Headers = peek.Headers

	switch peek.Mode {
	case "no_body":
	case "raw":
		if err := json.Unmarshal(peek.Body, &r.RawBody); err != nil {
			return fmt.Errorf("models: decoding raw callback body: %w", err)
		}
	case "json":
		if err := json.Unmarshal(peek.Body, &r.JSONBody); err != nil {
			return fmt.Errorf("models: decoding json callback body: %w", err)
		}
	default:
		return fmt.Errorf("models: unknown callback request mode %q", peek.Mode)
	}
	return nil
}

// State is an in-memory state record keyed by UUID in the state store.
type State struct {
	ID      string      `json:"id"`
	Created time.Time   `json:"created"`
	Data    interface{} `json:"data"`
}
