package api

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danslapman/kolibri-go/internal/exec"
	"github.com/danslapman/kolibri-go/internal/metrics"
	"github.com/danslapman/kolibri-go/internal/models"
	"github.com/danslapman/kolibri-go/internal/stub"
)

// ExecHandler adapts the execution handler to net/http: it builds a
// resolver Request from the incoming HTTP request, runs it through the
// handler, and writes the resulting envelope back to the client.
type ExecHandler struct {
	handler *exec.Handler
}

// NewExecHandler wraps handler for HTTP serving.
func NewExecHandler(handler *exec.Handler) *ExecHandler {
	return &ExecHandler{handler: handler}
}

func (h *ExecHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	method := r.Method
	metrics.RecordRequest(method)

	path := GetParam(r, "path")
	if path == "" {
		path = r.URL.Path
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeInvalidJSON, "error reading request body")
		return
	}
	if !utf8.Valid(body) {
		writeError(w, http.StatusBadRequest, errCodeInvalidJSON, "request body is not valid UTF-8")
		return
	}

	req := stub.Request{
		Method:  models.HTTPMethod(strings.ToUpper(r.Method)),
		Path:    path,
		Headers: flattenHeaders(r.Header),
		Query:   queryToJSON(r.URL.Query()),
		Body:    stub.RequestBody{Present: len(body) > 0, Raw: string(body)},
	}

	result, err := h.handler.Exec(r.Context(), req)
	if err != nil {
		metrics.RecordResponseDuration(method, time.Since(start).Seconds())
		writeResolutionError(w, err, method)
		return
	}

	for name, value := range result.Headers {
		w.Header().Set(name, value)
	}
	if result.Code == 0 {
		result.Code = http.StatusOK
	}
	w.WriteHeader(result.Code)
	w.Write(result.Body)

	metrics.RecordResponseDuration(method, time.Since(start).Seconds())
}

// writeResolutionError surfaces a resolver failure (no match, or a
// uniqueness violation) as a 500-class response carrying a plain-text
// diagnostic, per the resolver's error contract.
func writeResolutionError(w http.ResponseWriter, err error, method string) {
	msg := err.Error()
	if strings.HasPrefix(msg, "no stub found for") {
		metrics.RecordNoMatch(method)
	} else {
		metrics.RecordResolverError(msg)
	}
	http.Error(w, msg, http.StatusInternalServerError)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func queryToJSON(values url.Values) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		arr := make([]interface{}, len(vs))
		for i, v := range vs {
			arr[i] = v
		}
		out[k] = arr
	}
	return out
}
