// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/db47h/hazsim/detect"
	"github.com/db47h/hazsim/server"
	"github.com/db47h/hazsim/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// notAnd is A & !A with ports left for the server to infer.
//
const notAnd = `{
	"name": "demo",
	"gates": [
		{"id": "n", "type": "NOT", "delay": 1},
		{"id": "g", "type": "and", "delay": 2}
	],
	"inputs": {"a": {"name": "A", "initial_value": 0}},
	"outputs": {"y": {"name": "Y", "source": "g"}},
	"connections": [
		{"from": "a", "to": "n", "delay": 0.1},
		{"from": "a", "to": "g", "delay": 0.1},
		{"from": "n", "to": "g", "delay": 0.1}
	]
}`

func newServer(t *testing.T, origins ...string) http.Handler {
	t.Helper()
	st, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return server.New(st, server.Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		CORSOrigins: origins,
	}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var resp map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func parseCircuit(t *testing.T, h http.Handler, expr string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"expression": expr})
	code, resp := do(t, h, "POST", "/api/parse", string(body))
	require.Equal(t, http.StatusOK, code, resp)
	return resp["circuit"].(map[string]interface{})["id"].(string)
}

func results(t *testing.T, resp map[string]interface{}) detect.Report {
	t.Helper()
	data, err := json.Marshal(resp["results"])
	require.NoError(t, err)
	var rep detect.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	return rep
}

func TestServer_index(t *testing.T) {
	h := newServer(t)
	for _, p := range []string{"/", "/api/"} {
		code, resp := do(t, h, "GET", p, "")
		assert.Equal(t, http.StatusOK, code, p)
		assert.Equal(t, "success", resp["status"], p)
		assert.Equal(t, server.Version, resp["version"], p)
	}
	code, resp := do(t, h, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_parse(t *testing.T) {
	h := newServer(t)
	code, resp := do(t, h, "POST", "/api/parse", `{"expression": "A AND NOT A"}`)
	require.Equal(t, http.StatusOK, code, resp)
	c := resp["circuit"].(map[string]interface{})
	assert.NotEmpty(t, c["id"])
	assert.Regexp(t, `^Circuit_\d{8}_\d{6}$`, c["name"])
	assert.Equal(t, "A AND NOT A", c["expression"])
	assert.Len(t, c["gates"], 2)
	assert.Len(t, c["inputs"], 1)
	assert.Len(t, c["outputs"], 1)
	assert.Len(t, c["connections"], 3)

	data := []struct {
		name string
		body string
		msg  string
	}{
		{"missing", `{}`, "missing circuit expression"},
		{"syntax", `{"expression": "A &"}`, "expected operand"},
		{"empty", `{"expression": ""}`, "empty expression"},
		{"body", `{"expression": `, "invalid request body"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			code, resp := do(t, h, "POST", "/api/parse", d.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "error", resp["status"])
			assert.Contains(t, resp["message"], d.msg)
		})
	}
}

func TestServer_detect(t *testing.T) {
	h := newServer(t)
	code, resp := do(t, h, "POST", "/api/detect", `{"circuit": `+notAnd+`}`)
	require.Equal(t, http.StatusOK, code, resp)
	rep := results(t, resp)
	assert.Empty(t, rep.RaceConditions)
	require.Len(t, rep.Hazards, 1)
	hz := rep.Hazards[0]
	assert.Equal(t, detect.Static0, hz.Kind)
	assert.Equal(t, "A", hz.Variable)
	assert.Equal(t, "g", hz.GateID)
	assert.Equal(t, []string{"a", "n"}, hz.GateInputs, "inferred from connections")
	assert.Equal(t, detect.MethodSymbolic, hz.Method)
}

func TestServer_detect_persist(t *testing.T) {
	h := newServer(t)
	id := parseCircuit(t, h, "A & !A")

	code, resp := do(t, h, "POST", "/api/detect", `{"circuit_id": "`+id+`", "circuit": `+notAnd+`}`)
	require.Equal(t, http.StatusOK, code, resp)

	code, resp = do(t, h, "GET", "/api/circuits/"+id, "")
	require.Equal(t, http.StatusOK, code, resp)
	rs := resp["results"].([]interface{})
	require.Len(t, rs, 1)
	r := rs[0].(map[string]interface{})
	assert.Equal(t, string(store.Hazard), r["type"])
	assert.Equal(t, id, r["circuit_id"])

	code, resp = do(t, h, "POST", "/api/detect", `{"circuit_id": "nope", "circuit": `+notAnd+`}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", resp["status"])
}

func TestServer_detect_errors(t *testing.T) {
	h := newServer(t)
	data := []struct {
		name string
		body string
		msg  string
	}{
		{"missing", `{}`, "missing circuit"},
		{"delay", `{"circuit": {"name": "x", "gates": [{"id": "g", "type": "AND"}], "inputs": [], "outputs": [], "connections": []}}`,
			"gates[0].delay: required"},
		{"unknown field", `{"circuit": {"name": "x", "gates": [], "inputs": {"a": {"name": "A", "initial_value": 0, "color": 1}}, "outputs": [], "connections": []}}`,
			`unknown field "color"`},
		{"cycle", `{"circuit": {"name": "loop",
			"gates": [{"id": "h", "type": "OR", "delay": 1, "inputs": ["a", "k"]}, {"id": "k", "type": "NOT", "delay": 1, "inputs": ["h"]}],
			"inputs": [{"id": "a", "name": "A", "initial_value": 0}],
			"outputs": [],
			"connections": [{"from": "a", "to": "h", "delay": 0}, {"from": "k", "to": "h", "delay": 0}, {"from": "h", "to": "k", "delay": 0}]}}`,
			"cycle"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			code, resp := do(t, h, "POST", "/api/detect", d.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "error", resp["status"])
			assert.Contains(t, resp["message"], d.msg)
		})
	}
}

func TestServer_simulate(t *testing.T) {
	h := newServer(t)
	hazard := parseCircuit(t, h, "A & !A")
	clean := parseCircuit(t, h, "A & B")

	code, resp := do(t, h, "POST", "/api/simulate", `{"circuit_id": "`+hazard+`", "inputs": {"a": 1}}`)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, map[string]interface{}{"a": 1.0, "g1": 0.0, "g2": 0.0, "out1": 0.0}, resp["results"])
	assert.Equal(t, "static-0", resp["hazard_type"])
	assert.Contains(t, resp["simplified_expression"], "variable A")

	code, resp = do(t, h, "POST", "/api/simulate", `{"circuit_id": "`+clean+`", "inputs": {"a": 1, "b": 1}}`)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, 1.0, resp["results"].(map[string]interface{})["out1"])
	assert.Nil(t, resp["hazard_type"])
	assert.Equal(t, "no hazard detected", resp["expression"])

	code, resp = do(t, h, "POST", "/api/simulate", `{"circuit": `+notAnd+`, "inputs": {"a": 0}}`)
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, 0.0, resp["results"].(map[string]interface{})["y"])
	assert.Equal(t, 1.0, resp["results"].(map[string]interface{})["n"])

	data := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"no inputs", `{"circuit_id": "` + hazard + `"}`, http.StatusBadRequest, "missing input values"},
		{"no circuit", `{"inputs": {}}`, http.StatusBadRequest, "either circuit_id or circuit is required"},
		{"unknown input", `{"circuit_id": "` + hazard + `", "inputs": {"z": 1}}`, http.StatusBadRequest, "z: unknown input id"},
		{"bad value", `{"circuit_id": "` + hazard + `", "inputs": {"a": 2}}`, http.StatusBadRequest, "invalid logic value 2"},
		{"not found", `{"circuit_id": "nope", "inputs": {}}`, http.StatusNotFound, "not found"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			code, resp := do(t, h, "POST", "/api/simulate", d.body)
			assert.Equal(t, d.code, code)
			assert.Equal(t, "error", resp["status"])
			assert.Contains(t, resp["message"], d.msg)
		})
	}
}

func TestServer_circuits(t *testing.T) {
	h := newServer(t)
	code, resp := do(t, h, "GET", "/api/circuits", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp["circuits"])

	ids := []string{parseCircuit(t, h, "A | B"), parseCircuit(t, h, "!C")}
	code, resp = do(t, h, "GET", "/api/circuits", "")
	require.Equal(t, http.StatusOK, code)
	list := resp["circuits"].([]interface{})
	require.Len(t, list, 2)
	assert.Equal(t, ids[0], list[0].(map[string]interface{})["id"])
	assert.Equal(t, "!C", list[1].(map[string]interface{})["expression"])

	code, resp = do(t, h, "GET", "/api/circuits/"+ids[1], "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp["circuit"].(map[string]interface{})["gates"], 1)
	assert.Empty(t, resp["results"])

	code, _ = do(t, h, "DELETE", "/api/circuits/"+ids[1], "")
	assert.Equal(t, http.StatusOK, code)
	code, resp = do(t, h, "GET", "/api/circuits/"+ids[1], "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", resp["status"])
	code, _ = do(t, h, "DELETE", "/api/circuits/"+ids[1], "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_metrics(t *testing.T) {
	h := newServer(t)
	code, _ := do(t, h, "POST", "/api/detect", `{"circuit": `+notAnd+`}`)
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `hazsim_http_requests_total{code="200",route="/api/detect"} 1`)
	assert.Contains(t, body, `hazsim_detect_hazards_total{kind="static-0",method="symbolic"} 1`)
	assert.Contains(t, body, "hazsim_detect_duration_seconds_count 1")
}

func TestServer_cors(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://client.example")
	w := httptest.NewRecorder()
	newServer(t).ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	h := newServer(t, "http://localhost:3000")
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
