package condition_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	client "github.com/streamwatch/streamwatch/client/v1"
)

func TestService_HTTP_CRUD(t *testing.T) {
	f := newFixture(t, nil)

	// Create
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/streams/s-1/alerts/conditions", strings.NewReader(`{
		"type": "field_value",
		"title": "High latency",
		"parameters": {"field": "took_ms", "value": "mean", "grace": 10}
	}`))
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("unexpected create status: got %d body %s", w.Code, w.Body.String())
	}
	var created client.CreateConditionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.AlertConditionID == "" {
		t.Fatal("expected an alert condition id in the create response")
	}
	if loc := w.Header().Get("Location"); !strings.HasSuffix(loc, "/alerts/conditions/"+created.AlertConditionID) {
		t.Errorf("unexpected Location header: %q", loc)
	}

	conditionURL := "/streams/s-1/alerts/conditions/" + created.AlertConditionID

	// Get
	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", conditionURL, nil)
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected get status: got %d body %s", w.Code, w.Body.String())
	}
	var got client.Condition
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != created.AlertConditionID || got.StreamID != "s-1" || got.Type != "field_value" {
		t.Errorf("unexpected condition: %+v", got)
	}
	if got.Title != "High latency" || got.InGracePeriod {
		t.Errorf("unexpected condition state: %+v", got)
	}
	// Defaults made explicit, numbers decode as float64.
	if got.Parameters["threshold_type"] != "higher" || got.Parameters["time"] != float64(5) {
		t.Errorf("expected explicit defaults in parameters: %#v", got.Parameters)
	}

	// List
	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/streams/s-1/alerts/conditions", nil)
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected list status: got %d body %s", w.Code, w.Body.String())
	}
	var list client.Conditions
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Conditions) != 1 || list.Conditions[0].ID != created.AlertConditionID {
		t.Errorf("unexpected condition list: %+v", list)
	}

	// Update
	w = httptest.NewRecorder()
	r = httptest.NewRequest("PUT", conditionURL, strings.NewReader(`{
		"type": "field_value",
		"title": "Very high latency",
		"parameters": {"field": "took_ms", "value": "mean_5", "threshold_type": "lower"}
	}`))
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected update status: got %d body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", conditionURL, nil)
	f.httpd.mux.ServeHTTP(w, r)
	var updated client.Condition
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Very high latency" || updated.Parameters["value"] != "mean_5" {
		t.Errorf("unexpected updated condition: %+v", updated)
	}
	if !updated.CreatedAt.Equal(got.CreatedAt) || updated.CreatorUserID != got.CreatorUserID {
		t.Errorf("identity fields were not preserved: %+v", updated)
	}

	// Delete
	w = httptest.NewRecorder()
	r = httptest.NewRequest("DELETE", conditionURL, nil)
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected delete status: got %d body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", conditionURL, nil)
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestService_HTTP_Patch(t *testing.T) {
	f := newFixture(t, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/streams/s-1/alerts/conditions", strings.NewReader(`{
		"type": "message_count",
		"title": "Too quiet",
		"parameters": {"threshold": 10, "threshold_type": "less"}
	}`))
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("unexpected create status: got %d body %s", w.Code, w.Body.String())
	}
	var created client.CreateConditionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	conditionURL := "/streams/s-1/alerts/conditions/" + created.AlertConditionID

	// Patch title and a single parameter.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("PATCH", conditionURL, strings.NewReader(`[
		{"op": "replace", "path": "/title", "value": "Far too quiet"},
		{"op": "replace", "path": "/parameters/threshold", "value": 2}
	]`))
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected patch status: got %d body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", conditionURL, nil)
	f.httpd.mux.ServeHTTP(w, r)
	var got client.Condition
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Far too quiet" || got.Parameters["threshold"] != float64(2) {
		t.Errorf("unexpected patched condition: %+v", got)
	}
	// Untouched parameters stay as they were.
	if got.Parameters["threshold_type"] != "less" {
		t.Errorf("expected untouched parameters to survive the patch: %#v", got.Parameters)
	}

	// A patch may not change the condition type.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("PATCH", conditionURL, strings.NewReader(`[
		{"op": "replace", "path": "/type", "value": "field_value"}
	]`))
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 patching the type, got %d body %s", w.Code, w.Body.String())
	}

	// Malformed patch documents are rejected.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("PATCH", conditionURL, strings.NewReader(`{"op": "replace"}`))
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed patch, got %d body %s", w.Code, w.Body.String())
	}
}

func TestService_HTTP_Errors(t *testing.T) {
	f := newFixture(t, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/streams/s-1/alerts/conditions", strings.NewReader(`{
		"type": "field_value",
		"title": "t",
		"parameters": {"field": "took_ms", "value": "mean"}
	}`))
	f.httpd.mux.ServeHTTP(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("unexpected create status: got %d body %s", w.Code, w.Body.String())
	}
	var created client.CreateConditionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		method string
		url    string
		body   string
		code   int
	}{
		{
			name:   "create on unknown stream",
			method: "POST",
			url:    "/streams/nope/alerts/conditions",
			body:   `{"type":"field_value","title":"t","parameters":{"field":"f","value":"v"}}`,
			code:   http.StatusNotFound,
		},
		{
			name:   "create unknown type",
			method: "POST",
			url:    "/streams/s-1/alerts/conditions",
			body:   `{"type":"quantum_flux","title":"t"}`,
			code:   http.StatusBadRequest,
		},
		{
			name:   "create invalid parameters",
			method: "POST",
			url:    "/streams/s-1/alerts/conditions",
			body:   `{"type":"field_value","title":"t","parameters":{"value":"v"}}`,
			code:   http.StatusBadRequest,
		},
		{
			name:   "create unknown parameter key",
			method: "POST",
			url:    "/streams/s-1/alerts/conditions",
			body:   `{"type":"field_value","title":"t","parameters":{"field":"f","value":"v","nope":1}}`,
			code:   http.StatusBadRequest,
		},
		{
			name:   "create invalid json",
			method: "POST",
			url:    "/streams/s-1/alerts/conditions",
			body:   `{`,
			code:   http.StatusBadRequest,
		},
		{
			name:   "get missing",
			method: "GET",
			url:    "/streams/s-1/alerts/conditions/nope",
			code:   http.StatusNotFound,
		},
		{
			name:   "list unknown stream",
			method: "GET",
			url:    "/streams/nope/alerts/conditions",
			code:   http.StatusNotFound,
		},
		{
			name:   "update missing",
			method: "PUT",
			url:    "/streams/s-1/alerts/conditions/nope",
			body:   `{"type":"field_value","title":"t","parameters":{"field":"f","value":"v"}}`,
			code:   http.StatusNotFound,
		},
		{
			name:   "update type change",
			method: "PUT",
			url:    "/streams/s-1/alerts/conditions/" + created.AlertConditionID,
			body:   `{"type":"message_count","title":"t","parameters":{"threshold":1}}`,
			code:   http.StatusBadRequest,
		},
		{
			name:   "delete missing",
			method: "DELETE",
			url:    "/streams/s-1/alerts/conditions/nope",
			code:   http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
			f.httpd.mux.ServeHTTP(w, r)
			if w.Code != tt.code {
				t.Errorf("got status %d want %d, body %s", w.Code, tt.code, w.Body.String())
			}
		})
	}
}
