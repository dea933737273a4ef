package client_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	client "github.com/streamwatch/streamwatch/client/v1"
)

func newClient(handler http.Handler) (*httptest.Server, *client.Client, error) {
	ts := httptest.NewServer(handler)
	config := client.Config{
		URL: ts.URL,
	}
	cli, err := client.New(config)
	return ts, cli, err
}

func Test_NewClient_Error(t *testing.T) {
	_, err := client.New(client.Config{
		URL: "udp://badurl",
	})
	if err == nil {
		t.Error("expected error from client.New")
	}
}

func Test_ReportsErrors(t *testing.T) {
	testCases := []struct {
		name string
		fnc  func(c *client.Client) error
	}{
		{
			name: "Ping",
			fnc: func(c *client.Client) error {
				_, _, err := c.Ping()
				return err
			},
		},
		{
			name: "CreateStream",
			fnc: func(c *client.Client) error {
				_, err := c.CreateStream(client.CreateStreamOptions{})
				return err
			},
		},
		{
			name: "Stream",
			fnc: func(c *client.Client) error {
				_, err := c.Stream(c.StreamLink("behavior"))
				return err
			},
		},
		{
			name: "ListStreams",
			fnc: func(c *client.Client) error {
				_, err := c.ListStreams(nil)
				return err
			},
		},
		{
			name: "UpdateStream",
			fnc: func(c *client.Client) error {
				_, err := c.UpdateStream(c.StreamLink("behavior"), client.UpdateStreamOptions{})
				return err
			},
		},
		{
			name: "DeleteStream",
			fnc: func(c *client.Client) error {
				return c.DeleteStream(c.StreamLink("behavior"))
			},
		},
		{
			name: "CreateCondition",
			fnc: func(c *client.Client) error {
				_, err := c.CreateCondition("behavior", client.CreateConditionOptions{})
				return err
			},
		},
		{
			name: "Condition",
			fnc: func(c *client.Client) error {
				_, err := c.Condition(c.ConditionLink("behavior", "cond-1"))
				return err
			},
		},
		{
			name: "ListConditions",
			fnc: func(c *client.Client) error {
				_, err := c.ListConditions("behavior")
				return err
			},
		},
		{
			name: "UpdateCondition",
			fnc: func(c *client.Client) error {
				return c.UpdateCondition(c.ConditionLink("behavior", "cond-1"), client.UpdateConditionOptions{})
			},
		},
		{
			name: "PatchCondition",
			fnc: func(c *client.Client) error {
				return c.PatchCondition(c.ConditionLink("behavior", "cond-1"), client.JSONPatch{})
			},
		},
		{
			name: "DeleteCondition",
			fnc: func(c *client.Client) error {
				return c.DeleteCondition(c.ConditionLink("behavior", "cond-1"))
			},
		},
		{
			name: "RecordTrigger",
			fnc: func(c *client.Client) error {
				_, err := c.RecordTrigger("behavior", "cond-1", client.RecordTriggerOptions{})
				return err
			},
		},
		{
			name: "ListTriggers",
			fnc: func(c *client.Client) error {
				_, err := c.ListTriggers("behavior", "cond-1", nil)
				return err
			},
		},
		{
			name: "CreateUser",
			fnc: func(c *client.Client) error {
				_, err := c.CreateUser(client.CreateUserOptions{})
				return err
			},
		},
		{
			name: "User",
			fnc: func(c *client.Client) error {
				_, err := c.User(c.UserLink("bob"))
				return err
			},
		},
		{
			name: "ListUsers",
			fnc: func(c *client.Client) error {
				_, err := c.ListUsers()
				return err
			},
		},
		{
			name: "UpdateUser",
			fnc: func(c *client.Client) error {
				_, err := c.UpdateUser(c.UserLink("bob"), client.UpdateUserOptions{})
				return err
			},
		},
		{
			name: "DeleteUser",
			fnc: func(c *client.Client) error {
				return c.DeleteUser(c.UserLink("bob"))
			},
		},
		{
			name: "ListStorage",
			fnc: func(c *client.Client) error {
				_, err := c.ListStorage()
				return err
			},
		},
		{
			name: "DoStorageAction",
			fnc: func(c *client.Client) error {
				return c.DoStorageAction(c.StorageLink("stream_store"), client.StorageActionOptions{
					Action: client.StorageRebuild,
				})
			},
		},
		{
			name: "LogLevel",
			fnc: func(c *client.Client) error {
				return c.LogLevel("DEBUG")
			},
		},
	}
	for _, tc := range testCases {
		s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()

		err = tc.fnc(c)
		if err == nil {
			t.Fatalf("expected error from call to %s", tc.name)
		}

		s, c, err = newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":"custom error message"}`)
		}))
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()

		err = tc.fnc(c)
		if err == nil {
			t.Fatalf("expected error from call to %s", tc.name)
		}
		if exp, got := "custom error message", err.Error(); exp != got {
			t.Errorf("%s: unexpected error message: got: %s exp: %s", tc.name, got, exp)
		}
	}
}

func Test_PingVersion(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/ping" && r.Method == "GET" {
			w.Header().Set("X-Streamwatch-Version", "versionStr")
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, version, err := c.Ping()
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := "versionStr", version; exp != got {
		t.Errorf("unexpected version: got: %s exp: %s", got, exp)
	}
}

func Test_Ping_Credentials(t *testing.T) {
	testCases := []struct {
		name  string
		creds client.Credentials
		check func(r *http.Request) bool
	}{
		{
			name: "user",
			creds: client.Credentials{
				Method:   client.UserAuthentication,
				Username: "bob",
				Password: "don't look",
			},
			check: func(r *http.Request) bool {
				u, p, ok := r.BasicAuth()
				return ok && u == "bob" && p == "don't look"
			},
		},
		{
			name: "bearer",
			creds: client.Credentials{
				Method: client.BearerAuthentication,
				Token:  "myToken",
			},
			check: func(r *http.Request) bool {
				return r.Header.Get("Authorization") == "Bearer myToken"
			},
		},
	}
	for _, tc := range testCases {
		check := tc.check
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/streamwatch/v1/ping" && r.Method == "GET" && check(r) {
				w.WriteHeader(http.StatusNoContent)
			} else {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprintf(w, `{"error":"unauthorized"}`)
			}
		}))
		defer ts.Close()

		creds := tc.creds
		c, err := client.New(client.Config{
			URL:         ts.URL,
			Credentials: &creds,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := c.Ping(); err != nil {
			t.Errorf("%s: unexpected ping error: %v", tc.name, err)
		}
	}
}

func Test_LogLevel(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.LogLevelOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/loglevel" && r.Method == "POST" && opts.Level == "DEBUG" {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := c.LogLevel("DEBUG"); err != nil {
		t.Fatal(err)
	}
}

func Test_CreateStream(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.CreateStreamOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/streams" && r.Method == "POST" &&
			opts.Title == "Behavior events" {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{
	"link": {"rel":"self","href":"/streamwatch/v1/streams/s-1"},
	"id": "s-1",
	"title": "Behavior events",
	"description": "clicks and views",
	"created_at": "2024-02-14T09:00:00Z",
	"creator_user_id": "bob",
	"disabled": false
}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	stream, err := c.CreateStream(client.CreateStreamOptions{
		Title:       "Behavior events",
		Description: "clicks and views",
	})
	if err != nil {
		t.Fatal(err)
	}
	exp := client.Stream{
		Link:          c.StreamLink("s-1"),
		ID:            "s-1",
		Title:         "Behavior events",
		Description:   "clicks and views",
		CreatedAt:     time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC),
		CreatorUserID: "bob",
	}
	if !reflect.DeepEqual(exp, stream) {
		t.Errorf("unexpected stream: got:\n%v\nexp:\n%v", stream, exp)
	}
}

func Test_ListStreams(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/streams" && r.Method == "GET" &&
			r.URL.Query().Get("pattern") == "" &&
			r.URL.Query().Get("offset") == "0" &&
			r.URL.Query().Get("limit") == "100" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
"streams":[
	{
		"id": "s-1",
		"title": "Behavior events",
		"created_at": "2024-02-14T09:00:00Z",
		"creator_user_id": "bob"
	},
	{
		"id": "s-2",
		"title": "System logs",
		"created_at": "2024-02-14T10:00:00Z",
		"creator_user_id": "bob",
		"disabled": true
	}
]}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	streams, err := c.ListStreams(nil)
	if err != nil {
		t.Fatal(err)
	}
	exp := []client.Stream{
		{
			ID:            "s-1",
			Title:         "Behavior events",
			CreatedAt:     time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC),
			CreatorUserID: "bob",
		},
		{
			ID:            "s-2",
			Title:         "System logs",
			CreatedAt:     time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC),
			CreatorUserID: "bob",
			Disabled:      true,
		},
	}
	if !reflect.DeepEqual(exp, streams) {
		t.Errorf("unexpected stream list: got:\n%v\nexp:\n%v", streams, exp)
	}
}

func Test_UpdateStream(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.UpdateStreamOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/streams/s-1" && r.Method == "PUT" &&
			opts.Title == "Behavior events" && opts.Disabled {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
	"id": "s-1",
	"title": "Behavior events",
	"created_at": "2024-02-14T09:00:00Z",
	"creator_user_id": "bob",
	"disabled": true
}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	stream, err := c.UpdateStream(c.StreamLink("s-1"), client.UpdateStreamOptions{
		Title:    "Behavior events",
		Disabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !stream.Disabled {
		t.Errorf("expected stream to be disabled: got %+v", stream)
	}
}

func Test_DeleteStream(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/streams/s-1" && r.Method == "DELETE" {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := c.DeleteStream(c.StreamLink("s-1")); err != nil {
		t.Fatal(err)
	}
}

func Test_CreateCondition(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.CreateConditionOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/streams/s-1/alerts/conditions" && r.Method == "POST" &&
			opts.Type == "field_value" &&
			opts.Title == "High error rate" &&
			opts.Parameters["field"] == "errors" {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"alert_condition_id":"cond-1"}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	id, err := c.CreateCondition("s-1", client.CreateConditionOptions{
		Type:  "field_value",
		Title: "High error rate",
		Parameters: map[string]interface{}{
			"field": "errors",
			"value": 10,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := "cond-1", id; exp != got {
		t.Errorf("unexpected condition id: got: %s exp: %s", got, exp)
	}
}

func Test_ListConditions(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/streams/s-1/alerts/conditions" && r.Method == "GET" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
"total": 2,
"conditions":[
	{
		"id": "cond-1",
		"stream_id": "s-1",
		"type": "field_value",
		"title": "High error rate",
		"parameters": {"field":"errors","value":10,"threshold_type":"higher","backlog":5,"grace":0,"time":5},
		"created_at": "2024-02-14T09:00:00Z",
		"creator_user_id": "bob",
		"in_grace_period": false
	},
	{
		"id": "cond-2",
		"stream_id": "s-1",
		"type": "message_count",
		"title": "Too quiet",
		"parameters": {"threshold":1,"threshold_type":"less","backlog":5,"grace":10,"time":5},
		"created_at": "2024-02-14T09:30:00Z",
		"creator_user_id": "bob",
		"in_grace_period": true
	}
]}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	conditions, err := c.ListConditions("s-1")
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := 2, conditions.Total; exp != got {
		t.Errorf("unexpected total: got: %d exp: %d", got, exp)
	}
	if exp, got := 2, len(conditions.Conditions); exp != got {
		t.Fatalf("unexpected condition count: got: %d exp: %d", got, exp)
	}
	if exp, got := "cond-1", conditions.Conditions[0].ID; exp != got {
		t.Errorf("unexpected first condition: got: %s exp: %s", got, exp)
	}
	if !conditions.Conditions[1].InGracePeriod {
		t.Errorf("expected cond-2 to be in its grace period: got %+v", conditions.Conditions[1])
	}
}

func Test_UpdateCondition(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.UpdateConditionOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/streams/s-1/alerts/conditions/cond-1" && r.Method == "PUT" &&
			opts.Type == "field_value" && opts.Title == "Renamed" {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = c.UpdateCondition(c.ConditionLink("s-1", "cond-1"), client.UpdateConditionOptions{
		Type:  "field_value",
		Title: "Renamed",
		Parameters: map[string]interface{}{
			"field": "errors",
			"value": 10,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func Test_PatchCondition(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		patch := client.JSONPatch{}
		json.NewDecoder(r.Body).Decode(&patch)
		if r.URL.Path == "/streamwatch/v1/streams/s-1/alerts/conditions/cond-1" && r.Method == "PATCH" &&
			len(patch) == 1 &&
			patch[0].Operation == "replace" &&
			patch[0].Path == "/title" {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = c.PatchCondition(c.ConditionLink("s-1", "cond-1"), client.JSONPatch{
		{Operation: "replace", Path: "/title", Value: "Renamed"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func Test_DeleteCondition(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/streams/s-1/alerts/conditions/cond-1" && r.Method == "DELETE" {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := c.DeleteCondition(c.ConditionLink("s-1", "cond-1")); err != nil {
		t.Fatal(err)
	}
}

func Test_RecordTrigger(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.RecordTriggerOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/streams/s-1/alerts/conditions/cond-1/triggers" && r.Method == "POST" &&
			opts.Description == "value 15 over threshold 10" {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{
	"id": "trig-1",
	"condition_id": "cond-1",
	"stream_id": "s-1",
	"triggered_at": "2024-02-14T09:05:00Z",
	"description": "value 15 over threshold 10"
}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	trigger, err := c.RecordTrigger("s-1", "cond-1", client.RecordTriggerOptions{
		Description: "value 15 over threshold 10",
	})
	if err != nil {
		t.Fatal(err)
	}
	exp := client.Trigger{
		ID:          "trig-1",
		ConditionID: "cond-1",
		StreamID:    "s-1",
		TriggeredAt: time.Date(2024, 2, 14, 9, 5, 0, 0, time.UTC),
		Description: "value 15 over threshold 10",
	}
	if !reflect.DeepEqual(exp, trigger) {
		t.Errorf("unexpected trigger: got:\n%v\nexp:\n%v", trigger, exp)
	}
}

func Test_ListTriggers(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/streams/s-1/alerts/conditions/cond-1/triggers" && r.Method == "GET" &&
			r.URL.Query().Get("offset") == "10" &&
			r.URL.Query().Get("limit") == "5" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
"triggers":[
	{
		"id": "trig-11",
		"condition_id": "cond-1",
		"stream_id": "s-1",
		"triggered_at": "2024-02-14T09:05:00Z",
		"description": "still firing"
	}
]}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	triggers, err := c.ListTriggers("s-1", "cond-1", &client.ListTriggersOptions{
		Offset: 10,
		Limit:  5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := 1, len(triggers); exp != got {
		t.Fatalf("unexpected trigger count: got: %d exp: %d", got, exp)
	}
	if exp, got := "trig-11", triggers[0].ID; exp != got {
		t.Errorf("unexpected trigger id: got: %s exp: %s", got, exp)
	}
}

func Test_CreateUser(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.CreateUserOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/users" && r.Method == "POST" &&
			opts.Name == "bob" &&
			opts.Type == client.NormalUser {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
	"link": {"rel":"self","href":"/streamwatch/v1/users/bob"},
	"name": "bob",
	"type": "normal",
	"permissions": ["api","streams"]
}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	user, err := c.CreateUser(client.CreateUserOptions{
		Name:        "bob",
		Password:    "secret",
		Type:        client.NormalUser,
		Permissions: []client.Permission{client.APIPermission, client.StreamsPermission},
	})
	if err != nil {
		t.Fatal(err)
	}
	exp := client.User{
		Link:        c.UserLink("bob"),
		Name:        "bob",
		Type:        client.NormalUser,
		Permissions: []client.Permission{client.APIPermission, client.StreamsPermission},
	}
	if !reflect.DeepEqual(exp, user) {
		t.Errorf("unexpected user: got:\n%v\nexp:\n%v", user, exp)
	}
}

func Test_ListUsers(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/users" && r.Method == "GET" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
"users":[
	{"name":"admin","type":"admin","permissions":[]},
	{"name":"bob","type":"normal","permissions":["streams"]}
]}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	users, err := c.ListUsers()
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := 2, len(users); exp != got {
		t.Fatalf("unexpected user count: got: %d exp: %d", got, exp)
	}
	if exp, got := client.AdminUser, users[0].Type; exp != got {
		t.Errorf("unexpected user type: got: %v exp: %v", got, exp)
	}
}

func Test_ListStorage(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/streamwatch/v1/storage/stores" && r.Method == "GET" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{
"link": {"rel":"self","href":"/streamwatch/v1/storage/stores"},
"storage":[
	{"link":{"rel":"self","href":"/streamwatch/v1/storage/stores/stream_store"},"name":"stream_store"},
	{"link":{"rel":"self","href":"/streamwatch/v1/storage/stores/condition_store"},"name":"condition_store"}
]}`)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	list, err := c.ListStorage()
	if err != nil {
		t.Fatal(err)
	}
	if exp, got := 2, len(list.Storage); exp != got {
		t.Fatalf("unexpected store count: got: %d exp: %d", got, exp)
	}
	if exp, got := "stream_store", list.Storage[0].Name; exp != got {
		t.Errorf("unexpected store name: got: %s exp: %s", got, exp)
	}
}

func Test_DoStorageAction(t *testing.T) {
	s, c, err := newClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts := client.StorageActionOptions{}
		json.NewDecoder(r.Body).Decode(&opts)
		if r.URL.Path == "/streamwatch/v1/storage/stores/stream_store" && r.Method == "POST" &&
			opts.Action == client.StorageRebuild {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "request: %v", r)
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = c.DoStorageAction(c.StorageLink("stream_store"), client.StorageActionOptions{
		Action: client.StorageRebuild,
	})
	if err != nil {
		t.Fatal(err)
	}
}
