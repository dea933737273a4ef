package httpd

import (
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/influxdata/httprouter"
	"github.com/streamwatch/streamwatch/auth"
)

type diagnostic struct{}

func (diagnostic) NewHTTPServerErrorLogger() *log.Logger {
	return log.New(ioutil.Discard, "", log.LstdFlags)
}
func (diagnostic) StartingService()                      {}
func (diagnostic) StoppedService()                       {}
func (diagnostic) ShutdownTimeout()                      {}
func (diagnostic) AuthenticationEnabled(enabled bool)    {}
func (diagnostic) ListeningOn(addr string, proto string) {}
func (diagnostic) HTTP(
	host string,
	username string,
	start time.Time,
	method string,
	uri string,
	proto string,
	status int,
	referer string,
	userAgent string,
	reqID string,
	duration time.Duration,
) {
}
func (diagnostic) Error(msg string, err error) {}
func (diagnostic) RecoveryError(
	msg string,
	err string,
	host string,
	username string,
	start time.Time,
	method string,
	uri string,
	proto string,
	status int,
	referer string,
	userAgent string,
	reqID string,
	duration time.Duration,
) {
}

func Test_RequiredPrivilegeForHTTPMethod(t *testing.T) {
	testCases := []struct {
		m   string
		rp  auth.Privilege
		err error
	}{
		{
			m:   "GET",
			rp:  auth.ReadPrivilege,
			err: nil,
		},
		{
			m:   "get",
			rp:  auth.ReadPrivilege,
			err: nil,
		},
		{
			m:   "HEAD",
			rp:  auth.NoPrivileges,
			err: nil,
		},
		{
			m:   "head",
			rp:  auth.NoPrivileges,
			err: nil,
		},
		{
			m:   "OPTIONS",
			rp:  auth.NoPrivileges,
			err: nil,
		},
		{
			m:   "options",
			rp:  auth.NoPrivileges,
			err: nil,
		},
		{
			m:   "POST",
			rp:  auth.WritePrivilege,
			err: nil,
		},
		{
			m:   "post",
			rp:  auth.WritePrivilege,
			err: nil,
		},
		{
			m:   "PUT",
			rp:  auth.WritePrivilege,
			err: nil,
		},
		{
			m:   "put",
			rp:  auth.WritePrivilege,
			err: nil,
		},
		{
			m:   "PATCH",
			rp:  auth.WritePrivilege,
			err: nil,
		},
		{
			m:   "patch",
			rp:  auth.WritePrivilege,
			err: nil,
		},
		{
			m:   "DELETE",
			rp:  auth.DeletePrivilege,
			err: nil,
		},
		{
			m:   "delete",
			rp:  auth.DeletePrivilege,
			err: nil,
		},
		{
			m:   "TRACE",
			err: errors.New(`unknown method "TRACE"`),
		},
	}

	for _, tc := range testCases {
		got, err := requiredPrivilegeForHTTPMethod(tc.m)
		if err != nil {
			if tc.err == nil {
				t.Errorf("unexpected error: got %v", err)
			} else if tc.err.Error() != err.Error() {
				t.Errorf("unexpected error message: got %q exp %q", err.Error(), tc.err.Error())
			}
		} else {
			if tc.err != nil {
				t.Errorf("expected error: %q got nil", tc.err.Error())
				continue
			}
			if got != tc.rp {
				t.Errorf("unexpected required privilege: got %v exp %v", got, tc.rp)
			}
		}
	}
}

func newTestHandler(requireAuthentication bool, secret string) *Handler {
	h := NewHandler(
		requireAuthentication,
		false,
		false,
		false,
		diagnostic{},
		secret,
	)
	h.Version = "testing"
	return h
}

func TestHandler_Routes(t *testing.T) {
	h := newTestHandler(false, "")

	r := Route{
		Method:  "GET",
		Pattern: "/conditions/:id",
		HandlerFunc: func(w http.ResponseWriter, r *http.Request) {
			id := httprouter.ParamsFromContext(r.Context()).ByName("id")
			w.Write([]byte(id))
		},
	}
	if err := h.AddRoute(r); err != nil {
		t.Fatal(err)
	}
	if err := h.AddRoute(r); err == nil {
		t.Fatal("expected error adding duplicate route")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", BasePath+"/conditions/abc", nil))
	if got, exp := w.Code, http.StatusOK; got != exp {
		t.Fatalf("unexpected status: got %d exp %d", got, exp)
	}
	if got, exp := w.Body.String(), "abc"; got != exp {
		t.Errorf("unexpected body: got %q exp %q", got, exp)
	}
	if got, exp := w.Header().Get("X-Streamwatch-Version"), "testing"; got != exp {
		t.Errorf("unexpected version header: got %q exp %q", got, exp)
	}
	if w.Header().Get("Request-Id") == "" {
		t.Error("expected a Request-Id header")
	}

	h.DelRoutes([]Route{r})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", BasePath+"/conditions/abc", nil))
	if got, exp := w.Code, http.StatusNotFound; got != exp {
		t.Fatalf("unexpected status after DelRoutes: got %d exp %d", got, exp)
	}
}

func TestHandler_Ping(t *testing.T) {
	h := newTestHandler(false, "")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", BasePath+"/ping", nil))
	if got, exp := w.Code, http.StatusNoContent; got != exp {
		t.Fatalf("unexpected ping status: got %d exp %d", got, exp)
	}
}

type authService struct {
	users map[string]auth.User
}

func (a authService) Authenticate(username, password string) (auth.User, error) {
	if password != "secret-pass" {
		return auth.User{}, auth.ErrAuthenticate
	}
	return a.User(username)
}

func (a authService) User(username string) (auth.User, error) {
	u, ok := a.users[username]
	if !ok {
		return auth.User{}, fmt.Errorf("unknown user %s", username)
	}
	return u, nil
}

func TestHandler_Authenticate_Bearer(t *testing.T) {
	secret := "shhh, its a secret"
	h := newTestHandler(true, secret)
	h.AuthService = authService{
		users: map[string]auth.User{
			"bob": auth.NewUser("bob", nil, false, map[string][]auth.Privilege{
				"/conditions": {auth.ReadPrivilege},
			}),
		},
	}

	var gotUser string
	r := Route{
		Method:  "GET",
		Pattern: "/conditions",
		HandlerFunc: func(w http.ResponseWriter, r *http.Request, user auth.User) {
			gotUser = user.Name()
			w.WriteHeader(http.StatusOK)
		},
	}
	if err := h.AddRoute(r); err != nil {
		t.Fatal(err)
	}

	signToken := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
		signed, err := token.SignedString([]byte(secret))
		if err != nil {
			t.Fatal(err)
		}
		return signed
	}

	testCases := []struct {
		name   string
		token  string
		code   int
		expUsr string
	}{
		{
			name: "valid token",
			token: signToken(jwt.MapClaims{
				"username": "bob",
				"exp":      time.Now().Add(time.Minute).Unix(),
			}),
			code:   http.StatusOK,
			expUsr: "bob",
		},
		{
			name: "expired token",
			token: signToken(jwt.MapClaims{
				"username": "bob",
				"exp":      time.Now().Add(-time.Minute).Unix(),
			}),
			code: http.StatusUnauthorized,
		},
		{
			name: "missing expiration",
			token: signToken(jwt.MapClaims{
				"username": "bob",
			}),
			code: http.StatusUnauthorized,
		},
		{
			name: "missing username",
			token: signToken(jwt.MapClaims{
				"exp": time.Now().Add(time.Minute).Unix(),
			}),
			code: http.StatusUnauthorized,
		},
		{
			name: "unknown user",
			token: signToken(jwt.MapClaims{
				"username": "alice",
				"exp":      time.Now().Add(time.Minute).Unix(),
			}),
			code: http.StatusUnauthorized,
		},
		{
			name:  "garbage token",
			token: "not.a.token",
			code:  http.StatusUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotUser = ""
			req := httptest.NewRequest("GET", BasePath+"/conditions", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if got, exp := w.Code, tc.code; got != exp {
				t.Fatalf("unexpected status: got %d exp %d body %s", got, exp, w.Body.String())
			}
			if got, exp := gotUser, tc.expUsr; got != exp {
				t.Errorf("unexpected authenticated user: got %q exp %q", got, exp)
			}
		})
	}
}

func TestHandler_Authenticate_Basic(t *testing.T) {
	h := newTestHandler(true, "")
	h.AuthService = authService{
		users: map[string]auth.User{
			"bob": auth.NewUser("bob", nil, false, map[string][]auth.Privilege{
				"/conditions": {auth.ReadPrivilege},
			}),
		},
	}

	if err := h.AddRoute(Route{
		Method:  "GET",
		Pattern: "/conditions",
		HandlerFunc: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", BasePath+"/conditions", nil)
	req.SetBasicAuth("bob", "secret-pass")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got, exp := w.Code, http.StatusOK; got != exp {
		t.Fatalf("unexpected status: got %d exp %d body %s", got, exp, w.Body.String())
	}

	// Wrong password
	req = httptest.NewRequest("GET", BasePath+"/conditions", nil)
	req.SetBasicAuth("bob", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got, exp := w.Code, http.StatusUnauthorized; got != exp {
		t.Fatalf("unexpected status: got %d exp %d", got, exp)
	}

	// No credentials at all
	req = httptest.NewRequest("GET", BasePath+"/conditions", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got, exp := w.Code, http.StatusUnauthorized; got != exp {
		t.Fatalf("unexpected status: got %d exp %d", got, exp)
	}
}

func TestHandler_Authorize_Privileges(t *testing.T) {
	h := newTestHandler(true, "")
	h.AuthService = authService{
		users: map[string]auth.User{
			"reader": auth.NewUser("reader", nil, false, map[string][]auth.Privilege{
				"/conditions": {auth.ReadPrivilege},
			}),
		},
	}

	routes := []Route{
		{
			Method:  "GET",
			Pattern: "/conditions",
			HandlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
		},
		{
			Method:  "PUT",
			Pattern: "/conditions",
			HandlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
		},
	}
	if err := h.AddRoutes(routes); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", BasePath+"/conditions", nil)
	req.SetBasicAuth("reader", "secret-pass")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got, exp := w.Code, http.StatusOK; got != exp {
		t.Fatalf("unexpected read status: got %d exp %d", got, exp)
	}

	// A reader must not be able to write.
	req = httptest.NewRequest("PUT", BasePath+"/conditions", nil)
	req.SetBasicAuth("reader", "secret-pass")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got, exp := w.Code, http.StatusForbidden; got != exp {
		t.Fatalf("unexpected write status: got %d exp %d", got, exp)
	}
}
