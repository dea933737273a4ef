// Streamwatch HTTP API client written in Go
package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	khttp "github.com/streamwatch/streamwatch/http"
)

const DefaultUserAgent = "StreamwatchClient"

const basePath = "/streamwatch/v1"

// AuthenticationMethod defines the type of authentication used.
type AuthenticationMethod int

// Supported authentication methods.
const (
	_ AuthenticationMethod = iota
	UserAuthentication
	BearerAuthentication
)

// Set of credentials for authenticating with the server.
type Credentials struct {
	Method AuthenticationMethod

	// UserAuthentication fields
	Username string
	Password string

	// BearerAuthentication fields
	Token string
}

func (c Credentials) Validate() error {
	switch c.Method {
	case UserAuthentication:
		if c.Username == "" {
			return errors.New("missing username")
		}
		if c.Password == "" {
			return errors.New("missing password")
		}
	case BearerAuthentication:
		if c.Token == "" {
			return errors.New("missing token")
		}
	default:
		return errors.New("missing authentication method")
	}
	return nil
}

// HTTP configuration for connecting to Streamwatch.
type Config struct {
	// The URL of the Streamwatch server.
	URL string

	// Timeout for API requests, defaults to no timeout.
	Timeout time.Duration

	// UserAgent is the http User Agent, defaults to "StreamwatchClient".
	UserAgent string

	// InsecureSkipVerify gets passed to the http client, if true, it will
	// skip https certificate verification. Defaults to false.
	InsecureSkipVerify bool

	// TLSConfig allows the user to set their own TLS config for the HTTP
	// Client. If set, this option overrides InsecureSkipVerify.
	TLSConfig *tls.Config

	// Optional credentials for authenticating with the server.
	Credentials *Credentials
}

// Basic HTTP client
type Client struct {
	url         *url.URL
	userAgent   string
	httpClient  *http.Client
	credentials *Credentials
}

// Create a new client.
func New(conf Config) (*Client, error) {
	if conf.UserAgent == "" {
		conf.UserAgent = DefaultUserAgent
	}

	u, err := url.Parse(conf.URL)
	if err != nil {
		return nil, err
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf(
			"Unsupported protocol scheme: %s, your address must start with http:// or https://",
			u.Scheme,
		)
	}

	if conf.Credentials != nil {
		if err := conf.Credentials.Validate(); err != nil {
			return nil, fmt.Errorf("invalid credentials: %v", err)
		}
	}

	tlsConfig := conf.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: conf.InsecureSkipVerify,
		}
	}
	tr := khttp.NewDefaultTransportWithTLS(tlsConfig)
	return &Client{
		url:       u,
		userAgent: conf.UserAgent,
		httpClient: &http.Client{
			Timeout:   conf.Timeout,
			Transport: tr,
		},
		credentials: conf.Credentials,
	}, nil
}

type Relation int

const (
	Self Relation = iota
)

func (r Relation) MarshalText() ([]byte, error) {
	switch r {
	case Self:
		return []byte("self"), nil
	default:
		return nil, fmt.Errorf("unknown Relation %d", int(r))
	}
}

func (r *Relation) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "self":
		*r = Self
	default:
		return fmt.Errorf("unknown Relation %s", s)
	}
	return nil
}

func (r Relation) String() string {
	s, err := r.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(s)
}

type Link struct {
	Relation Relation `json:"rel"`
	Href     string   `json:"href"`
}

//--------------------------------------------------------------------
// Streams

// Stream is a logical grouping of messages that alert conditions bind to.
type Stream struct {
	Link          Link      `json:"link"`
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	CreatorUserID string    `json:"creator_user_id"`
	Disabled      bool      `json:"disabled"`
}

type Streams struct {
	Streams []Stream `json:"streams"`
}

type CreateStreamOptions struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateStreamOptions struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Disabled    bool   `json:"disabled"`
}

type ListStreamsOptions struct {
	Pattern string
	Offset  int
	Limit   int
}

func (o *ListStreamsOptions) Default() {
	if o.Limit == 0 {
		o.Limit = 100
	}
}

func (o *ListStreamsOptions) Values() *url.Values {
	v := &url.Values{}
	v.Set("pattern", o.Pattern)
	v.Set("offset", strconv.Itoa(o.Offset))
	v.Set("limit", strconv.Itoa(o.Limit))
	return v
}

//--------------------------------------------------------------------
// Alert conditions

// Condition is the summary of an alert condition as reported by the API.
type Condition struct {
	ID            string                 `json:"id"`
	StreamID      string                 `json:"stream_id"`
	Type          string                 `json:"type"`
	Title         string                 `json:"title"`
	Parameters    map[string]interface{} `json:"parameters"`
	CreatedAt     time.Time              `json:"created_at"`
	CreatorUserID string                 `json:"creator_user_id"`
	InGracePeriod bool                   `json:"in_grace_period"`
}

type Conditions struct {
	Total      int         `json:"total"`
	Conditions []Condition `json:"conditions"`
}

type CreateConditionOptions struct {
	Type       string                 `json:"type"`
	Title      string                 `json:"title"`
	Parameters map[string]interface{} `json:"parameters"`
}

type UpdateConditionOptions struct {
	Type       string                 `json:"type"`
	Title      string                 `json:"title"`
	Parameters map[string]interface{} `json:"parameters"`
}

type CreateConditionResponse struct {
	AlertConditionID string `json:"alert_condition_id"`
}

// PatchOperation is a single RFC 6902 JSON patch operation.
type PatchOperation struct {
	Operation string      `json:"op"`
	Path      string      `json:"path"`
	Value     interface{} `json:"value,omitempty"`
}

type JSONPatch []PatchOperation

//--------------------------------------------------------------------
// Triggers

// Trigger is one recorded firing of an alert condition.
type Trigger struct {
	ID          string    `json:"id"`
	ConditionID string    `json:"condition_id"`
	StreamID    string    `json:"stream_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	Description string    `json:"description"`
}

type Triggers struct {
	Triggers []Trigger `json:"triggers"`
}

type RecordTriggerOptions struct {
	Description string    `json:"description"`
	TriggeredAt time.Time `json:"triggered_at,omitempty"`
}

type ListTriggersOptions struct {
	Offset int
	Limit  int
}

func (o *ListTriggersOptions) Default() {
	if o.Limit == 0 {
		o.Limit = 100
	}
}

func (o *ListTriggersOptions) Values() *url.Values {
	v := &url.Values{}
	v.Set("offset", strconv.Itoa(o.Offset))
	v.Set("limit", strconv.Itoa(o.Limit))
	return v
}

//--------------------------------------------------------------------
// Users

type UserType int

const (
	InvalidUser UserType = iota
	NormalUser
	AdminUser
)

func (ut UserType) MarshalText() ([]byte, error) {
	switch ut {
	case NormalUser:
		return []byte("normal"), nil
	case AdminUser:
		return []byte("admin"), nil
	case InvalidUser:
		return []byte("invalid"), nil
	default:
		return nil, fmt.Errorf("unknown UserType %d", int(ut))
	}
}

func (ut *UserType) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "normal":
		*ut = NormalUser
	case "admin":
		*ut = AdminUser
	case "invalid":
		*ut = InvalidUser
	default:
		return fmt.Errorf("unknown UserType %s", s)
	}
	return nil
}

func (ut UserType) String() string {
	s, err := ut.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(s)
}

type Permission int

const (
	NoPermissions Permission = iota
	APIPermission
	StreamsPermission
	AllPermissions
)

func (p Permission) MarshalText() ([]byte, error) {
	switch p {
	case NoPermissions:
		return []byte("none"), nil
	case APIPermission:
		return []byte("api"), nil
	case StreamsPermission:
		return []byte("streams"), nil
	case AllPermissions:
		return []byte("all"), nil
	default:
		return nil, fmt.Errorf("unknown Permission %d", int(p))
	}
}

func (p *Permission) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "none":
		*p = NoPermissions
	case "api":
		*p = APIPermission
	case "streams":
		*p = StreamsPermission
	case "all":
		*p = AllPermissions
	default:
		return fmt.Errorf("unknown Permission %s", s)
	}
	return nil
}

func (p Permission) String() string {
	s, err := p.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(s)
}

type User struct {
	Link        Link         `json:"link"`
	Name        string       `json:"name"`
	Type        UserType     `json:"type"`
	Permissions []Permission `json:"permissions"`
}

type Users struct {
	Users []User `json:"users"`
}

type CreateUserOptions struct {
	Name        string       `json:"name"`
	Password    string       `json:"password"`
	Type        UserType     `json:"type"`
	Permissions []Permission `json:"permissions"`
}

type UpdateUserOptions struct {
	Password    string       `json:"password"`
	Type        UserType     `json:"type"`
	Permissions []Permission `json:"permissions"`
}

//--------------------------------------------------------------------
// Storage

type Storage struct {
	Link Link   `json:"link"`
	Name string `json:"name"`
}

type StorageList struct {
	Link    Link      `json:"link"`
	Storage []Storage `json:"storage"`
}

type StorageAction int

const (
	_ StorageAction = iota
	StorageRebuild
)

func (sa StorageAction) MarshalText() ([]byte, error) {
	switch sa {
	case StorageRebuild:
		return []byte("rebuild"), nil
	default:
		return nil, fmt.Errorf("unknown StorageAction %d", int(sa))
	}
}

func (sa *StorageAction) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "rebuild":
		*sa = StorageRebuild
	default:
		return fmt.Errorf("unknown StorageAction %s", s)
	}
	return nil
}

func (sa StorageAction) String() string {
	s, err := sa.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(s)
}

type StorageActionOptions struct {
	Action StorageAction `json:"action"`
}

//--------------------------------------------------------------------
// Misc

type LogLevelOptions struct {
	Level string `json:"level"`
}

//--------------------------------------------------------------------
// Links

func (c *Client) StreamLink(id string) Link {
	return Link{Relation: Self, Href: path.Join(basePath, "streams", id)}
}

func (c *Client) ConditionsLink(streamID string) Link {
	return Link{Relation: Self, Href: path.Join(basePath, "streams", streamID, "alerts", "conditions")}
}

func (c *Client) ConditionLink(streamID, conditionID string) Link {
	return Link{Relation: Self, Href: path.Join(basePath, "streams", streamID, "alerts", "conditions", conditionID)}
}

func (c *Client) TriggersLink(streamID, conditionID string) Link {
	return Link{Relation: Self, Href: path.Join(basePath, "streams", streamID, "alerts", "conditions", conditionID, "triggers")}
}

func (c *Client) UserLink(username string) Link {
	return Link{Relation: Self, Href: path.Join(basePath, "users", username)}
}

func (c *Client) StorageLink(name string) Link {
	return Link{Relation: Self, Href: path.Join(basePath, "storage", "stores", name)}
}

func (c *Client) URL() string {
	return c.url.String()
}

func (c *Client) BaseURL() url.URL {
	u := *c.url
	u.Path = basePath
	return u
}

func (c *Client) prepRequest(req *http.Request) error {
	req.Header.Set("User-Agent", c.userAgent)
	if c.credentials != nil {
		switch c.credentials.Method {
		case UserAuthentication:
			req.SetBasicAuth(c.credentials.Username, c.credentials.Password)
		case BearerAuthentication:
			req.Header.Set("Authorization", "Bearer "+c.credentials.Token)
		default:
			return errors.New("unknown authentication method set")
		}
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	type errResp struct {
		Error string `json:"error"`
	}
	d := json.NewDecoder(bytes.NewReader(body))
	rp := errResp{}
	d.Decode(&rp)
	if rp.Error != "" {
		return errors.New(rp.Error)
	}
	return fmt.Errorf("invalid response: code %d: body: %s", resp.StatusCode, string(body))
}

// Perform the request.
// If result is not nil the response body is JSON decoded into result.
// Codes is a list of valid response codes.
func (c *Client) do(req *http.Request, result interface{}, codes ...int) (*http.Response, error) {
	if err := c.prepRequest(req); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	valid := false
	for _, code := range codes {
		if resp.StatusCode == code {
			valid = true
			break
		}
	}
	if !valid {
		return nil, c.decodeError(resp)
	}
	if result != nil {
		d := json.NewDecoder(resp.Body)
		if err := d.Decode(result); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %v", err)
		}
	}
	return resp, nil
}

// Ping the server for a response.
// Ping returns how long the request took, the version of the server it connected to, and an error if one occurred.
func (c *Client) Ping() (time.Duration, string, error) {
	now := time.Now()
	u := *c.url
	u.Path = path.Join(basePath, "ping")

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return 0, "", err
	}

	resp, err := c.do(req, nil, http.StatusNoContent)
	if err != nil {
		return 0, "", err
	}
	version := resp.Header.Get("X-Streamwatch-Version")
	return time.Since(now), version, nil
}

// Set the logging level of the server.
// Level must be one of DEBUG, INFO, WARN or ERROR.
func (c *Client) LogLevel(level string) error {
	u := *c.url
	u.Path = path.Join(basePath, "loglevel")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(LogLevelOptions{Level: level}); err != nil {
		return err
	}

	req, err := http.NewRequest("POST", u.String(), &buf)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}

//--------------------------------------------------------------------
// Stream methods

// CreateStream registers a new stream.
func (c *Client) CreateStream(opts CreateStreamOptions) (Stream, error) {
	stream := Stream{}
	u := *c.url
	u.Path = path.Join(basePath, "streams")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return stream, err
	}

	req, err := http.NewRequest("POST", u.String(), &buf)
	if err != nil {
		return stream, err
	}

	_, err = c.do(req, &stream, http.StatusCreated)
	return stream, err
}

// Stream fetches one stream by its link.
func (c *Client) Stream(link Link) (Stream, error) {
	stream := Stream{}
	if link.Href == "" {
		return stream, fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return stream, err
	}

	_, err = c.do(req, &stream, http.StatusOK)
	return stream, err
}

// ListStreams returns the registered streams.
func (c *Client) ListStreams(opts *ListStreamsOptions) ([]Stream, error) {
	if opts == nil {
		opts = new(ListStreamsOptions)
	}
	opts.Default()

	u := *c.url
	u.Path = path.Join(basePath, "streams")
	u.RawQuery = opts.Values().Encode()

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, err
	}

	streams := Streams{}
	_, err = c.do(req, &streams, http.StatusOK)
	return streams.Streams, err
}

// UpdateStream replaces the mutable fields of a stream.
func (c *Client) UpdateStream(link Link, opts UpdateStreamOptions) (Stream, error) {
	stream := Stream{}
	if link.Href == "" {
		return stream, fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return stream, err
	}

	req, err := http.NewRequest("PUT", u.String(), &buf)
	if err != nil {
		return stream, err
	}

	_, err = c.do(req, &stream, http.StatusOK)
	return stream, err
}

// DeleteStream removes a stream and all of its alert conditions.
func (c *Client) DeleteStream(link Link) error {
	if link.Href == "" {
		return fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	req, err := http.NewRequest("DELETE", u.String(), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}

//--------------------------------------------------------------------
// Condition methods

// CreateCondition registers a new alert condition on a stream and
// returns the id assigned to it.
func (c *Client) CreateCondition(streamID string, opts CreateConditionOptions) (string, error) {
	u := *c.url
	u.Path = c.ConditionsLink(streamID).Href

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", u.String(), &buf)
	if err != nil {
		return "", err
	}

	res := CreateConditionResponse{}
	_, err = c.do(req, &res, http.StatusCreated)
	return res.AlertConditionID, err
}

// Condition fetches the summary of one alert condition.
func (c *Client) Condition(link Link) (Condition, error) {
	condition := Condition{}
	if link.Href == "" {
		return condition, fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return condition, err
	}

	_, err = c.do(req, &condition, http.StatusOK)
	return condition, err
}

// ListConditions returns the alert conditions of a stream in the order
// they were created.
func (c *Client) ListConditions(streamID string) (Conditions, error) {
	conditions := Conditions{}
	u := *c.url
	u.Path = c.ConditionsLink(streamID).Href

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return conditions, err
	}

	_, err = c.do(req, &conditions, http.StatusOK)
	return conditions, err
}

// UpdateCondition replaces the parameters, title and type-scoped fields
// of an alert condition.
func (c *Client) UpdateCondition(link Link, opts UpdateConditionOptions) error {
	if link.Href == "" {
		return fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return err
	}

	req, err := http.NewRequest("PUT", u.String(), &buf)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}

// PatchCondition applies an RFC 6902 JSON patch to the update document
// of an alert condition.
func (c *Client) PatchCondition(link Link, patch JSONPatch) error {
	if link.Href == "" {
		return fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(patch); err != nil {
		return err
	}

	req, err := http.NewRequest("PATCH", u.String(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json+patch")
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}

// DeleteCondition removes an alert condition and its trigger history.
func (c *Client) DeleteCondition(link Link) error {
	if link.Href == "" {
		return fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	req, err := http.NewRequest("DELETE", u.String(), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}

//--------------------------------------------------------------------
// Trigger methods

// RecordTrigger reports a firing of an alert condition.
func (c *Client) RecordTrigger(streamID, conditionID string, opts RecordTriggerOptions) (Trigger, error) {
	trigger := Trigger{}
	u := *c.url
	u.Path = c.TriggersLink(streamID, conditionID).Href

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return trigger, err
	}

	req, err := http.NewRequest("POST", u.String(), &buf)
	if err != nil {
		return trigger, err
	}

	_, err = c.do(req, &trigger, http.StatusCreated)
	return trigger, err
}

// ListTriggers returns the firing history of an alert condition in
// chronological order.
func (c *Client) ListTriggers(streamID, conditionID string, opts *ListTriggersOptions) ([]Trigger, error) {
	if opts == nil {
		opts = new(ListTriggersOptions)
	}
	opts.Default()

	u := *c.url
	u.Path = c.TriggersLink(streamID, conditionID).Href
	u.RawQuery = opts.Values().Encode()

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, err
	}

	triggers := Triggers{}
	_, err = c.do(req, &triggers, http.StatusOK)
	return triggers.Triggers, err
}

//--------------------------------------------------------------------
// User methods

// CreateUser creates a new user with the given permissions.
func (c *Client) CreateUser(opts CreateUserOptions) (User, error) {
	user := User{}
	u := *c.url
	u.Path = path.Join(basePath, "users")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return user, err
	}

	req, err := http.NewRequest("POST", u.String(), &buf)
	if err != nil {
		return user, err
	}

	_, err = c.do(req, &user, http.StatusOK)
	return user, err
}

// User fetches one user by their link.
func (c *Client) User(link Link) (User, error) {
	user := User{}
	if link.Href == "" {
		return user, fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return user, err
	}

	_, err = c.do(req, &user, http.StatusOK)
	return user, err
}

// ListUsers returns all users.
func (c *Client) ListUsers() ([]User, error) {
	u := *c.url
	u.Path = path.Join(basePath, "users")

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, err
	}

	users := Users{}
	_, err = c.do(req, &users, http.StatusOK)
	return users.Users, err
}

// UpdateUser modifies the password or permissions of a user.
func (c *Client) UpdateUser(link Link, opts UpdateUserOptions) (User, error) {
	user := User{}
	if link.Href == "" {
		return user, fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return user, err
	}

	req, err := http.NewRequest("PATCH", u.String(), &buf)
	if err != nil {
		return user, err
	}

	_, err = c.do(req, &user, http.StatusOK)
	return user, err
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(link Link) error {
	if link.Href == "" {
		return fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	req, err := http.NewRequest("DELETE", u.String(), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}

//--------------------------------------------------------------------
// Storage methods

// ListStorage returns the names of the storage stores.
func (c *Client) ListStorage() (StorageList, error) {
	list := StorageList{}
	u := *c.url
	u.Path = path.Join(basePath, "storage", "stores")

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return list, err
	}

	_, err = c.do(req, &list, http.StatusOK)
	return list, err
}

// DoStorageAction performs a maintenance action on a storage store.
func (c *Client) DoStorageAction(link Link, opts StorageActionOptions) error {
	if link.Href == "" {
		return fmt.Errorf("invalid link %v", link)
	}
	u := *c.url
	u.Path = link.Href

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(opts); err != nil {
		return err
	}

	req, err := http.NewRequest("POST", u.String(), &buf)
	if err != nil {
		return err
	}
	_, err = c.do(req, nil, http.StatusNoContent)
	return err
}
