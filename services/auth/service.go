package auth

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/influxdata/httprouter"
	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/auth"
	client "github.com/streamwatch/streamwatch/client/v1"
	"github.com/streamwatch/streamwatch/keyvalue"
	"github.com/streamwatch/streamwatch/services/httpd"
	"github.com/streamwatch/streamwatch/services/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	usersPath = "/users"

	// Number of bytes used for salts
	saltBytes = 32

	authCacheExpiration = time.Hour
)

type Diagnostic interface {
	Debug(msg string, ctx ...keyvalue.T)
}

type Service struct {
	diag   Diagnostic
	routes []httpd.Route

	StorageService interface {
		Store(namespace string) storage.Interface
	}
	HTTPDService interface {
		AddRoutes([]httpd.Route) error
		DelRoutes([]httpd.Route)
	}

	users           UserDAO
	userCache       UserCache
	cacheExpiration time.Duration

	bcryptCost int

	// Authentication cache.
	// Caches sha256 hashes of passwords for faster authentication
	authCache map[string]authCred
	authMU    sync.RWMutex
}

type authCred struct {
	salt    []byte
	hash    []byte
	expires time.Time
}

func NewService(c Config, d Diagnostic) *Service {
	return &Service{
		diag:            d,
		authCache:       make(map[string]authCred),
		cacheExpiration: time.Duration(c.CacheExpiration),
		bcryptCost:      c.BcryptCost,
	}
}

const userNamespace = "user_store"

func (s *Service) Open() error {
	if s.StorageService == nil {
		return errors.New("missing storage service")
	}
	if s.HTTPDService == nil {
		return errors.New("missing httpd service")
	}
	store := s.StorageService.Store(userNamespace)
	users, err := newUserKV(store)
	if err != nil {
		return err
	}
	s.users = users
	s.userCache = newUserCache(s.cacheExpiration)

	// Define API routes
	s.routes = []httpd.Route{
		{
			Method:      "GET",
			Pattern:     usersPath + "/:username",
			HandlerFunc: s.handleUser,
		},
		{
			Method:      "DELETE",
			Pattern:     usersPath + "/:username",
			HandlerFunc: s.handleDeleteUser,
		},
		{
			// Satisfy CORS checks.
			Method:      "OPTIONS",
			Pattern:     usersPath + "/:username",
			HandlerFunc: httpd.ServeOptions,
		},
		{
			Method:      "PATCH",
			Pattern:     usersPath + "/:username",
			HandlerFunc: s.handleUpdateUser,
		},
		{
			Method:      "GET",
			Pattern:     usersPath,
			HandlerFunc: s.handleListUsers,
		},
		{
			Method:      "POST",
			Pattern:     usersPath,
			HandlerFunc: s.handleCreateUser,
		},
	}

	if err := s.HTTPDService.AddRoutes(s.routes); err != nil {
		return err
	}
	return nil
}

func (s *Service) Close() error {
	if s.HTTPDService != nil {
		s.HTTPDService.DelRoutes(s.routes)
	}
	return nil
}

func (s *Service) Authenticate(username, password string) (auth.User, error) {
	user, err := s.User(username)
	if err != nil {
		return auth.User{}, err
	}

	// Check for auth cache entry first
	s.authMU.RLock()
	cred, ok := s.authCache[username]
	s.authMU.RUnlock()

	if ok {
		// verify the password using the cached salt and hash
		if cred.expires.After(time.Now()) && bytes.Equal(s.hashWithSalt(cred.salt, password), cred.hash) {
			return user, nil
		}
		// fall through to requiring a full bcrypt hash for invalid passwords
	}

	// Compare password with user hash.
	if err := bcrypt.CompareHashAndPassword(user.Hash(), []byte(password)); err != nil {
		s.userCache.Delete(username)
		return auth.User{}, fmt.Errorf("failed to authenticate user")
	}

	// generate a salt and hash of the password for the cache
	if salt, hashed, err := s.saltedHash(password); err == nil {
		s.authMU.Lock()
		s.authCache[username] = authCred{salt: salt, hash: hashed, expires: time.Now().Add(authCacheExpiration)}
		s.authMU.Unlock()
	}
	return user, nil
}

// saltedHash returns a salt and salted hash of password
func (s *Service) saltedHash(password string) (salt, hash []byte, err error) {
	salt = make([]byte, saltBytes)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, err
	}

	return salt, s.hashWithSalt(salt, password), nil
}

// hashWithSalt returns a salted hash of password using salt
func (s *Service) hashWithSalt(salt []byte, password string) []byte {
	hasher := sha256.New()
	hasher.Write(salt)
	hasher.Write([]byte(password))
	return hasher.Sum(nil)
}

func (s *Service) User(username string) (auth.User, error) {
	// Check cache first
	cached, found := s.userCache.Get(username)
	if found {
		return cached, nil
	}

	// Check in store
	user, err := s.users.Get(username)
	if err != nil {
		return auth.User{}, errors.Wrapf(err, "retrieving user %q from store", username)
	}

	au, err := s.convertToAuthUser(user)
	if err != nil {
		return auth.User{}, errors.Wrap(err, "converting from stored user")
	}
	// Populate cache with user from store
	s.userCache.Set(au)
	return au, nil
}

// Pattern for valid usernames.
var validUsername = regexp.MustCompile(`^[-\._\p{L}0-9@]+$`)

func (s *Service) userLink(username string) client.Link {
	return client.Link{Relation: client.Self, Href: path.Join(httpd.BasePath, usersPath, username)}
}

func (s *Service) handleUser(w http.ResponseWriter, r *http.Request) {
	username := httprouter.ParamsFromContext(r.Context()).ByName("username")
	u, err := s.users.Get(username)
	if err != nil {
		if err == ErrNoUserExists {
			httpd.HttpError(w, err.Error(), true, http.StatusNotFound)
			return
		}
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}
	cu := s.convertToClientUser(u)
	w.WriteHeader(http.StatusOK)
	w.Write(httpd.MarshalJSON(cu, true))
}

func (s *Service) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	user := client.CreateUserOptions{}
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&user)
	if err != nil {
		httpd.HttpError(w, "invalid JSON", true, http.StatusBadRequest)
		return
	}
	if user.Name == "" {
		httpd.HttpError(w, "username is required", true, http.StatusBadRequest)
		return
	}
	if !validUsername.MatchString(user.Name) {
		httpd.HttpError(w, fmt.Sprintf("username must contain only letters, numbers, '-', '.', '@' and '_'. %q", user.Name), true, http.StatusBadRequest)
		return
	}
	if user.Password == "" {
		httpd.HttpError(w, "password is required", true, http.StatusBadRequest)
		return
	}

	// Convert Permission to Resources/Privileges
	privileges, err := s.convertPermissions(user.Permissions)
	if err != nil {
		httpd.HttpError(w, fmt.Sprintf("invalid permissions: %s", err.Error()), true, http.StatusBadRequest)
		return
	}

	u, err := s.CreateUser(user.Name, user.Password, user.Type == client.AdminUser, privileges)
	if err != nil {
		if err == ErrUserExists {
			httpd.HttpError(w, err.Error(), true, http.StatusConflict)
			return
		}
		httpd.HttpError(w, fmt.Sprintf("failed to create user: %s", err.Error()), true, http.StatusInternalServerError)
		return
	}
	cu := s.convertToClientUser(u)
	w.WriteHeader(http.StatusOK)
	w.Write(httpd.MarshalJSON(cu, true))
}

func (s *Service) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	username := httprouter.ParamsFromContext(r.Context()).ByName("username")
	user := client.UpdateUserOptions{}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&user); err != nil {
		httpd.HttpError(w, "invalid JSON", true, http.StatusBadRequest)
		return
	}

	// If user.Permissions is nil then the client didn't list any so don't update permissions.
	updatePrivileges := user.Permissions != nil

	// Convert Permission to Resources/Privileges
	privileges, err := s.convertPermissions(user.Permissions)
	if err != nil {
		httpd.HttpError(w, fmt.Sprintf("invalid permissions: %s", err.Error()), true, http.StatusBadRequest)
		return
	}

	u, err := s.updateUser(
		username,
		user.Password,
		user.Type != client.InvalidUser,
		user.Type == client.AdminUser,
		updatePrivileges,
		privileges,
	)
	if err != nil {
		if errors.Cause(err) == ErrNoUserExists {
			httpd.HttpError(w, err.Error(), true, http.StatusNotFound)
			return
		}
		httpd.HttpError(w, fmt.Sprintf("failed to update user: %s", err.Error()), true, http.StatusInternalServerError)
		return
	}
	cu := s.convertToClientUser(u)
	w.WriteHeader(http.StatusOK)
	w.Write(httpd.MarshalJSON(cu, true))
}

func (s *Service) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := httprouter.ParamsFromContext(r.Context()).ByName("username")

	if err := s.DeleteUser(username); err != nil {
		httpd.HttpError(w, fmt.Sprintf("failed to delete user: %s", err.Error()), true, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var allUserFields = []string{
	"link",
	"name",
	"type",
	"permissions",
}

func (s *Service) handleListUsers(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	fields := r.URL.Query()["fields"]
	if len(fields) == 0 {
		fields = allUserFields
	} else {
		// Always return name and link fields
		fields = append(fields, "name", "link")
	}

	var err error
	offset := int64(0)
	offsetStr := r.URL.Query().Get("offset")
	if offsetStr != "" {
		offset, err = strconv.ParseInt(offsetStr, 10, 64)
		if err != nil {
			httpd.HttpError(w, fmt.Sprintf("invalid offset parameter %q must be an integer: %s", offsetStr, err), true, http.StatusBadRequest)
			return
		}
	}

	limit := int64(100)
	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		limit, err = strconv.ParseInt(limitStr, 10, 64)
		if err != nil {
			httpd.HttpError(w, fmt.Sprintf("invalid limit parameter %q must be an integer: %s", limitStr, err), true, http.StatusBadRequest)
			return
		}
	}

	rawUsers, err := s.users.List(pattern, int(offset), int(limit))
	if err != nil {
		httpd.HttpError(w, fmt.Sprintf("failed to list users: %s", err.Error()), true, http.StatusInternalServerError)
		return
	}
	users := make([]map[string]interface{}, len(rawUsers))

	for i, user := range rawUsers {
		users[i] = make(map[string]interface{}, len(fields))
		for _, field := range fields {
			var value interface{}
			switch field {
			case "name":
				value = user.Name
			case "link":
				value = s.userLink(user.Name)
			case "type":
				value = client.NormalUser
				if user.Admin {
					value = client.AdminUser
				}
			case "permissions":
				value = s.convertPrivileges(user.Privileges)
			default:
				httpd.HttpError(w, fmt.Sprintf("unsupported field %q", field), true, http.StatusBadRequest)
				return
			}
			users[i][field] = value
		}
	}

	type response struct {
		Users []map[string]interface{} `json:"users"`
	}

	w.Write(httpd.MarshalJSON(response{users}, true))
}

var (
	rootResource  = "/"
	pingResource  = "/ping"
	usersResource = usersPath
)

// Map permissions to a set of resources and privileges
func (s *Service) convertPermissions(perms []client.Permission) (map[string][]Privilege, error) {
	privileges := make(map[string][]Privilege, len(perms))
	for _, perm := range perms {
		switch perm {
		case client.NoPermissions:
		case client.APIPermission:
			privileges[rootResource] = []Privilege{AllPrivileges}
			// Do not give user management access unless specifically granted.
			if _, ok := privileges[usersResource]; !ok {
				privileges[usersResource] = []Privilege{NoPrivileges}
			}
		case client.StreamsPermission:
			privileges[pingResource] = []Privilege{AllPrivileges}
			privileges[auth.StreamsResource] = []Privilege{AllPrivileges}
		case client.AllPermissions:
			privileges[rootResource] = []Privilege{AllPrivileges}
			privileges[usersResource] = []Privilege{AllPrivileges}
		default:
			return nil, fmt.Errorf("unknown permission %v", perm)
		}
	}
	return privileges, nil
}

// Map a set of resources and privileges to permissions
func (s *Service) convertPrivileges(privileges map[string][]Privilege) []client.Permission {
	hasAPI := false
	if ps, ok := privileges[rootResource]; ok {
		for _, p := range ps {
			if p == AllPrivileges {
				hasAPI = true
			}
		}
	}
	hasUsers := false
	if ps, ok := privileges[usersResource]; ok {
		for _, p := range ps {
			if p == AllPrivileges {
				hasUsers = true
			}
		}
	}
	hasStreams := false
	if ps, ok := privileges[auth.StreamsResource]; ok {
		for _, p := range ps {
			if p == AllPrivileges {
				hasStreams = true
			}
		}
	}
	if hasAPI && hasUsers {
		return []client.Permission{client.AllPermissions}
	}
	perms := make([]client.Permission, 0)
	if hasAPI {
		perms = append(perms, client.APIPermission)
	}
	if hasStreams {
		perms = append(perms, client.StreamsPermission)
	}
	return perms
}

func (s *Service) CreateUser(username, password string, admin bool, privileges map[string][]Privilege) (User, error) {
	// Check if user exists
	_, err := s.users.Get(username)
	if err == nil {
		return User{}, ErrUserExists
	} else if err != ErrNoUserExists {
		return User{}, errors.Wrap(err, "checking for existing user")
	}

	// Hash the password before serializing it.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	u := User{
		Name:       username,
		Hash:       hash,
		Admin:      admin,
		Privileges: privileges,
	}

	if err := s.users.Create(u); err != nil {
		return User{}, errors.Wrap(err, "saving user")
	}
	s.diag.Debug("created user", keyvalue.KV("username", username))
	// Populate user cache
	if au, err := s.convertToAuthUser(u); err == nil {
		s.userCache.Set(au)
	}
	return u, nil
}

func (s *Service) updateUser(username, password string, updateAdmin, admin, updatePrivileges bool, privileges map[string][]Privilege) (User, error) {
	// Check if user exists
	u, err := s.users.Get(username)
	if err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}

	if password != "" {
		// Hash the password before serializing it.
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		u.Hash = hash

		// Stale hashes must not authenticate the old password.
		s.authMU.Lock()
		delete(s.authCache, username)
		s.authMU.Unlock()
	}

	if updatePrivileges {
		u.Privileges = privileges
	}
	if updateAdmin {
		u.Admin = admin
		if admin {
			// Zero user privileges since now its an admin.
			u.Privileges = nil
		}
	}

	if err := s.users.Replace(u); err != nil {
		return User{}, errors.Wrap(err, "saving user")
	}
	s.diag.Debug("updated user", keyvalue.KV("username", username))
	// Populate user cache
	if au, err := s.convertToAuthUser(u); err == nil {
		s.userCache.Set(au)
	}
	return u, nil
}

func (s *Service) DeleteUser(username string) error {
	s.userCache.Delete(username)

	s.authMU.Lock()
	delete(s.authCache, username)
	s.authMU.Unlock()

	if err := s.users.Delete(username); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	s.diag.Debug("deleted user", keyvalue.KV("username", username))
	return nil
}

// Convert a user from the store into an auth.User.
func (s *Service) convertToAuthUser(u User) (auth.User, error) {
	privileges := make(map[string][]auth.Privilege, len(u.Privileges))
	for r, ps := range u.Privileges {
		for _, p := range ps {
			var priv auth.Privilege
			switch p {
			case NoPrivileges:
				priv = auth.NoPrivileges
			case ReadPrivilege:
				priv = auth.ReadPrivilege
			case WritePrivilege:
				priv = auth.WritePrivilege
			case DeletePrivilege:
				priv = auth.DeletePrivilege
			case AllPrivileges:
				priv = auth.AllPrivileges
			default:
				return auth.User{}, fmt.Errorf("unknown Privilege %v", p)
			}
			privileges[r] = append(privileges[r], priv)
		}
	}
	au := auth.NewUser(u.Name, u.Hash, u.Admin, privileges)
	return au, nil
}

// Convert a user from the store into a client.User.
func (s *Service) convertToClientUser(u User) client.User {
	ut := client.NormalUser
	if u.Admin {
		ut = client.AdminUser
	}
	perms := s.convertPrivileges(u.Privileges)
	return client.User{
		Link:        s.userLink(u.Name),
		Name:        u.Name,
		Type:        ut,
		Permissions: perms,
	}
}
