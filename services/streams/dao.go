package streams

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/services/storage"
)

var (
	ErrStreamExists   = errors.New("stream already exists")
	ErrNoStreamExists = errors.New("no stream exists")
)

// Data access object for Stream data.
type StreamDAO interface {
	// Retrieve a stream by id.
	// ErrNoStreamExists is returned if the stream does not exist.
	Get(id string) (Stream, error)

	// Exists reports whether a stream with the given id exists.
	Exists(id string) (bool, error)

	// Create a stream.
	// ErrStreamExists is returned if a stream already exists with the same ID.
	Create(s Stream) error

	// Replace an existing stream.
	// ErrNoStreamExists is returned if the stream does not exist.
	Replace(s Stream) error

	// Delete a stream.
	// ErrNoStreamExists is returned if the stream does not exist.
	Delete(id string) error

	// List streams whose ids match a pattern.
	// The pattern is shell/glob matching see https://golang.org/pkg/path/#Match
	// Offset and limit are pagination bounds. Offset is inclusive starting at index 0.
	// More results may exist while the number of returned items is equal to limit.
	List(pattern string, offset, limit int) ([]Stream, error)

	Rebuild() error
}

//--------------------------------------------------------------------
// The following structures are stored in a database via JSON encoding.
// Changes to the structures could break existing data.
//
// The structures are wrapped in a storage.VersionWrapper so that
// the format can evolve while old records remain decodable.

const streamVersion = 1

// Stream is a logical grouping of incoming messages.
// Alert conditions bind to a stream and are validated against it.
type Stream struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created-at"`
	CreatorUserID string    `json:"creator-user-id"`
	Disabled      bool      `json:"disabled"`
}

func (s Stream) Validate() error {
	if s.ID == "" {
		return errors.New("stream ID must not be empty")
	}
	if s.Title == "" {
		return errors.New("stream title must not be empty")
	}
	return nil
}

func (s Stream) ObjectID() string {
	return s.ID
}

func (s Stream) MarshalBinary() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid stream")
	}
	return storage.VersionJSONEncode(streamVersion, s)
}

func (s *Stream) UnmarshalBinary(data []byte) error {
	return storage.VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		switch version {
		case streamVersion:
			return dec.Decode(s)
		default:
			return fmt.Errorf("unknown stream version %d: cannot decode", version)
		}
	})
}

// Key/Value store based implementation of the StreamDAO.
type streamKV struct {
	raw   storage.Interface
	store *storage.IndexedStore
}

const streamPrefix = "streams"

func newStreamKV(store storage.Interface) (*streamKV, error) {
	c := storage.DefaultIndexedStoreConfig(streamPrefix, func() storage.BinaryObject {
		return new(Stream)
	})
	istore, err := storage.NewIndexedStore(store, c)
	if err != nil {
		return nil, err
	}
	return &streamKV{
		raw:   store,
		store: istore,
	}, nil
}

func (kv *streamKV) error(err error) error {
	if err == storage.ErrObjectExists {
		return ErrStreamExists
	} else if err == storage.ErrNoObjectExists {
		return ErrNoStreamExists
	}
	return err
}

func (kv *streamKV) Get(id string) (Stream, error) {
	return kv.getHelper(kv.store.Get(id))
}

func (kv *streamKV) getHelper(o storage.BinaryObject, err error) (Stream, error) {
	if err != nil {
		return Stream{}, kv.error(err)
	}
	s, ok := o.(*Stream)
	if !ok {
		return Stream{}, storage.ImpossibleTypeErr(s, o)
	}
	return *s, nil
}

func (kv *streamKV) Exists(id string) (bool, error) {
	_, err := kv.store.Get(id)
	if err == storage.ErrNoObjectExists {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (kv *streamKV) Create(s Stream) error {
	return kv.error(kv.store.Create(&s))
}

func (kv *streamKV) Replace(s Stream) error {
	return kv.error(kv.store.Replace(&s))
}

func (kv *streamKV) Delete(id string) error {
	return kv.error(kv.raw.Update(func(tx storage.Tx) error {
		if _, err := kv.store.GetTx(tx, id); err != nil {
			return err
		}
		return kv.store.DeleteTx(tx, id)
	}))
}

func (kv *streamKV) List(pattern string, offset, limit int) ([]Stream, error) {
	if pattern == "" {
		pattern = "*"
	}
	return kv.listHelper(kv.store.List(storage.DefaultIDIndex, pattern, offset, limit))
}

func (kv *streamKV) listHelper(objects []storage.BinaryObject, err error) ([]Stream, error) {
	if err != nil {
		return nil, err
	}
	streams := make([]Stream, len(objects))
	for i, o := range objects {
		s, ok := o.(*Stream)
		if !ok {
			return nil, storage.ImpossibleTypeErr(s, o)
		}
		streams[i] = *s
	}
	return streams, nil
}

func (kv *streamKV) Rebuild() error {
	return kv.store.Rebuild()
}
