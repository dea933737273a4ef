package condition

import (
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/services/storage"
)

var (
	ErrConditionExists   = errors.New("condition already exists")
	ErrNoConditionExists = errors.New("no condition exists")
)

// Data access object for Condition data.
type ConditionDAO interface {
	// Retrieve a condition by stream and id.
	// ErrNoConditionExists is returned if the condition does not exist.
	Get(streamID, id string) (Condition, error)

	// Exists reports whether a condition exists within a stream.
	Exists(streamID, id string) (bool, error)

	// Create a condition.
	// ErrConditionExists is returned if a condition already exists with the same ID.
	Create(c Condition) error

	// Replace an existing condition.
	// ErrNoConditionExists is returned if the condition does not exist.
	Replace(c Condition) error

	// Delete a condition.
	// ErrNoConditionExists is returned if the condition does not exist.
	Delete(streamID, id string) error

	// ListStream returns every condition of a stream in insertion order.
	ListStream(streamID string) ([]Condition, error)

	// DeleteStream removes every condition of a stream and returns the
	// ids of the removed conditions. Removing an unknown stream is not
	// an error.
	DeleteStream(streamID string) ([]string, error)

	Rebuild() error
}

//--------------------------------------------------------------------
// The following structures are stored in a database via JSON encoding.
// Changes to the structures could break existing data.

const conditionVersion = 1

// Condition is the stored form of an alert condition.
// Parameters hold the normalized parameter document, defaults explicit.
type Condition struct {
	ID            string                 `json:"id"`
	StreamID      string                 `json:"stream-id"`
	Type          string                 `json:"type"`
	Title         string                 `json:"title"`
	Parameters    map[string]interface{} `json:"parameters"`
	CreatedAt     time.Time              `json:"created-at"`
	CreatorUserID string                 `json:"creator-user-id"`
}

func (c Condition) Validate() error {
	if c.ID == "" {
		return errors.New("condition ID must not be empty")
	}
	if c.StreamID == "" {
		return errors.New("condition stream ID must not be empty")
	}
	if c.Type == "" {
		return errors.New("condition type must not be empty")
	}
	if c.CreatedAt.IsZero() {
		return errors.New("condition creation time must not be zero")
	}
	return nil
}

func fullID(streamID, id string) string {
	return path.Join(streamID, id)
}

func (c Condition) ObjectID() string {
	return fullID(c.StreamID, c.ID)
}

func (c Condition) MarshalBinary() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid condition")
	}
	return storage.VersionJSONEncode(conditionVersion, c)
}

func (c *Condition) UnmarshalBinary(data []byte) error {
	return storage.VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		switch version {
		case conditionVersion:
			return dec.Decode(c)
		default:
			return fmt.Errorf("unknown condition version %d: cannot decode", version)
		}
	})
}

// Key/Value store based implementation of the ConditionDAO.
//
// Conditions are stored under <streamID>/<conditionID> keys. A
// secondary index per stream orders them by creation time so stream
// listings come back in insertion order without decoding every record.
type conditionKV struct {
	raw   storage.Interface
	store *storage.IndexedStore
}

const (
	conditionPrefix = "conditions"

	streamIndex = "stream"

	listBatchSize = 100
)

func newConditionKV(store storage.Interface) (*conditionKV, error) {
	c := storage.DefaultIndexedStoreConfig(conditionPrefix, func() storage.BinaryObject {
		return new(Condition)
	})
	c.Indexes = append(c.Indexes, storage.Index{
		Name: streamIndex,
		ValueFunc: func(o storage.BinaryObject) (string, error) {
			c, ok := o.(*Condition)
			if !ok {
				return "", storage.ImpossibleTypeErr(c, o)
			}
			return path.Join(c.StreamID, formatConditionSeq(c.CreatedAt)), nil
		},
	})
	istore, err := storage.NewIndexedStore(store, c)
	if err != nil {
		return nil, err
	}
	return &conditionKV{
		raw:   store,
		store: istore,
	}, nil
}

// formatConditionSeq renders a time so lexical order equals creation order.
// Updates preserve the creation time, so a condition keeps its position.
func formatConditionSeq(t time.Time) string {
	return fmt.Sprintf("%020d", t.UTC().UnixNano())
}

func (kv *conditionKV) error(err error) error {
	if err == storage.ErrObjectExists {
		return ErrConditionExists
	} else if err == storage.ErrNoObjectExists {
		return ErrNoConditionExists
	}
	return err
}

func (kv *conditionKV) Get(streamID, id string) (Condition, error) {
	return kv.getHelper(kv.store.Get(fullID(streamID, id)))
}

func (kv *conditionKV) getHelper(o storage.BinaryObject, err error) (Condition, error) {
	if err != nil {
		return Condition{}, kv.error(err)
	}
	c, ok := o.(*Condition)
	if !ok {
		return Condition{}, storage.ImpossibleTypeErr(c, o)
	}
	return *c, nil
}

func (kv *conditionKV) Exists(streamID, id string) (bool, error) {
	_, err := kv.store.Get(fullID(streamID, id))
	if err == storage.ErrNoObjectExists {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (kv *conditionKV) Create(c Condition) error {
	return kv.error(kv.store.Create(&c))
}

func (kv *conditionKV) Replace(c Condition) error {
	return kv.error(kv.store.Replace(&c))
}

func (kv *conditionKV) Delete(streamID, id string) error {
	return kv.error(kv.raw.Update(func(tx storage.Tx) error {
		key := fullID(streamID, id)
		if _, err := kv.store.GetTx(tx, key); err != nil {
			return err
		}
		return kv.store.DeleteTx(tx, key)
	}))
}

func (kv *conditionKV) ListStream(streamID string) ([]Condition, error) {
	pattern := fullID(streamID, "*")
	var conditions []Condition
	for {
		batch, err := kv.store.List(streamIndex, pattern, len(conditions), listBatchSize)
		if err != nil {
			return nil, err
		}
		for _, o := range batch {
			c, ok := o.(*Condition)
			if !ok {
				return nil, storage.ImpossibleTypeErr(c, o)
			}
			conditions = append(conditions, *c)
		}
		if len(batch) < listBatchSize {
			break
		}
	}
	return conditions, nil
}

func (kv *conditionKV) DeleteStream(streamID string) ([]string, error) {
	var deleted []string
	err := kv.raw.Update(func(tx storage.Tx) error {
		pattern := fullID(streamID, "*")
		for {
			batch, err := kv.store.ListTx(tx, streamIndex, pattern, 0, listBatchSize)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				return nil
			}
			for _, o := range batch {
				c, ok := o.(*Condition)
				if !ok {
					return storage.ImpossibleTypeErr(c, o)
				}
				if err := kv.store.DeleteTx(tx, o.ObjectID()); err != nil {
					return err
				}
				deleted = append(deleted, c.ID)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (kv *conditionKV) Rebuild() error {
	return kv.store.Rebuild()
}
