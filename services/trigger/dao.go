package trigger

import (
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/services/storage"
)

var (
	ErrTriggerExists   = errors.New("trigger already exists")
	ErrNoTriggerExists = errors.New("no trigger exists")
)

// Data access object for Trigger data.
type TriggerDAO interface {
	// Retrieve a trigger by condition and id.
	Get(conditionID, id string) (Trigger, error)

	// Create a trigger and advance the last-trigger mark of its condition.
	// ErrTriggerExists is returned if a trigger already exists with the same ID.
	Create(t Trigger) error

	// LastTriggerTime returns the time of the most recent trigger
	// recorded for the condition. The bool reports whether any
	// trigger has been recorded at all.
	LastTriggerTime(conditionID string) (time.Time, bool, error)

	// List triggers of a condition in chronological order.
	// Offset and limit are pagination bounds. Offset is inclusive starting at index 0.
	// More results may exist while the number of returned items is equal to limit.
	List(conditionID string, offset, limit int) ([]Trigger, error)

	// DeleteCondition removes every trigger of a condition along with
	// its last-trigger mark. Removing an unknown condition is not an error.
	DeleteCondition(conditionID string) error

	Rebuild() error
}

//--------------------------------------------------------------------
// The following structures are stored in a database via JSON encoding.
// Changes to the structures could break existing data.

const triggerVersion = 1

// Trigger records a single firing of an alert condition,
// reported by the evaluation engine.
type Trigger struct {
	ID          string    `json:"id"`
	ConditionID string    `json:"condition-id"`
	StreamID    string    `json:"stream-id"`
	TriggeredAt time.Time `json:"triggered-at"`
	Description string    `json:"description"`
}

func (t Trigger) Validate() error {
	if t.ID == "" {
		return errors.New("trigger ID must not be empty")
	}
	if t.ConditionID == "" {
		return errors.New("trigger condition ID must not be empty")
	}
	if t.TriggeredAt.IsZero() {
		return errors.New("trigger time must not be zero")
	}
	return nil
}

func fullID(conditionID, id string) string {
	return path.Join(conditionID, id)
}

func (t Trigger) ObjectID() string {
	return fullID(t.ConditionID, t.ID)
}

func (t Trigger) MarshalBinary() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid trigger")
	}
	return storage.VersionJSONEncode(triggerVersion, t)
}

func (t *Trigger) UnmarshalBinary(data []byte) error {
	return storage.VersionJSONDecode(data, func(version int, dec *json.Decoder) error {
		switch version {
		case triggerVersion:
			return dec.Decode(t)
		default:
			return fmt.Errorf("unknown trigger version %d: cannot decode", version)
		}
	})
}

// Key/Value store based implementation of the TriggerDAO.
//
// Triggers live in an IndexedStore under the "triggers" prefix.
// Next to it the store keeps one small key per condition,
// "last/<conditionID>", holding the time of the most recent trigger so
// grace period checks never scan the history.
type triggerKV struct {
	raw   storage.Interface
	store *storage.IndexedStore
}

const (
	triggerPrefix = "triggers"

	// timeIndex orders the triggers of a condition chronologically.
	timeIndex = "time"

	lastPrefix = "last/"
)

func newTriggerKV(store storage.Interface) (*triggerKV, error) {
	c := storage.DefaultIndexedStoreConfig(triggerPrefix, func() storage.BinaryObject {
		return new(Trigger)
	})
	c.Indexes = append(c.Indexes, storage.Index{
		Name: timeIndex,
		ValueFunc: func(o storage.BinaryObject) (string, error) {
			t, ok := o.(*Trigger)
			if !ok {
				return "", storage.ImpossibleTypeErr(t, o)
			}
			return path.Join(t.ConditionID, formatTriggerSeq(t.TriggeredAt)), nil
		},
	})
	istore, err := storage.NewIndexedStore(store, c)
	if err != nil {
		return nil, err
	}
	return &triggerKV{
		raw:   store,
		store: istore,
	}, nil
}

// formatTriggerSeq renders a time so lexical order equals chronological order.
func formatTriggerSeq(t time.Time) string {
	return fmt.Sprintf("%020d", t.UTC().UnixNano())
}

func lastKey(conditionID string) string {
	return lastPrefix + conditionID
}

func (kv *triggerKV) error(err error) error {
	if err == storage.ErrObjectExists {
		return ErrTriggerExists
	} else if err == storage.ErrNoObjectExists {
		return ErrNoTriggerExists
	}
	return err
}

func (kv *triggerKV) Get(conditionID, id string) (Trigger, error) {
	return kv.getHelper(kv.store.Get(fullID(conditionID, id)))
}

func (kv *triggerKV) getHelper(o storage.BinaryObject, err error) (Trigger, error) {
	if err != nil {
		return Trigger{}, kv.error(err)
	}
	t, ok := o.(*Trigger)
	if !ok {
		return Trigger{}, storage.ImpossibleTypeErr(t, o)
	}
	return *t, nil
}

func (kv *triggerKV) Create(t Trigger) error {
	return kv.error(kv.raw.Update(func(tx storage.Tx) error {
		if err := kv.store.CreateTx(tx, &t); err != nil {
			return err
		}
		return kv.advanceLastTx(tx, t.ConditionID, t.TriggeredAt)
	}))
}

// advanceLastTx moves the last-trigger mark forward.
// Backfilled triggers older than the current mark leave it untouched.
func (kv *triggerKV) advanceLastTx(tx storage.Tx, conditionID string, at time.Time) error {
	key := lastKey(conditionID)
	exists, err := tx.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		kvPair, err := tx.Get(key)
		if err != nil {
			return err
		}
		current, err := time.Parse(time.RFC3339Nano, string(kvPair.Value))
		if err != nil {
			return errors.Wrapf(err, "corrupt last-trigger mark for condition %s", conditionID)
		}
		if !at.After(current) {
			return nil
		}
	}
	return tx.Put(key, []byte(at.UTC().Format(time.RFC3339Nano)))
}

func (kv *triggerKV) LastTriggerTime(conditionID string) (time.Time, bool, error) {
	var last time.Time
	var found bool
	err := kv.raw.View(func(tx storage.ReadOnlyTx) error {
		key := lastKey(conditionID)
		exists, err := tx.Exists(key)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		kvPair, err := tx.Get(key)
		if err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, string(kvPair.Value))
		if err != nil {
			return errors.Wrapf(err, "corrupt last-trigger mark for condition %s", conditionID)
		}
		last, found = t, true
		return nil
	})
	if err != nil {
		return time.Time{}, false, err
	}
	return last, found, nil
}

func (kv *triggerKV) List(conditionID string, offset, limit int) ([]Trigger, error) {
	return kv.listHelper(kv.store.List(timeIndex, fullID(conditionID, "*"), offset, limit))
}

func (kv *triggerKV) listHelper(objects []storage.BinaryObject, err error) ([]Trigger, error) {
	if err != nil {
		return nil, err
	}
	triggers := make([]Trigger, len(objects))
	for i, o := range objects {
		t, ok := o.(*Trigger)
		if !ok {
			return nil, storage.ImpossibleTypeErr(t, o)
		}
		triggers[i] = *t
	}
	return triggers, nil
}

func (kv *triggerKV) DeleteCondition(conditionID string) error {
	return kv.raw.Update(func(tx storage.Tx) error {
		pattern := fullID(conditionID, "*")
		for {
			batch, err := kv.store.ListTx(tx, storage.DefaultIDIndex, pattern, 0, 100)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				break
			}
			for _, o := range batch {
				if err := kv.store.DeleteTx(tx, o.ObjectID()); err != nil {
					return err
				}
			}
		}
		key := lastKey(conditionID)
		exists, err := tx.Exists(key)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		return tx.Delete(key)
	})
}

func (kv *triggerKV) Rebuild() error {
	return kv.store.Rebuild()
}
