package condition

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Identifiers of the built-in condition types.
const (
	TypeFieldValue        = "field_value"
	TypeMessageCount      = "message_count"
	TypeFieldContentValue = "field_content_value"
)

const (
	ThresholdHigher = "higher"
	ThresholdLower  = "lower"
	ThresholdMore   = "more"
	ThresholdLess   = "less"
)

// FieldValueConfig alerts when a numeric aggregation of a message field
// crosses a threshold.
type FieldValueConfig struct {
	Field         string `mapstructure:"field"`
	Value         string `mapstructure:"value"`
	ThresholdType string `mapstructure:"threshold_type"`
	Backlog       int    `mapstructure:"backlog"`
	Grace         int    `mapstructure:"grace"`
	Time          int    `mapstructure:"time"`
}

func newFieldValueConfig() *FieldValueConfig {
	return &FieldValueConfig{
		ThresholdType: ThresholdHigher,
		Time:          5,
	}
}

func (c *FieldValueConfig) Validate() error {
	if c.Field == "" {
		return errors.New("field must not be empty")
	}
	if c.Value == "" {
		return errors.New("value must not be empty")
	}
	if c.ThresholdType != ThresholdHigher && c.ThresholdType != ThresholdLower {
		return errors.Errorf("threshold_type must be %q or %q, got %q", ThresholdHigher, ThresholdLower, c.ThresholdType)
	}
	if c.Backlog < 0 {
		return errors.New("backlog must not be negative")
	}
	if c.Grace < 0 {
		return errors.New("grace must not be negative")
	}
	if c.Time < 1 {
		return errors.New("time must be at least 1 minute")
	}
	return nil
}

func (c *FieldValueConfig) GraceMinutes() int { return c.Grace }

// MessageCountConfig alerts when the message volume of a stream crosses
// a threshold.
type MessageCountConfig struct {
	Threshold     *int   `mapstructure:"threshold"`
	ThresholdType string `mapstructure:"threshold_type"`
	Backlog       int    `mapstructure:"backlog"`
	Grace         int    `mapstructure:"grace"`
	Time          int    `mapstructure:"time"`
}

func newMessageCountConfig() *MessageCountConfig {
	return &MessageCountConfig{
		ThresholdType: ThresholdMore,
		Time:          5,
	}
}

func (c *MessageCountConfig) Validate() error {
	if c.Threshold == nil {
		return errors.New("threshold is required")
	}
	if *c.Threshold < 0 {
		return errors.New("threshold must not be negative")
	}
	if c.ThresholdType != ThresholdMore && c.ThresholdType != ThresholdLess {
		return errors.Errorf("threshold_type must be %q or %q, got %q", ThresholdMore, ThresholdLess, c.ThresholdType)
	}
	if c.Backlog < 0 {
		return errors.New("backlog must not be negative")
	}
	if c.Grace < 0 {
		return errors.New("grace must not be negative")
	}
	if c.Time < 1 {
		return errors.New("time must be at least 1 minute")
	}
	return nil
}

func (c *MessageCountConfig) GraceMinutes() int { return c.Grace }

// FieldContentValueConfig alerts when a message field contains an exact
// value.
type FieldContentValueConfig struct {
	Field   string `mapstructure:"field"`
	Value   string `mapstructure:"value"`
	Backlog int    `mapstructure:"backlog"`
	Grace   int    `mapstructure:"grace"`
}

func newFieldContentValueConfig() *FieldContentValueConfig {
	return &FieldContentValueConfig{}
}

func (c *FieldContentValueConfig) Validate() error {
	if c.Field == "" {
		return errors.New("field must not be empty")
	}
	if c.Value == "" {
		return errors.New("value must not be empty")
	}
	if c.Backlog < 0 {
		return errors.New("backlog must not be negative")
	}
	if c.Grace < 0 {
		return errors.New("grace must not be negative")
	}
	return nil
}

func (c *FieldContentValueConfig) GraceMinutes() int { return c.Grace }

// decodeParameters decodes a raw parameter map into a typed config.
// Unknown keys are rejected. Values arriving from JSON carry numbers as
// float64, whole floats are accepted into integer fields.
func decodeParameters(params map[string]interface{}, c ConditionConfig) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      c,
		DecodeHook:  decodeWholeFloatToInt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize mapstructure decoder")
	}
	if err := dec.Decode(params); err != nil {
		return err
	}
	return nil
}

// decodeWholeFloatToInt decodes a whole float value into an integer field.
func decodeWholeFloatToInt(f, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.Float64 || t.Kind() != reflect.Int {
		return data, nil
	}
	fv := data.(float64)
	iv := int(fv)
	if float64(iv) != fv {
		return nil, errors.Errorf("expected an integer value, got %v", fv)
	}
	return iv, nil
}

// normalizeParameters renders a decoded config back into a parameter map
// so defaults applied during decoding become explicit in the stored
// document.
func normalizeParameters(c ConditionConfig) (map[string]interface{}, error) {
	m := make(map[string]interface{})
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &m,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize mapstructure decoder")
	}
	if err := dec.Decode(c); err != nil {
		return nil, errors.Wrapf(err, "failed to normalize parameters of %T", c)
	}
	// Pointer fields express required parameters, store their values.
	for k, v := range m {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && !rv.IsNil() {
			m[k] = rv.Elem().Interface()
		}
	}
	return m, nil
}
