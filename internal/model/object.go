package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Well-known attribute names read by the aggregation layer.
const (
	AttrName        = "name"
	AttrOwner       = "owner"
	AttrAssignment  = "assignment"
	AttrSubmission  = "submission"
	AttrTest        = "test"
	AttrCreatedTime = "created_time"
	AttrStatus      = "status"
	AttrScore       = "score"
	AttrUsername    = "username"
	AttrFirst       = "first"
	AttrLast        = "last"
)

// ErrMissingAttribute is returned when an object lacks a requested key.
var ErrMissingAttribute = errors.New("missing attribute")

// Object is an untyped attribute record as returned by a show call.
type Object map[string]any

// String returns the attribute as text. Numbers are formatted without a trailing
// fraction when integral.
func (o Object) String(key string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %q", ErrMissingAttribute, key)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return fmt.Sprint(val), nil
	}
}

// StringOr returns the attribute as text, or def when it is missing.
func (o Object) StringOr(key, def string) string {
	s, err := o.String(key)
	if err != nil {
		return def
	}
	return s
}

// Ref returns the identifier stored under a foreign-key attribute.
func (o Object) Ref(key string) (ID, error) {
	s, err := o.String(key)
	if err != nil {
		return NilID, err
	}
	id, err := ParseID(s)
	if err != nil {
		return NilID, fmt.Errorf("attribute %q: %w", key, err)
	}
	return id, nil
}

// Name returns the "name" attribute.
func (o Object) Name() (string, error) { return o.String(AttrName) }

// Owner returns the owning user's identifier.
func (o Object) Owner() (ID, error) { return o.Ref(AttrOwner) }

// Assignment returns the referenced assignment.
func (o Object) Assignment() (ID, error) { return o.Ref(AttrAssignment) }

// Submission returns the referenced submission.
func (o Object) Submission() (ID, error) { return o.Ref(AttrSubmission) }

// Test returns the referenced test.
func (o Object) Test() (ID, error) { return o.Ref(AttrTest) }

// CreatedTime parses "created_time", stored remotely as fractional seconds since the epoch.
func (o Object) CreatedTime() (time.Time, error) {
	s, err := o.String(AttrCreatedTime)
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("attribute %q: %w", AttrCreatedTime, err)
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*float64(time.Second))), nil
}
