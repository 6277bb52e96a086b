package trip

import (
	"encoding/json"
	"fmt"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// entity is a list document type whose id lives in the record, not the body.
type entity[T any] interface {
	*T
	setID(id string)
}

// decodeList maps records into T, logging and skipping any that fail validation.
func decodeList[T any, PT entity[T]](resource string, records []store.Record, log logrus.FieldLogger) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		v, err := decode[T, PT](r)
		if err != nil {
			log.WithFields(logrus.Fields{"resource": resource, "id": r.ID}).WithError(err).Warn("quarantined trip document")
			continue
		}
		out = append(out, v)
	}
	return out
}

func decode[T any, PT entity[T]](r store.Record) (T, error) {
	var v T
	if err := json.Unmarshal(r.Data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	PT(&v).setID(r.ID)
	if err := validate.Struct(&v); err != nil {
		return v, fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	return v, nil
}

// encode validates v and returns its stored body without the id.
func encode[T any, PT entity[T]](v T) (json.RawMessage, error) {
	if err := validate.Struct(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	PT(&v).setID("")
	return json.Marshal(v)
}

// patchFields validates a patch struct and turns its non-nil fields into a store patch.
func patchFields(patch any) (map[string]any, error) {
	if err := validate.Struct(patch); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty patch", store.ErrInvalid)
	}
	return fields, nil
}
