package game

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errTrailingData = errors.New("trailing data after action")

// decodeAction strictly decodes raw into dst and validates its tags.
// Unknown fields, wrong types and trailing data are all rejected.
func decodeAction(raw json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return validate.Struct(dst)
}

type cellAction struct {
	Cell *int `json:"cell" validate:"required,min=0,max=8"`
}

type handAction struct {
	Move string `json:"move" validate:"required,oneof=rock paper scissors"`
}

type parityAction struct {
	NumberType string `json:"numberType" validate:"required,oneof=evens odds"`
	Number     *int   `json:"number" validate:"required,min=0,max=10"`
}
