package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/fleveque/pokemmo-companion/internal/calc"
	"github.com/fleveque/pokemmo-companion/internal/model"
)

const (
	maxIV = 31
	maxEV = 252
)

// statNames are the JSON names of a StatBlock's fields in canonical order.
var statNames = [6]string{"hp", "attack", "defense", "special_attack", "special_defense", "speed"}

// FieldError is one violated rule, reported back to the client.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError lists every field-level violation of a payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Rule)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

var registerOnce sync.Once

// RegisterValidators installs the custom rules on gin's shared validator.
// It is safe to call more than once.
//
// Go note: gin wraps go-playground/validator; Engine() hands back the
// underlying *validator.Validate so we can extend it.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// Report fields by their JSON names ("pokemon[0].level"), not Go names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("nature", func(fl validator.FieldLevel) bool {
			_, ok := calc.LookupNature(fl.Field().String())
			return ok
		})
		v.RegisterStructValidation(rawRecordRules, model.RawRecord{})
	})
}

// rawRecordRules checks the IV and EV blocks, which share a type but not
// their bounds.
func rawRecordRules(sl validator.StructLevel) {
	rec, ok := sl.Current().Interface().(model.RawRecord)
	if !ok {
		return
	}
	checkStatBlock(sl, rec.IVs, "ivs", "IVs", maxIV)
	checkStatBlock(sl, rec.EVs, "evs", "EVs", maxEV)
}

func checkStatBlock(sl validator.StructLevel, block model.StatBlock, jsonName, goName string, max int) {
	for i, v := range block.Values() {
		name := jsonName + "." + statNames[i]
		switch {
		case v < 0:
			sl.ReportError(v, name, goName, "min", "0")
		case v > max:
			sl.ReportError(v, name, goName, "max", strconv.Itoa(max))
		}
	}
}

// DecodeEnvelope parses and validates an ingest payload. Every failure it
// returns is a *ValidationError.
func DecodeEnvelope(raw []byte) (*model.Envelope, error) {
	RegisterValidators()

	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, decodeError(err)
	}
	if err := binding.Validator.ValidateStruct(&env); err != nil {
		return nil, toValidationError(err)
	}
	return &env, nil
}

func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{Fields: []FieldError{{
			Field: typeErr.Field,
			Rule:  "type",
			Param: typeErr.Type.String(),
		}}}
	}
	return &ValidationError{Fields: []FieldError{{Field: "body", Rule: "json", Param: err.Error()}}}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Field: "body", Rule: "invalid", Param: err.Error()}}}
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// fieldPath drops the root type name from a validator namespace:
// "Envelope.pokemon[0].level" becomes "pokemon[0].level".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// FieldNames returns the field paths of a validation error, for logging.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = fmt.Sprintf("%s(%s)", f.Field, f.Rule)
	}
	return names
}
