package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	apperrors "dishlist-workers/internal/common/errors"
	"dishlist-workers/pkg/registry"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// GetErrorMessages returns "field: message" for every error.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validator checks job variables against the input schemas of the activity
// registry. Task types without a schema pass unchecked.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, a := range reg.Activities {
		if len(a.InputSchema) == 0 {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("compile input schema for %s: %w", a.TaskType, err)
		}
		v.schemas[a.TaskType] = schema
	}
	return v, nil
}

// LoadValidator reads the registry at path and compiles its schemas.
func LoadValidator(path string) (*Validator, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	return NewValidator(reg)
}

func (v *Validator) Has(taskType string) bool {
	_, ok := v.schemas[taskType]
	return ok
}

func (v *Validator) Validate(taskType string, input map[string]interface{}) (*ValidationResult, error) {
	schema, ok := v.schemas[taskType]
	if !ok {
		return &ValidationResult{Valid: true}, nil
	}
	if input == nil {
		input = map[string]interface{}{}
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, err
	}

	out := &ValidationResult{Valid: res.Valid()}
	for _, e := range res.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.Slice(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

// ValidateInput returns an INVALID_INPUT error listing every violation.
func (v *Validator) ValidateInput(taskType string, input map[string]interface{}) error {
	res, err := v.Validate(taskType, input)
	if err != nil {
		return apperrors.NewInvalidInputError("input could not be validated", err)
	}
	if res.Valid {
		return nil
	}
	return apperrors.NewInvalidInputError(strings.Join(res.GetErrorMessages(), "; "), nil).
		WithMetadata("taskType", taskType)
}

// Wrap validates each job's variables before handing it to next. Invalid
// jobs are reported through eh and never reach next.
func (v *Validator) Wrap(taskType string, eh *apperrors.ErrorHandler, next func(worker.JobClient, entities.Job)) func(worker.JobClient, entities.Job) {
	if !v.Has(taskType) {
		return next
	}
	return func(client worker.JobClient, job entities.Job) {
		vars, err := job.GetVariablesAsMap()
		if err != nil {
			eh.HandleJobError(context.Background(), client, job, apperrors.NewInvalidInputError("variables are not a JSON object", err))
			return
		}
		if err := v.ValidateInput(taskType, vars); err != nil {
			eh.HandleJobError(context.Background(), client, job, err)
			return
		}
		next(client, job)
	}
}
