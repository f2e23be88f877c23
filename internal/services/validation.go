package services

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/adanyl0v/taskdock/internal/models"
)

const SearchLimit = 10

// validate reports fields under their JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// taskRules holds the checkable task fields. A nil field was not sent and
// is skipped.
type taskRules struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=255"`
	Description *string `json:"description" validate:"omitnil,max=5000"`
	Priority    *string `json:"priority" validate:"omitnil,oneof=LOW MEDIUM HIGH URGENT"`
	Status      *string `json:"status" validate:"omitnil,oneof=PENDING IN_PROGRESS COMPLETED"`
}

type registerRules struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"min=8,max=255"`
}

type searchRules struct {
	Search string `json:"search" validate:"min=2"`
}

// ValidationError maps offending input fields to a message. It is returned
// before anything is persisted.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// check runs the struct rules and records every failing field.
func (e *ValidationError) check(rules any) {
	err := validate.Struct(rules)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		panic(err)
	}
	for _, fe := range fieldErrs {
		e.add(fe.Field(), fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return fe.Field() + " must be a valid address"
	}
	return fe.Field() + " is invalid"
}

// validateDueDate treats a blank string as "no date".
func validateDueDate(v *ValidationError, raw *string) *models.Date {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	d, err := models.ParseDate(*raw)
	if err != nil {
		v.add("dueDate", err.Error())
		return nil
	}
	return &d
}

func normalizeAssignee(raw *string) *string {
	if raw == nil {
		return nil
	}
	id := strings.TrimSpace(*raw)
	if id == "" {
		return nil
	}
	return &id
}

// validateTaskInput checks a create request and builds the task fields it
// describes. Ownership and ids are filled in by the caller. The title is
// stored as sent.
func validateTaskInput(input models.TaskInput) (*models.Task, error) {
	v := &ValidationError{}
	v.check(taskRules{
		Title:       &input.Title,
		Description: input.Description,
		Priority:    &input.Priority,
		Status:      &input.Status,
	})

	task := &models.Task{
		Title:        input.Title,
		Priority:     models.Priority(input.Priority),
		Status:       models.Status(input.Status),
		DueDate:      validateDueDate(v, input.DueDate),
		AssignedToID: normalizeAssignee(input.AssignedToID),
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}
	return task, nil
}

// validateTaskPatch converts a decoded patch into typed update fields,
// keeping the distinction between omitted and cleared. Only present fields
// are checked.
func validateTaskPatch(patch models.TaskPatch) (models.UpdateFields, error) {
	v := &ValidationError{}
	var (
		fields models.UpdateFields
		rules  taskRules
	)

	if raw, ok := patch.Title.Get(); ok {
		rules.Title = &raw
		fields.Title = models.Some(raw)
	}
	if raw, ok := patch.Description.Get(); ok {
		rules.Description = &raw
		fields.Description = models.Some(raw)
	}
	if raw, ok := patch.Priority.Get(); ok {
		rules.Priority = &raw
		fields.Priority = models.Some(models.Priority(raw))
	}
	if raw, ok := patch.Status.Get(); ok {
		rules.Status = &raw
		fields.Status = models.Some(models.Status(raw))
	}
	v.check(rules)

	if raw, ok := patch.DueDate.Get(); ok {
		fields.DueDate = models.Some(validateDueDate(v, raw))
	}
	if raw, ok := patch.AssignedToID.Get(); ok {
		fields.AssignedToID = models.Some(normalizeAssignee(raw))
	}

	if err := v.orNil(); err != nil {
		return models.UpdateFields{}, err
	}
	return fields, nil
}

func validateRegister(params RegisterParams) (RegisterParams, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))

	v := &ValidationError{}
	v.check(registerRules{
		Name:     params.Name,
		Email:    params.Email,
		Password: params.Password,
	})
	if err := v.orNil(); err != nil {
		return params, err
	}
	return params, nil
}

// validateSearch trims the query and enforces its minimum length.
func validateSearch(query string) (string, error) {
	query = strings.TrimSpace(query)

	v := &ValidationError{}
	v.check(searchRules{Search: query})
	return query, v.orNil()
}
