package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/purchase-export/page"
)

// ValidationError is one structural problem found on the page.
type ValidationError struct {
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationResult is the verdict of one validation pass. A new value is
// built for every call and not modified afterwards.
type ValidationResult struct {
	IsValid       bool              `json:"isValid"`
	SchemaVersion string            `json:"schemaVersion"`
	Timestamp     time.Time         `json:"timestamp"`
	Errors        []ValidationError `json:"errors"`
	// Warnings hold content-shape mismatches; they never invalidate a page.
	Warnings []ValidationError `json:"warnings,omitempty"`
}

// Err folds an invalid result into a single error listing every problem.
// It returns nil for a valid result.
func (r *ValidationResult) Err() error {
	if r == nil || r.IsValid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	err := errors.Newf("page structure has changed: %s", strings.Join(msgs, "; "))
	return errors.WithHint(err, "the site layout may have been updated; check or update the page schema file")
}

// Validator checks the live document against a schema before extraction.
type Validator struct {
	doc    page.Document
	schema *page.Schema
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewValidator returns a validator for doc.
func NewValidator(doc page.Document, schema *page.Schema, logger *zap.SugaredLogger) *Validator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Validator{doc: doc, schema: schema, logger: logger, now: time.Now}
}

// Validate inspects the first container (and its first item) for every
// mandatory field. It always returns a result; query faults become a
// synthetic error entry.
func (v *Validator) Validate(ctx context.Context) (res *ValidationResult) {
	res = &ValidationResult{
		SchemaVersion: v.schema.Version,
		Timestamp:     v.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			v.fail(res, "", fmt.Sprintf("validation aborted: %v", r))
		}
		res.IsValid = len(res.Errors) == 0
		v.logger.Infow("Page validation finished",
			"valid", res.IsValid,
			"errors", len(res.Errors),
			"warnings", len(res.Warnings),
			"schema_version", res.SchemaVersion)
	}()

	if err := v.check(ctx, res); err != nil {
		v.fail(res, "", fmt.Sprintf("validation aborted: %v", err))
	}
	return res
}

func (v *Validator) check(ctx context.Context, res *ValidationResult) error {
	n, err := v.doc.CountOf(ctx, v.schema.Container)
	if err != nil {
		return err
	}
	if n == 0 {
		v.fail(res, "", "no purchase containers found: page not loaded or navigated away")
		return nil
	}

	container, err := v.doc.QueryFirst(ctx, v.schema.Container, nil)
	if err != nil {
		return err
	}
	if container == nil {
		v.fail(res, "", "no purchase containers found: page not loaded or navigated away")
		return nil
	}
	if err := v.checkLevel(ctx, res, page.LevelContainer, container); err != nil {
		return err
	}

	item, err := v.doc.QueryFirst(ctx, v.schema.Selector(page.FieldItem), container)
	if err != nil {
		return err
	}
	if item == nil {
		// the missing item itself is reported by the container pass when mandatory
		return nil
	}
	return v.checkLevel(ctx, res, page.LevelItem, item)
}

func (v *Validator) checkLevel(ctx context.Context, res *ValidationResult, level page.Level, scope page.Element) error {
	for _, name := range v.schema.Required(level) {
		f := v.schema.Field(name)
		el, err := v.doc.QueryFirst(ctx, f.Selector, scope)
		if err != nil {
			return errors.Wrapf(err, "field %q", name)
		}
		if el == nil {
			v.fail(res, name, fmt.Sprintf("required field %q not found: %s", name, f.Selector))
			continue
		}
		if f.Pattern == "" {
			continue
		}
		value, err := valueOf(ctx, v.doc, f, el)
		if err != nil {
			return errors.Wrapf(err, "field %q", name)
		}
		if !f.Matches(value) {
			res.Warnings = append(res.Warnings, ValidationError{
				Message:   fmt.Sprintf("content pattern mismatch for %q: %s", name, value),
				Field:     name,
				Timestamp: v.now(),
			})
		}
	}
	return nil
}

func (v *Validator) fail(res *ValidationResult, field, msg string) {
	res.Errors = append(res.Errors, ValidationError{
		Message:   msg,
		Field:     field,
		Timestamp: v.now(),
	})
}
