package csvimport

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldType is the expected type of a column
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeDecimal FieldType = "decimal"
	FieldTypeUUID    FieldType = "uuid"
)

// FieldRule describes how one column is checked
type FieldRule struct {
	Column   string
	Required bool
	Type     FieldType
	MinValue *decimal.Decimal
	Custom   func(value string) error
}

// FieldRuleBuilder builds a FieldRule fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field starts a rule for column
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: FieldTypeString}}
}

func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = FieldTypeDecimal
	return b
}

func (b *FieldRuleBuilder) UUID() *FieldRuleBuilder {
	b.rule.Type = FieldTypeUUID
	return b
}

// MinValue sets an inclusive lower bound for decimal columns
func (b *FieldRuleBuilder) MinValue(v decimal.Decimal) *FieldRuleBuilder {
	b.rule.MinValue = &v
	return b
}

func (b *FieldRuleBuilder) Custom(fn func(value string) error) *FieldRuleBuilder {
	b.rule.Custom = fn
	return b
}

func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator applies rules to rows and collects the failures
type FieldValidator struct {
	rules  []FieldRule
	errors *ErrorCollection
}

// NewFieldValidator creates a validator keeping at most maxErrors errors
func NewFieldValidator(rules []FieldRule, maxErrors int) *FieldValidator {
	return &FieldValidator{rules: rules, errors: NewErrorCollection(maxErrors)}
}

// ValidateRow checks every rule against row and reports whether it passed
func (v *FieldValidator) ValidateRow(row *Row) bool {
	valid := true
	for _, rule := range v.rules {
		value := row.Get(rule.Column)
		if value == "" {
			if rule.Required {
				v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: ErrCodeRequired, Message: "value is required"})
				valid = false
			}
			continue
		}

		if err := checkType(value, rule); err != nil {
			v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: ErrCodeInvalidType, Message: err.Error(), Value: value})
			valid = false
			continue
		}
		if rule.MinValue != nil {
			if d, _ := decimal.NewFromString(value); d.LessThan(*rule.MinValue) {
				v.errors.Add(RowError{
					Row:     row.Line,
					Column:  rule.Column,
					Code:    ErrCodeInvalidRange,
					Message: fmt.Sprintf("must be at least %s", rule.MinValue.String()),
					Value:   value,
				})
				valid = false
				continue
			}
		}
		if rule.Custom != nil {
			if err := rule.Custom(value); err != nil {
				v.errors.Add(RowError{Row: row.Line, Column: rule.Column, Code: ErrCodeInvalidValue, Message: err.Error(), Value: value})
				valid = false
			}
		}
	}
	return valid
}

// Errors returns the collected failures
func (v *FieldValidator) Errors() *ErrorCollection {
	return v.errors
}

func checkType(value string, rule FieldRule) error {
	switch rule.Type {
	case FieldTypeDecimal:
		if _, err := decimal.NewFromString(value); err != nil {
			return fmt.Errorf("must be a decimal number")
		}
	case FieldTypeUUID:
		if _, err := uuid.Parse(value); err != nil {
			return fmt.Errorf("must be a UUID")
		}
	}
	return nil
}
