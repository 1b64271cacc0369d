package usecase

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hotbags/backend/internal/domain"
)

type editFunc func(d *domain.Draft, value string) error

// editableFields is the allow-list of operator edit keys.
var editableFields = map[string]editFunc{
	"bag_style": func(d *domain.Draft, value string) error {
		style, ok := domain.LookupBagStyle(value)
		if !ok {
			return &domain.EditError{Key: "bag_style", Value: value, Reason: "unknown bag style"}
		}
		d.BagStyle = operatorField(style)
		return nil
	},
	"bag_size_cm": func(d *domain.Draft, value string) error {
		size, err := strconv.Atoi(value)
		if err != nil {
			return &domain.EditError{Key: "bag_size_cm", Value: value, Reason: "bag size is not an integer"}
		}
		d.BagSizeCM = operatorField(size)
		return nil
	},
	"condition": func(d *domain.Draft, value string) error {
		c, ok := domain.LookupCondition(value)
		if !ok {
			return &domain.EditError{Key: "condition", Value: value, Reason: "unknown condition"}
		}
		d.Condition = operatorField(c)
		return nil
	},
	"price": func(d *domain.Draft, value string) error {
		price, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		if err != nil {
			return &domain.EditError{Key: "price", Value: value, Reason: "price is not a number"}
		}
		d.Price = operatorField(price)
		return nil
	},
	"currency": func(d *domain.Draft, value string) error {
		c, ok := domain.LookupCurrency(value)
		if !ok {
			return &domain.EditError{Key: "currency", Value: value, Reason: "unknown currency"}
		}
		d.Currency = operatorField(c)
		return nil
	},
	"hermes_colour.label":       labelEdit("hermes_colour.label", func(d *domain.Draft) *domain.Field[domain.MetaobjectRef] { return &d.Colour }),
	"hermes_material.label":     labelEdit("hermes_material.label", func(d *domain.Draft) *domain.Field[domain.MetaobjectRef] { return &d.Material }),
	"hermes_hardware.label":     labelEdit("hermes_hardware.label", func(d *domain.Draft) *domain.Field[domain.MetaobjectRef] { return &d.Hardware }),
	"hermes_construction.label": labelEdit("hermes_construction.label", func(d *domain.Draft) *domain.Field[domain.MetaobjectRef] { return &d.Construction }),
	"stamp":                     textEdit(func(d *domain.Draft) *domain.Field[string] { return &d.Stamp }),
	"receipt":                   textEdit(func(d *domain.Draft) *domain.Field[string] { return &d.Receipt }),
	"accessories":               textEdit(func(d *domain.Draft) *domain.Field[string] { return &d.Accessories }),
	"notes":                     textEdit(func(d *domain.Draft) *domain.Field[string] { return &d.Notes }),
}

// EditableKeys returns the accepted edit keys in sorted order.
func EditableKeys() []string {
	keys := make([]string, 0, len(editableFields))
	for k := range editableFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyEdits returns a new draft with the operator edits applied. The whole
// set is rejected if any key is unsupported, any value fails its check, or
// the edited draft fails validation; the input draft is never modified.
// Keys are matched case-insensitively.
func ApplyEdits(d domain.Draft, edits map[string]string) (domain.Draft, error) {
	keys := make([]string, 0, len(edits))
	for k := range edits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	apply := make([]editFunc, len(keys))
	for i, k := range keys {
		fn, ok := editableFields[strings.ToLower(strings.TrimSpace(k))]
		if !ok {
			return d, &domain.EditError{Key: k, Value: edits[k], Reason: "unsupported edit key"}
		}
		apply[i] = fn
	}

	next := d
	for i, k := range keys {
		if err := apply[i](&next, edits[k]); err != nil {
			return d, err
		}
	}

	if err := next.Validate(); err != nil {
		return d, err
	}
	return next, nil
}

func operatorField[T any](v T) domain.Field[T] {
	return domain.Field[T]{Value: v, Confidence: domain.ConfidenceHigh, Source: domain.SourceOperator}
}

// labelEdit replaces the label of a controlled field. The catalog id is
// cleared because it belonged to the previous label.
func labelEdit(key string, field func(*domain.Draft) *domain.Field[domain.MetaobjectRef]) editFunc {
	return func(d *domain.Draft, value string) error {
		if value == "" {
			return &domain.EditError{Key: key, Reason: "label cannot be empty"}
		}
		f := field(d)
		*f = operatorField(domain.MetaobjectRef{Label: value})
		return nil
	}
}

func textEdit(field func(*domain.Draft) *domain.Field[string]) editFunc {
	return func(d *domain.Draft, value string) error {
		*field(d) = operatorField(value)
		return nil
	}
}
