package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const draftSchemaURL = "https://hotbags.schemas.local/draft.schema.json"

var (
	draftSchemaOnce sync.Once
	draftSchema     *jsonschema.Schema
	draftSchemaErr  error
)

// ValidateDraft decodes raw JSON into a Draft, checking it against the draft
// schema first. Any missing or out-of-domain field fails the whole decode.
// Validating the serialized form of a valid Draft returns an equal Draft.
func ValidateDraft(raw []byte) (Draft, error) {
	schema, err := compiledDraftSchema()
	if err != nil {
		return Draft{}, err
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Draft{}, &ValidationError{Issues: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return Draft{}, &ValidationError{Issues: schemaIssues(ve)}
		}
		return Draft{}, &ValidationError{Issues: []string{err.Error()}}
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, &ValidationError{Issues: []string{fmt.Sprintf("decode draft: %v", err)}}
	}
	if d.ImageStatus == "" {
		d.ImageStatus = ImageReseller
	}

	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// SerializeDraft encodes a Draft after checking it is valid; an invalid
// draft is never handed to storage or rendering.
func SerializeDraft(d Draft) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(d)
}

// Validate checks an in-memory Draft against the same domain rules the JSON
// schema enforces.
func (d Draft) Validate() error {
	var issues []string
	add := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if d.Brand != Brand {
		add("brand: must be %q", Brand)
	}

	if !validBagStyle(d.BagStyle.Value) {
		add("bag_style.value: unknown style %q", d.BagStyle.Value)
	}
	checkMeta(add, "bag_style", d.BagStyle.Confidence, d.BagStyle.Source)

	if d.BagSizeCM.Value < 1 || d.BagSizeCM.Value > 60 {
		add("bag_size_cm.value: %d out of range 1-60", d.BagSizeCM.Value)
	}
	checkMeta(add, "bag_size_cm", d.BagSizeCM.Confidence, d.BagSizeCM.Source)

	refs := []struct {
		name  MetaobjectField
		field Field[MetaobjectRef]
	}{
		{FieldColour, d.Colour},
		{FieldMaterial, d.Material},
		{FieldHardware, d.Hardware},
		{FieldConstruction, d.Construction},
	}
	for _, ref := range refs {
		if strings.TrimSpace(ref.field.Value.Label) == "" {
			add("%s.value.label: must not be empty", ref.name)
		}
		checkMeta(add, string(ref.name), ref.field.Confidence, ref.field.Source)
	}

	dims := d.Dimensions.Value
	if dims.LengthCM < 0 || dims.WidthCM < 0 || dims.HeightCM < 0 {
		add("dimensions.value: must be non-negative")
	}
	checkMeta(add, "dimensions", d.Dimensions.Confidence, d.Dimensions.Source)

	checkMeta(add, "stamp", d.Stamp.Confidence, d.Stamp.Source)

	if !validCondition(d.Condition.Value) {
		add("condition.value: unknown condition %q", d.Condition.Value)
	}
	checkMeta(add, "condition", d.Condition.Confidence, d.Condition.Source)

	if !(d.Price.Value > 0) || math.IsInf(d.Price.Value, 0) {
		add("price.value: must be positive")
	}
	checkMeta(add, "price", d.Price.Confidence, d.Price.Source)

	if !validCurrency(d.Currency.Value) {
		add("currency.value: unknown currency %q", d.Currency.Value)
	}
	checkMeta(add, "currency", d.Currency.Confidence, d.Currency.Source)

	checkMeta(add, "receipt", d.Receipt.Confidence, d.Receipt.Source)
	checkMeta(add, "accessories", d.Accessories.Confidence, d.Accessories.Source)
	checkMeta(add, "notes", d.Notes.Confidence, d.Notes.Source)

	if !validImageStatus(d.ImageStatus) {
		add("image_status: unknown status %q", d.ImageStatus)
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func checkMeta(add func(string, ...interface{}), name string, c Confidence, s Source) {
	if !validConfidence(c) {
		add("%s.confidence: unknown confidence %q", name, c)
	}
	if !validSource(s) {
		add("%s.source: unknown source %q", name, s)
	}
}

func schemaIssues(ve *jsonschema.ValidationError) []string {
	var issues []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			issues = append(issues, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(issues)
	return issues
}

func compiledDraftSchema() (*jsonschema.Schema, error) {
	draftSchemaOnce.Do(func() {
		doc, err := json.Marshal(draftSchemaDocument())
		if err != nil {
			draftSchemaErr = fmt.Errorf("marshal draft schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(draftSchemaURL, strings.NewReader(string(doc))); err != nil {
			draftSchemaErr = fmt.Errorf("draft schema load failed: %w", err)
			return
		}
		draftSchema, draftSchemaErr = c.Compile(draftSchemaURL)
	})
	return draftSchema, draftSchemaErr
}

// draftSchemaDocument builds the JSON Schema from the Go lexicons so the enum
// lists live in one place.
func draftSchemaDocument() map[string]interface{} {
	meta := func(value map[string]interface{}, valueRequired bool) map[string]interface{} {
		required := []string{"confidence", "source"}
		if valueRequired {
			required = append([]string{"value"}, required...)
		}
		return map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"value":      value,
				"confidence": map[string]interface{}{"enum": []string{"high", "medium", "low", "unknown"}},
				"source":     map[string]interface{}{"enum": []string{"deterministic", "ai", "operator", "unknown"}},
				"note":       map[string]interface{}{"type": "string"},
			},
			"required": required,
		}
	}
	str := map[string]interface{}{"type": "string"}
	ref := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"label":  map[string]interface{}{"type": "string", "minLength": 1},
			"id":     str,
			"handle": str,
		},
		"required": []string{"label"},
	}
	nonNeg := map[string]interface{}{"type": "number", "minimum": 0}

	styles := make([]string, len(BagStyles))
	for i, s := range BagStyles {
		styles[i] = string(s)
	}
	conditions := make([]string, len(Conditions))
	for i, c := range Conditions {
		conditions[i] = string(c)
	}
	currencies := make([]string, len(Currencies))
	for i, c := range Currencies {
		currencies[i] = string(c)
	}
	images := make([]string, len(ImageStatuses))
	for i, s := range ImageStatuses {
		images[i] = string(s)
	}

	return map[string]interface{}{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"$id":     draftSchemaURL,
		"type":    "object",
		"properties": map[string]interface{}{
			"brand":               map[string]interface{}{"const": Brand},
			"bag_style":           meta(map[string]interface{}{"enum": styles}, true),
			"bag_size_cm":         meta(map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 60}, true),
			"hermes_colour":       meta(ref, true),
			"hermes_material":     meta(ref, true),
			"hermes_hardware":     meta(ref, true),
			"hermes_construction": meta(ref, true),
			"dimensions": meta(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"length_cm": nonNeg,
					"width_cm":  nonNeg,
					"height_cm": nonNeg,
					"note":      str,
				},
			}, true),
			"stamp":        meta(str, false),
			"condition":    meta(map[string]interface{}{"enum": conditions}, true),
			"price":        meta(map[string]interface{}{"type": "number", "exclusiveMinimum": 0}, true),
			"currency":     meta(map[string]interface{}{"enum": currencies}, true),
			"receipt":      meta(str, false),
			"accessories":  meta(str, false),
			"notes":        meta(str, false),
			"image_status": map[string]interface{}{"enum": images},
			"provenance": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source_text":       str,
					"source_message_id": str,
					"source_chat_id":    str,
					"latest_check":      map[string]interface{}{"type": "object"},
				},
			},
		},
		"required": []string{
			"brand", "bag_style", "bag_size_cm",
			"hermes_colour", "hermes_material", "hermes_hardware", "hermes_construction",
			"dimensions", "stamp", "condition", "price", "currency",
			"receipt", "accessories", "notes", "provenance",
		},
	}
}
