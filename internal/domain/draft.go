package domain

import "strings"

// Brand is the only brand handled by the hot bags desk.
const Brand = "Hermès"

// Confidence expresses how sure the pipeline is about a field value.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// Source records which stage produced a field value.
type Source string

const (
	SourceDeterministic Source = "deterministic"
	SourceAI            Source = "ai"
	SourceOperator      Source = "operator"
	SourceUnknown       Source = "unknown"
)

// BagStyle is a canonical style name, always prefixed with the brand.
type BagStyle string

// BagStyles is the style lexicon. Declaration order matters: extraction picks
// the first entry that matches, not the first occurrence in the text.
var BagStyles = []BagStyle{
	"Hermès Birkin",
	"Hermès Kelly",
	"Hermès Kelly Elan",
	"Hermès Constance",
	"Hermès Picotin",
	"Hermès Lindy",
	"Hermès Herbag",
	"Hermès Bolide",
	"Hermès Evelyne",
	"Hermès Jige",
	"Hermès Garden Party",
	"Hermès Aline",
	"Hermès Berline",
	"Hermès Egee",
	"Hermès Farming",
	"Hermès Geta",
	"Hermès H Passant",
	"Hermès Hac a Dos",
	"Hermès Medor",
	"Hermès Minuit au Faubourg",
	"Hermès Multiplis",
	"Hermès Rio",
	"Hermès Roulis",
	"Hermès Sac a Depeche",
	"Hermès Sac Mallette",
	"Hermès Sac a Pansage",
	"Hermès Toolbox",
	"Hermès Verrou",
	"Hermès 2002",
	"Hermès Boucle Sellier Chaîne",
}

// ShortName returns the style without the brand prefix ("Birkin").
func (s BagStyle) ShortName() string {
	return strings.TrimSpace(strings.TrimPrefix(string(s), Brand))
}

// Condition is the seller-declared wear grade.
type Condition string

var Conditions = []Condition{"Brand new", "Excellent", "Lightly used", "Used"}

// Currency is the listing currency code.
type Currency string

const (
	CurrencyGBP     Currency = "GBP"
	CurrencyEUR     Currency = "EUR"
	CurrencyUSD     Currency = "USD"
	CurrencyUnknown Currency = "Unknown"
)

var Currencies = []Currency{CurrencyGBP, CurrencyEUR, CurrencyUSD, CurrencyUnknown}

// ImageStatus tells the publisher where listing photos come from.
type ImageStatus string

const (
	ImageReseller      ImageStatus = "reseller"
	ImageAIPlaceholder ImageStatus = "ai_placeholder"
	ImageNone          ImageStatus = "none"
)

var ImageStatuses = []ImageStatus{ImageReseller, ImageAIPlaceholder, ImageNone}

// Field wraps an extracted value with its provenance.
type Field[T any] struct {
	Value      T          `json:"value"`
	Confidence Confidence `json:"confidence"`
	Source     Source     `json:"source"`
	Note       string     `json:"note,omitempty"`
}

// MetaobjectRef points at a controlled-vocabulary entry in the catalog.
// ID stays empty until the label has been resolved.
type MetaobjectRef struct {
	Label  string `json:"label"`
	ID     string `json:"id,omitempty"`
	Handle string `json:"handle,omitempty"`
}

// Dimensions in centimetres; zero means not stated.
type Dimensions struct {
	LengthCM float64 `json:"length_cm,omitempty"`
	WidthCM  float64 `json:"width_cm,omitempty"`
	HeightCM float64 `json:"height_cm,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// Provenance keeps the raw inputs a draft was built from.
type Provenance struct {
	SourceText      string        `json:"source_text"`
	SourceMessageID string        `json:"source_message_id,omitempty"`
	SourceChatID    string        `json:"source_chat_id,omitempty"`
	LatestCheck     *CheckMessage `json:"latest_check,omitempty"`
}

// Draft is the working listing for a deal. It is a value: mutations go
// through functions that return a new Draft, and LatestCheck is never
// modified after it has been attached.
type Draft struct {
	Brand        string               `json:"brand"`
	BagStyle     Field[BagStyle]      `json:"bag_style"`
	BagSizeCM    Field[int]           `json:"bag_size_cm"`
	Colour       Field[MetaobjectRef] `json:"hermes_colour"`
	Material     Field[MetaobjectRef] `json:"hermes_material"`
	Hardware     Field[MetaobjectRef] `json:"hermes_hardware"`
	Construction Field[MetaobjectRef] `json:"hermes_construction"`
	Dimensions   Field[Dimensions]    `json:"dimensions"`
	Stamp        Field[string]        `json:"stamp"`
	Condition    Field[Condition]     `json:"condition"`
	Price        Field[float64]       `json:"price"`
	Currency     Field[Currency]      `json:"currency"`
	Receipt      Field[string]        `json:"receipt"`
	Accessories  Field[string]        `json:"accessories"`
	Notes        Field[string]        `json:"notes"`
	ImageStatus  ImageStatus          `json:"image_status"`
	Provenance   Provenance           `json:"provenance"`
}

// MetaobjectField names one of the four controlled attributes of a draft.
type MetaobjectField string

const (
	FieldColour       MetaobjectField = "hermes_colour"
	FieldMaterial     MetaobjectField = "hermes_material"
	FieldHardware     MetaobjectField = "hermes_hardware"
	FieldConstruction MetaobjectField = "hermes_construction"
)

// MetaobjectFields lists the controlled attributes in rendering order.
var MetaobjectFields = []MetaobjectField{FieldColour, FieldMaterial, FieldHardware, FieldConstruction}

// Metaobject returns the reference held by the given controlled field.
func (d Draft) Metaobject(f MetaobjectField) MetaobjectRef {
	switch f {
	case FieldColour:
		return d.Colour.Value
	case FieldMaterial:
		return d.Material.Value
	case FieldHardware:
		return d.Hardware.Value
	case FieldConstruction:
		return d.Construction.Value
	}
	return MetaobjectRef{}
}

// WithMetaobjectIDs returns a copy of d whose controlled fields carry the
// given catalog ids. Labels, confidence and source are left untouched.
func (d Draft) WithMetaobjectIDs(ids map[MetaobjectField]string) Draft {
	next := d
	for f, id := range ids {
		switch f {
		case FieldColour:
			next.Colour.Value.ID = id
		case FieldMaterial:
			next.Material.Value.ID = id
		case FieldHardware:
			next.Hardware.Value.ID = id
		case FieldConstruction:
			next.Construction.Value.ID = id
		}
	}
	return next
}

// WithLatestCheck returns a copy of d with the CHECK snapshot replaced.
func (d Draft) WithLatestCheck(check *CheckMessage) Draft {
	next := d
	next.Provenance.LatestCheck = check
	return next
}

// LookupBagStyle matches s case-insensitively against the lexicon, accepting
// both the full name and the name without the brand prefix.
func LookupBagStyle(s string) (BagStyle, bool) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, style := range BagStyles {
		if needle == strings.ToLower(string(style)) || needle == strings.ToLower(style.ShortName()) {
			return style, true
		}
	}
	return "", false
}

// LookupCondition matches s case-insensitively against the condition grades.
func LookupCondition(s string) (Condition, bool) {
	needle := strings.TrimSpace(s)
	for _, c := range Conditions {
		if strings.EqualFold(needle, string(c)) {
			return c, true
		}
	}
	return "", false
}

// LookupCurrency matches s case-insensitively against the currency codes.
func LookupCurrency(s string) (Currency, bool) {
	needle := strings.TrimSpace(s)
	for _, c := range Currencies {
		if strings.EqualFold(needle, string(c)) {
			return c, true
		}
	}
	return "", false
}

func validBagStyle(s BagStyle) bool {
	for _, style := range BagStyles {
		if s == style {
			return true
		}
	}
	return false
}

func validCondition(c Condition) bool {
	for _, v := range Conditions {
		if c == v {
			return true
		}
	}
	return false
}

func validCurrency(c Currency) bool {
	for _, v := range Currencies {
		if c == v {
			return true
		}
	}
	return false
}

func validImageStatus(s ImageStatus) bool {
	for _, v := range ImageStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func validConfidence(c Confidence) bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceUnknown:
		return true
	}
	return false
}

func validSource(s Source) bool {
	switch s {
	case SourceDeterministic, SourceAI, SourceOperator, SourceUnknown:
		return true
	}
	return false
}
