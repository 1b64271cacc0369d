package usecase

import (
	"strings"

	"github.com/hotbags/backend/internal/domain"
)

// Receipt values written by extraction
const (
	receiptProvided    = "Provided"
	receiptNotProvided = "Not provided"
)

// DefaultDraft returns the deterministic starting draft for a new deal.
// Every field carries a medium, low or unknown confidence until extraction
// or the operator says otherwise.
func DefaultDraft(sourceText, messageID, chatID string) domain.Draft {
	return domain.Draft{
		Brand:        domain.Brand,
		BagStyle:     deterministic[domain.BagStyle]("Hermès Birkin", domain.ConfidenceMedium),
		BagSizeCM:    deterministic(25, domain.ConfidenceMedium),
		Colour:       deterministic(domain.MetaobjectRef{Label: "Gold"}, domain.ConfidenceMedium),
		Material:     deterministic(domain.MetaobjectRef{Label: "Togo"}, domain.ConfidenceMedium),
		Hardware:     deterministic(domain.MetaobjectRef{Label: "Gold"}, domain.ConfidenceMedium),
		Construction: deterministic(domain.MetaobjectRef{Label: "Sellier"}, domain.ConfidenceLow),
		Dimensions:   deterministic(domain.Dimensions{LengthCM: 25, WidthCM: 12, HeightCM: 20}, domain.ConfidenceLow),
		Stamp:        deterministic("", domain.ConfidenceUnknown),
		Condition:    deterministic[domain.Condition]("Excellent", domain.ConfidenceMedium),
		Price:        deterministic(18000.0, domain.ConfidenceLow),
		Currency:     deterministic(domain.CurrencyGBP, domain.ConfidenceHigh),
		Receipt:      deterministic("", domain.ConfidenceUnknown),
		Accessories:  deterministic("", domain.ConfidenceUnknown),
		Notes:        deterministic("", domain.ConfidenceUnknown),
		ImageStatus:  domain.ImageReseller,
		Provenance: domain.Provenance{
			SourceText:      sourceText,
			SourceMessageID: messageID,
			SourceChatID:    chatID,
		},
	}
}

func deterministic[T any](v T, c domain.Confidence) domain.Field[T] {
	return domain.Field[T]{Value: v, Confidence: c, Source: domain.SourceDeterministic}
}

// ApplyExtraction overlays extracted fields on d with high confidence.
// Values outside the draft's domain are skipped so the result stays valid.
func ApplyExtraction(d domain.Draft, ex Extraction) domain.Draft {
	next := d

	if ex.BagStyle != nil {
		next.BagStyle = deterministic(*ex.BagStyle, domain.ConfidenceHigh)
	}
	if ex.BagSizeCM != nil && *ex.BagSizeCM >= 1 && *ex.BagSizeCM <= 60 {
		next.BagSizeCM = deterministic(*ex.BagSizeCM, domain.ConfidenceHigh)
	}
	if ex.Currency != nil {
		next.Currency = deterministic(*ex.Currency, domain.ConfidenceHigh)
	}
	if ex.Price != nil && *ex.Price > 0 {
		next.Price = deterministic(*ex.Price, domain.ConfidenceHigh)
	}
	if ex.Receipt != nil {
		value := receiptNotProvided
		if *ex.Receipt {
			value = receiptProvided
		}
		next.Receipt = deterministic(value, domain.ConfidenceHigh)
	}
	if ex.Stamp != nil && *ex.Stamp != "" {
		next.Stamp = deterministic(*ex.Stamp, domain.ConfidenceHigh)
	}

	return next
}

// NewDraftFromSource builds the default draft and overlays what the
// extractor finds in the source text.
func (e *Extractor) NewDraftFromSource(sourceText, messageID, chatID string) domain.Draft {
	return ApplyExtraction(DefaultDraft(sourceText, messageID, chatID), e.Extract(sourceText))
}

// MergeSourceText appends next to existing unless it is already contained.
func MergeSourceText(existing, next string) string {
	if existing == "" {
		return next
	}
	if strings.Contains(existing, next) {
		return existing
	}
	return existing + "\n" + next
}

// CorrelationID derives the deal id used when the transport gives none.
func CorrelationID(from, messageID string) string {
	return "wa_" + from + "_" + messageID
}
