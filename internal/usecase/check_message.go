package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/hotbags/backend/internal/domain"
)

// Instructions sent at the bottom of every CHECK message
var checkInstructions = []string{
	"Reply YES to publish",
	"Reply CANCEL to stop",
	"Reply EDIT then key=value lines (e.g. bag_size_cm=25)",
}

var pricePrinter = message.NewPrinter(language.BritishEnglish)

// BuildTitle returns the one-line summary of a draft, e.g.
// "Hermès Birkin 25cm Gold Togo Gold".
func BuildTitle(d domain.Draft) string {
	return fmt.Sprintf("%s %s %dcm %s %s %s",
		domain.Brand,
		d.BagStyle.Value.ShortName(),
		d.BagSizeCM.Value,
		d.Colour.Value.Label,
		d.Material.Value.Label,
		d.Hardware.Value.Label,
	)
}

// BuildCheckMessage projects a draft into the operator review message.
// State is always awaiting_confirmation: it describes what the message asks
// for, not where the session currently is.
func BuildCheckMessage(dealID string, draftVersion int, d domain.Draft) *domain.CheckMessage {
	lines := []domain.CheckLine{
		{Key: "Brand", Value: d.Brand, Confidence: domain.ConfidenceHigh, Required: true},
		{Key: "Bag Style", Value: string(d.BagStyle.Value), Confidence: d.BagStyle.Confidence, Required: true},
		{Key: "Bag Size (cm)", Value: strconv.Itoa(d.BagSizeCM.Value), Confidence: d.BagSizeCM.Confidence, Required: true},
		{Key: "Hermès Colour", Value: d.Colour.Value.Label, Confidence: d.Colour.Confidence, Required: true},
		{Key: "Hermès Material", Value: d.Material.Value.Label, Confidence: d.Material.Confidence, Required: true},
		{Key: "Hermès Hardware", Value: d.Hardware.Value.Label, Confidence: d.Hardware.Confidence, Required: true},
		{Key: "Hermès Construction", Value: d.Construction.Value.Label, Confidence: d.Construction.Confidence},
		{Key: "Dimensions", Value: formatDimensions(d.Dimensions.Value), Confidence: d.Dimensions.Confidence},
		{Key: "Stamp", Value: orDefault(d.Stamp.Value, "-"), Confidence: d.Stamp.Confidence},
		{Key: "Condition", Value: string(d.Condition.Value), Confidence: d.Condition.Confidence, Required: true},
		{Key: "Price", Value: FormatPrice(d.Currency.Value, d.Price.Value), Confidence: d.Price.Confidence, Required: true},
		{Key: "Receipt", Value: FormatReceipt(d.Receipt.Value), Confidence: d.Receipt.Confidence},
		{Key: "Accessories", Value: orDefault(d.Accessories.Value, "Not stated"), Confidence: d.Accessories.Confidence},
		{Key: "Notes", Value: orDefault(d.Notes.Value, "-"), Confidence: d.Notes.Confidence},
		{Key: "Image", Value: string(d.ImageStatus), Confidence: domain.ConfidenceUnknown},
	}

	for i := range lines {
		if lines[i].Required && lines[i].Confidence != domain.ConfidenceHigh {
			lines[i].Warning = "please confirm"
		}
	}

	instructions := make([]string, len(checkInstructions))
	copy(instructions, checkInstructions)

	return &domain.CheckMessage{
		DealID:       dealID,
		DraftVersion: draftVersion,
		State:        domain.StateAwaitingConfirmation,
		SummaryTitle: "CHECK — " + BuildTitle(d),
		Lines:        lines,
		Instructions: instructions,
	}
}

// RenderCheckText flattens a CHECK message for a text channel.
func RenderCheckText(check *domain.CheckMessage) string {
	out := make([]string, 0, len(check.Lines)+len(check.Instructions)+1)
	out = append(out, check.SummaryTitle)
	for _, line := range check.Lines {
		out = append(out, fmt.Sprintf("*%s*: %s (%s)", line.Key, line.Value, line.Confidence))
	}
	out = append(out, check.Instructions...)
	return strings.Join(out, "\n")
}

// FormatPrice renders "GBP 12,500" with en-GB digit grouping.
func FormatPrice(currency domain.Currency, amount float64) string {
	return string(currency) + " " + pricePrinter.Sprint(number.Decimal(amount, number.MaxFractionDigits(3)))
}

// FormatReceipt collapses free receipt text into Provided, Not provided or
// Not stated. Any "no" substring counts as a negation.
func FormatReceipt(receipt string) string {
	if receipt == "" {
		return "Not stated"
	}
	lower := strings.ToLower(receipt)
	if strings.Contains(lower, "not") || strings.Contains(lower, "no") || strings.Contains(lower, "without") {
		return "Not provided"
	}
	return "Provided"
}

func formatDimensions(dims domain.Dimensions) string {
	if dims.LengthCM == 0 && dims.WidthCM == 0 && dims.HeightCM == 0 {
		return "-"
	}
	part := func(v float64) string {
		if v == 0 {
			return "?"
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return part(dims.LengthCM) + "×" + part(dims.WidthCM) + "×" + part(dims.HeightCM) + " cm"
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
