package receipt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/bdzhonsoniuk/backend-receipts/internal/common"
)

// Line width bounds accepted by Render.
const (
	MinLineWidth = 20
	MaxLineWidth = 100
)

// nameWrapMargin is subtracted from the line width when wrapping product names
// so they never collide with the amount column.
const nameWrapMargin = 20

// amountColWidth is the width of the right-aligned numeric column in the
// totals block.
const amountColWidth = 10

const (
	defaultMerchantName = "ФОП Джонсонюк Борис"
	defaultFooter       = "Дякуємо за покупку!"

	labelTotal    = "СУМА"
	labelCash     = "Готівка"
	labelCashless = "Картка"
	labelRest     = "Решта"
)

// RenderOptions customises the merchant header and footer lines.
type RenderOptions struct {
	MerchantName string
	Footer       string
}

// ValidateLineWidth rejects widths outside the accepted rendering range.
func ValidateLineWidth(lineWidth int) error {
	if lineWidth < MinLineWidth || lineWidth > MaxLineWidth {
		return &common.AppError{
			Code:       "VALIDATION_ERROR",
			Message:    fmt.Sprintf("line width must be between %d and %d", MinLineWidth, MaxLineWidth),
			HTTPStatus: 422,
		}
	}
	return nil
}

// Render produces a fixed-width plain-text layout of the receipt. All width
// arithmetic counts runes so Cyrillic labels line up with ASCII amounts.
func Render(rc Receipt, lineWidth int, opts RenderOptions) (string, error) {
	if err := ValidateLineWidth(lineWidth); err != nil {
		return "", err
	}

	merchant := opts.MerchantName
	if strings.TrimSpace(merchant) == "" {
		merchant = defaultMerchantName
	}
	footer := opts.Footer
	if strings.TrimSpace(footer) == "" {
		footer = defaultFooter
	}

	thick := strings.Repeat("=", lineWidth)
	thin := strings.Repeat("-", lineWidth)

	lines := make([]string, 0, 8+4*len(rc.Items))
	lines = append(lines, center(merchant, lineWidth), thick)

	for _, item := range rc.Items {
		qty := decimal.NewFromInt(item.Quantity).StringFixed(2)
		left := fmt.Sprintf("%s x %s", qty, item.Price.StringFixed(2))
		lines = append(lines, spread(left, item.Total.StringFixed(2), lineWidth))
		lines = append(lines, wrapWords(item.Name, lineWidth-nameWrapMargin)...)
		lines = append(lines, thin)
	}

	paymentLabel := labelCash
	if rc.PaymentKind == PaymentCashless {
		paymentLabel = labelCashless
	}

	lines = append(lines,
		thick,
		summaryLine(labelTotal, rc.TotalAmount, lineWidth),
		summaryLine(paymentLabel, rc.PaymentAmount, lineWidth),
		summaryLine(labelRest, rc.RestAmount, lineWidth),
		thick,
		center(rc.CreatedAt.Format("02.01.2006 15:04"), lineWidth),
		center(footer, lineWidth),
	)

	return strings.Join(lines, "\n"), nil
}

// wrapWords greedily wraps text into lines of at most width runes. Words
// longer than the width are hard-broken so every rune of the input appears in
// the output exactly once.
func wrapWords(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	current := ""
	appendWord := func(word string) {
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		if word != "" {
			appendWord(word)
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}

// center pads text with spaces on both sides to exactly width runes.
func center(text string, width int) string {
	length := utf8.RuneCountInString(text)
	if length >= width {
		return text
	}
	leftPad := (width - length) / 2
	rightPad := width - length - leftPad
	return strings.Repeat(" ", leftPad) + text + strings.Repeat(" ", rightPad)
}

// spread left-aligns one value against a right-aligned one on a single line of
// exactly width runes. At least one space always separates the two.
func spread(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// summaryLine lays out a totals-block row: label padded to width-10 runes and
// the amount right-aligned in a 10-rune column with two decimals.
func summaryLine(label string, amount decimal.Decimal, width int) string {
	labelWidth := width - amountColWidth
	padded := label
	if pad := labelWidth - utf8.RuneCountInString(label); pad > 0 {
		padded += strings.Repeat(" ", pad)
	}
	value := amount.StringFixed(2)
	if pad := amountColWidth - utf8.RuneCountInString(value); pad > 0 {
		value = strings.Repeat(" ", pad) + value
	}
	return padded + value
}
