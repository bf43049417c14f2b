package alerts

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// band is one of the price bands the status code orders and positions
// against: AVWAP, VWAP, or an EMA of some period. Grounded on
// AlertsProcessorTypes.py's BandType/BandInfo.
type band struct {
	label string // e.g. "AVWAP", "VWAP", "EMA21"
	value decimal.Decimal
}

// shortCode mirrors BandInfo._generateShortCode: EMA21->'2', EMA34->'3',
// EMA12->'1', any other EMA<n> -> the numeric suffix, anything else -> its
// first character.
func (b band) shortCode() string {
	switch b.label {
	case "EMA21":
		return "2"
	case "EMA34":
		return "3"
	case "EMA12":
		return "1"
	}
	if strings.HasPrefix(b.label, "EMA") {
		return b.label[3:]
	}
	return b.label[:1]
}

// bandOrderCode sorts the present (non-null) bands descending by value and
// concatenates their short codes, e.g. "AV23".
func bandOrderCode(bands []band) string {
	sorted := make([]band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].value.GreaterThan(sorted[j].value) })
	var sb strings.Builder
	for _, b := range sorted {
		sb.WriteString(b.shortCode())
	}
	return sb.String()
}

// positionCode finds the two adjacent bands enclosing close and encodes the
// touch/position relationship, per spec.md §4.9's status encoding rule.
func positionCode(bands []band, low, high, close decimal.Decimal) string {
	if len(bands) == 0 {
		return ""
	}
	sorted := make([]band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].value.GreaterThan(sorted[j].value) })

	top := sorted[0]
	bottom := sorted[len(sorted)-1]

	switch {
	case close.GreaterThan(top.value):
		// Above all bands: enclosing = (inf, top).
		if low.LessThanOrEqual(top.value) && top.value.LessThanOrEqual(high) {
			return top.shortCode() + "A"
		}
		return top.shortCode() + "AC"
	case close.LessThan(bottom.value):
		// Below all bands: enclosing = (bottom, -inf).
		if low.LessThanOrEqual(bottom.value) && bottom.value.LessThanOrEqual(high) {
			return bottom.shortCode() + "B"
		}
		return bottom.shortCode() + "BC"
	default:
		// Between two adjacent bands.
		var lower, higher band
		for i := 0; i < len(sorted)-1; i++ {
			if sorted[i].value.GreaterThanOrEqual(close) && close.GreaterThanOrEqual(sorted[i+1].value) {
				higher = sorted[i]
				lower = sorted[i+1]
				break
			}
		}
		if low.LessThanOrEqual(lower.value) && lower.value.LessThanOrEqual(high) {
			return lower.shortCode() + "A"
		}
		if low.LessThanOrEqual(higher.value) && higher.value.LessThanOrEqual(high) {
			return higher.shortCode() + "B"
		}
		return higher.shortCode() + "BC"
	}
}

// encodeStatus builds "<bandOrderCode>_<positionCode>" for a set of bands.
func encodeStatus(bands []band, low, high, close decimal.Decimal) string {
	order := bandOrderCode(bands)
	pos := positionCode(bands, low, high, close)
	return order + "_" + pos
}

// didTouch reports whether [low, high] contains value — the shared touch
// test used both for the status encoding and for band-touch event detection.
func didTouch(low, high, value decimal.Decimal) bool {
	return low.LessThanOrEqual(value) && value.LessThanOrEqual(high)
}
