package serialdev

import "strings"

const (
	itemPrefix  = "ITEM:"
	triggerLine = "TRIGGER"
)

// itemCodes maps the short codes printed by the reader board to item names.
var itemCodes = map[string]string{
	"cig":  "cigarette",
	"beer": "beer",
	"saw":  "saw",
	"cuff": "handcuffs",
	"mag":  "magnifyingglass",
}

// LineKind is the semantic class of a device line.
type LineKind int

const (
	LineUnrecognized LineKind = iota
	LineItemDetected
	LineTriggerPulled
)

func (k LineKind) String() string {
	switch k {
	case LineItemDetected:
		return "item_detected"
	case LineTriggerPulled:
		return "trigger_pulled"
	default:
		return "unrecognized"
	}
}

// Line is a classified device line.
type Line struct {
	Kind LineKind
	Raw  string
	Code string // lower-cased item code, only for LineItemDetected
	Item string // resolved item name, only for LineItemDetected
}

// Classify turns a trimmed line into a semantic event.
func Classify(raw string) Line {
	line := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(line, itemPrefix):
		code := strings.ToLower(strings.TrimSpace(line[len(itemPrefix):]))
		return Line{Kind: LineItemDetected, Raw: line, Code: code, Item: ItemForCode(code)}
	case line == triggerLine:
		return Line{Kind: LineTriggerPulled, Raw: line}
	default:
		return Line{Kind: LineUnrecognized, Raw: line}
	}
}

// ItemForCode resolves a device code. Unknown codes pass through lower-cased.
func ItemForCode(code string) string {
	code = strings.ToLower(code)
	if item, ok := itemCodes[code]; ok {
		return item
	}
	return code
}
