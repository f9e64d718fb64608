// Package extract turns the flattened body of an order-confirmation
// email into a structured swipe candidate. Campus Grubhub receipts are
// wildly inconsistent, so every field is pulled out by an ordered list
// of heuristics; the first one that matches wins and later ones never
// override it. Extraction is pure: the same body always yields the
// same candidate.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// snippetLimit bounds RawSnippet, which exists only for
	// debugging and audit.
	snippetLimit = 1200

	// maxItems caps line-item extraction so a malformed receipt
	// cannot spam the result.
	maxItems = 8
)

// Parsed is the candidate pulled out of one message body. Meals == 0
// means no meal usage could be recovered; the message is then not a
// swipe event and must be discarded by the caller.
type Parsed struct {
	Meals      int
	OrderID    string
	Store      string
	Items      []string
	RawSnippet string
}

var (
	reSpace = regexp.MustCompile(`\s+`)

	reMealsUsed     = regexp.MustCompile(`(?i)Meals\s*Used\s*[:\-\s]?\s*(\d+)`)
	reMealSwipeUsed = regexp.MustCompile(`(?i)Meal\s*Swipe\s*Used\s*[:\-\s]?\s*(\d+)`)
	reMealsBare     = regexp.MustCompile(`(?i)\bMeals\s*[:\-\s]?\s*(\d+)`)
	reMealsShort    = regexp.MustCompile(`(?i)\b(\d+)\s*M\b`)
	rePaidUsing     = regexp.MustCompile(`(?i)Paid\s+Using\s*:\s*([^<\n\r]+)`)
	rePaidMeal      = regexp.MustCompile(`(?i)\bmeal(?:\s*swipe)?\b`)
	rePaidNum       = regexp.MustCompile(`(?i)(\d+)\s*(?:meal|meals|M)`)
	reMealValue     = regexp.MustCompile(`(?i)Meal\s*Value`)

	reOrderLabeled = regexp.MustCompile(`(?i)Order\s*(?:#|number|No\.?)\s*[:#]?\s*([0-9A-Za-z\-]+)`)
	reOrderColon   = regexp.MustCompile(`(?i)Order\s*[:\-]\s*([0-9A-Za-z\-]+)`)
	reOrderHash    = regexp.MustCompile(`(?i)Order\s*#\s*(\d+)`)

	reShop      = regexp.MustCompile(`(?i)Shop\s*[:\-]\s*([A-Za-z0-9 &'\-]+)`)
	rePickup    = regexp.MustCompile(`(?i)Pickup\s*(?:from)?\s*[:\-]?\s*([A-Za-z0-9 &'\-]+)`)
	reTopVendor = regexp.MustCompile(`^([A-Z][a-zA-Z '&\-]{2,40})\b`)

	reItemLine   = regexp.MustCompile(`(?:\b\d+x?\s*)?([A-Z0-9][A-Za-z0-9'&\-\s]{3,60})\s*\$?\d{0,3}\.?\d{0,2}`)
	reNonItem    = regexp.MustCompile(`(?i)subtotal|tax|tip|meal value|order approved|paid using|locker|pickup`)
	reItemsBlock = regexp.MustCompile(`(?i)ITEMS\s*[:\-]\s*(.+?)\s*(?:Subtotal|Service fee|Total|PAYMENT)`)
	reItemsSplit = regexp.MustCompile(`[+\n;,]`)
)

// mealRule is one step of the meal-count cascade. Returning 0 means
// "no opinion"; the first rule to return a positive count wins.
type mealRule struct {
	name string
	fn   func(body string) int
}

var mealRules = []mealRule{
	{"labeled-count", func(body string) int {
		for _, re := range []*regexp.Regexp{reMealsUsed, reMealSwipeUsed, reMealsBare} {
			if m := re.FindStringSubmatch(body); m != nil {
				return atoi(m[1])
			}
		}
		return 0
	}},
	{"compact-suffix", func(body string) int {
		if m := reMealsShort.FindStringSubmatch(body); m != nil {
			return atoi(m[1])
		}
		return 0
	}},
	{"payment-line", func(body string) int {
		m := rePaidUsing.FindStringSubmatch(body)
		if m == nil || !rePaidMeal.MatchString(m[1]) {
			return 0
		}
		if n := rePaidNum.FindStringSubmatch(m[1]); n != nil {
			return atoi(n[1])
		}
		// A meal payment line with no count is a single swipe.
		return 1
	}},
	{"meal-value-presence", func(body string) int {
		if reMealValue.MatchString(body) {
			return 1
		}
		return 0
	}},
}

// Parse extracts a swipe candidate from a message body. The body is
// expected to be all MIME parts concatenated; Parse collapses
// whitespace itself so callers can hand over raw decoded text.
func Parse(body string) Parsed {
	body = strings.TrimSpace(reSpace.ReplaceAllString(body, " "))

	p := Parsed{
		Meals:      meals(body),
		OrderID:    orderID(body),
		Store:      store(body),
		Items:      items(body),
		RawSnippet: body,
	}
	if len(p.RawSnippet) > snippetLimit {
		p.RawSnippet = p.RawSnippet[:snippetLimit]
	}
	return p
}

func meals(body string) int {
	for _, rule := range mealRules {
		if n := rule.fn(body); n > 0 {
			return n
		}
	}
	return 0
}

func orderID(body string) string {
	for _, re := range []*regexp.Regexp{reOrderLabeled, reOrderColon, reOrderHash} {
		if m := re.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}

func store(body string) string {
	if m := reShop.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := rePickup.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Some receipts lead with the vendor, like "Qdoba Pickup ...".
	if m := reTopVendor.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func items(body string) []string {
	var out []string
	for _, m := range reItemLine.FindAllStringSubmatch(body, -1) {
		if len(out) >= maxItems {
			break
		}
		candidate := strings.TrimSpace(m[1])
		if reNonItem.MatchString(candidate) {
			continue
		}
		if len(candidate) > 2 && len(candidate) < 80 {
			out = append(out, candidate)
		}
	}
	if len(out) > 0 {
		return out
	}

	// Fall back to an "ITEMS: a + b + c" block terminated by a
	// totals line.
	m := reItemsBlock.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	for _, raw := range reItemsSplit.Split(m[1], -1) {
		if len(out) >= maxItems {
			break
		}
		it := strings.TrimSpace(raw)
		if len(it) > 2 {
			out = append(out, reSpace.ReplaceAllString(it, " "))
		}
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
