package extract

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMealCascade(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"labeled count", "Order approved! Meals Used: 2", 2},
		{"labeled beats compact suffix", "Meals Used: 2 and also 3M elsewhere", 2},
		{"meal swipe used", "Meal Swipe Used - 1", 1},
		{"compact suffix", "Qdoba order 1M total", 1},
		{"paid using defaults to one", "Thanks! Paid Using: Meal Swipe", 1},
		{"paid using with count", "Paid Using: 2 Meal Swipes", 2},
		{"paid using without meal", "Paid Using: Visa ending 4242", 0},
		{"meal value presence", "Your receipt. Meal Value $8.50 applied.", 1},
		{"zero labeled count falls through", "Meals Used: 0 but Meal Value shown", 1},
		{"no indicators", "Your package has shipped.", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Parse(c.body).Meals; got != c.want {
				t.Errorf("Parse(%q).Meals = %d, want %d", c.body, got, c.want)
			}
		})
	}
}

func TestOrderID(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{"Order #ABC-123 is ready", "ABC-123"},
		{"Order number 998877 confirmed", "998877"},
		{"Order No. 12AB", "12AB"},
		{"Order: X9-2", "X9-2"},
		{"Order - 777", "777"},
		{"no order mentioned here", ""},
	}
	for _, c := range cases {
		if got := Parse(c.body).OrderID; got != c.want {
			t.Errorf("Parse(%q).OrderID = %q, want %q", c.body, got, c.want)
		}
	}
}

func TestStore(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"shop label", "Shop: Baja Fresh, Order #1", "Baja Fresh"},
		{"pickup label", "your order. Pickup from: Panda Express, locker 4", "Panda Express"},
		{"leading vendor heuristic", "Qdoba 123 Meal Value", "Qdoba"},
		{"no store", "nothing useful here", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Parse(c.body).Store; got != c.want {
				t.Errorf("Parse(%q).Store = %q, want %q", c.body, got, c.want)
			}
		})
	}
}

func TestItemsFromReceiptLines(t *testing.T) {
	body := "1x Grilled Adobo Chicken Bowl $10.50 Subtotal $10.50 Tax $0.62"
	got := Parse(body).Items
	want := []string{"Grilled Adobo Chicken Bowl"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestItemsBlockFallback(t *testing.T) {
	body := "PICKUP ITEMS: tuna melt; iced tea Subtotal $9.00"
	got := Parse(body).Items
	want := []string{"tuna melt", "iced tea"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestItemsCapped(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("1x Bean Burrito Supreme $4.50 ")
	}
	if got := len(Parse(b.String()).Items); got > maxItems {
		t.Errorf("got %d items, want at most %d", got, maxItems)
	}
}

func TestSnippetBounded(t *testing.T) {
	p := Parse(strings.Repeat("a", 3*snippetLimit))
	if len(p.RawSnippet) != snippetLimit {
		t.Errorf("RawSnippet length = %d, want %d", len(p.RawSnippet), snippetLimit)
	}
}

func TestWhitespaceNormalized(t *testing.T) {
	p := Parse("Meals\n\t  Used:\t2")
	if p.Meals != 2 {
		t.Errorf("Meals = %d, want 2", p.Meals)
	}
	if p.RawSnippet != "Meals Used: 2" {
		t.Errorf("RawSnippet = %q, want collapsed text", p.RawSnippet)
	}
}

func TestParseDeterministic(t *testing.T) {
	body := "Qdoba Pickup Order #555 1x Grilled Adobo Chicken Bowl $10.50 Meals Used: 1 Subtotal $10.50"
	a := Parse(body)
	b := Parse(body)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Parse is not deterministic (-first +second):\n%s", diff)
	}
}
