package telegram

import "testing"

func TestMathFormula(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"просто текст", "", false},
		{"Ответ: $x^2 + 1$", "x^2 + 1", true},
		{"$$\\int_0^1 x\\,dx$$ = 1/2", "\\int_0^1 x\\,dx", true},
		{"\\frac{1}{2}", "\\frac{1}{2}", true},
		{"цена 5$", "цена 5", true},
		{"$", "", false},
	}
	for _, c := range cases {
		got, ok := mathFormula(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("mathFormula(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestRenderURL(t *testing.T) {
	if got := renderURL("https://r/?", "a b"); got != "https://r/?a%20b" {
		t.Fatalf("got %s", got)
	}
}
