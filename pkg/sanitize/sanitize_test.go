package sanitize

import "testing"

func TestStrict(t *testing.T) {
	cases := map[string]string{
		"":                                  "",
		"   ":                               "",
		"alice":                             "alice",
		"  bob  ":                           "bob",
		"<b>carol</b>":                      "carol",
		`<script>alert("x")</script>dave`:   "dave",
		`<a href="javascript:evil()">e</a>`: "e",
		"Tom & Jerry":                       "Tom & Jerry",
	}
	for in, want := range cases {
		if got := Strict(in); got != want {
			t.Fatalf("Strict(%q) = %q, want %q", in, got, want)
		}
	}
}
