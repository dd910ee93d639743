package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"  padded  ", "padded"},
		{"Kadın Giyim", "kadin-giyim"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"İstanbul", "istanbul"},
		{"Crème Brûlée!", "creme-brulee"},
		{"Straße", "strasse"},
		{"price: $100", "price-100"},
		{"one & two", "one-two"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}
