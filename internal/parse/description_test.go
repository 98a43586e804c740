package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescription(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Betaling via Bancontact - Delhaize Gent", want: "Delhaize Gent"},
		{raw: "OVERSCHRIJVING NAAR   huisbaas  maart", want: "huisbaas maart"},
		{raw: "SEPA domiciliëring Proximus", want: "Proximus"},
		{raw: "Payment via debit card - Tesco Metro", want: "Tesco Metro"},
		{raw: "transfer to - savings", want: "savings"},
		{raw: "Direct debit Netflix", want: "Netflix"},
		{raw: "Maandloon", want: "Maandloon"},
		{raw: "Aankoop   boodschappen", want: "Aankoop boodschappen"},
		{raw: "nan", want: ""},
		{raw: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Description(tt.raw))
		})
	}
}
