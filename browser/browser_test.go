package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{name: "chrome", want: KindChromium},
		{name: "Chromium", want: KindChromium},
		{name: " firefox ", want: KindGecko},
		{name: "gecko", want: KindGecko},
		{name: "EDGE", want: KindEdge},
		{name: "webkit", want: KindEdge},
		{name: "safari", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedBrowser)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocator_CSSSelector(t *testing.T) {
	sel, ok := CSS("button.primary").CSSSelector()
	assert.True(t, ok)
	assert.Equal(t, "button.primary", sel)

	sel, ok = ID(`cart"icon`).CSSSelector()
	assert.True(t, ok)
	assert.Equal(t, `[id="cart\"icon"]`, sel)

	_, ok = XPath("//span").CSSSelector()
	assert.False(t, ok)

	assert.Equal(t, "xpath=//span", XPath("//span").String())
}

func TestOptions_HasArg(t *testing.T) {
	opts := Options{Args: StabilityArgs}
	assert.True(t, opts.HasArg("--no-sandbox"))
	assert.False(t, opts.HasArg("--headless=new"))
}
