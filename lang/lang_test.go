package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestT(t *testing.T) {
	assert.Equal(t, "🗑 Order #ab12 cancelled.", T(En, "order_cancelled", "ab12"))
	// missing in hi falls back to en
	assert.Equal(t, T(En, "cart_empty"), T(Hi, "cart_empty"))
	// unknown language falls back to en
	assert.Equal(t, T(En, "help"), T("xx", "help"))
	// unknown key is returned verbatim
	assert.Equal(t, "no_such_key", T(En, "no_such_key"))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(En))
	assert.True(t, Supported(Hi))
	assert.False(t, Supported("uz"))
}
