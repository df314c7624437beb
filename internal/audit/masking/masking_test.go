package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskName(t *testing.T) {
	assert.Equal(t, "", MaskName("  "))
	assert.Equal(t, "*", MaskName("김"))
	assert.Equal(t, "김*", MaskName("김철"))
	assert.Equal(t, "홍*동", MaskName("홍길동"))
	assert.Equal(t, "J*** **e", MaskName("John Doe"))
}

func TestMaskFields(t *testing.T) {
	out := MaskFields(map[string]any{
		"contractor":    "홍길동",
		"serial_number": "A-1001",
		"price":         int64(5),
	}, "contractor")

	assert.Equal(t, "홍*동", out["contractor"])
	assert.Equal(t, "A-1001", out["serial_number"])
	assert.Equal(t, int64(5), out["price"])
	assert.Nil(t, MaskFields(nil, "contractor"))
}
