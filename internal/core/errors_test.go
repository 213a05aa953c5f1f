package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := NewError(KindRate, "fetch dob_violations", errors.New("429 after 3 attempts"))
	wrapped := fmt.Errorf("domain dob_violations failed: %w", base)

	assert.Equal(t, KindRate, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindRate))
	assert.False(t, IsKind(wrapped, KindNetwork))
}

func TestKindOfContextDeadline(t *testing.T) {
	err := fmt.Errorf("run aborted: %w", context.DeadlineExceeded)
	assert.Equal(t, KindDeadline, KindOf(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindBadQuery, http.StatusBadRequest},
		{KindRate, http.StatusServiceUnavailable},
		{KindNetwork, http.StatusServiceUnavailable},
		{KindRemote, http.StatusBadGateway},
		{KindDecode, http.StatusBadGateway},
		{KindDB, http.StatusInternalServerError},
		{KindDeadline, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := NewError(tt.kind, "op", nil)
			assert.Equal(t, tt.want, HTTPStatus(err))
		})
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("untyped")))
}

func TestBBLRoundTrip(t *testing.T) {
	bbl := SynthesizeBBL("1", "1642", "29")
	require.Equal(t, "1016420029", bbl)

	block, lot := SplitBBL(bbl)
	assert.Equal(t, "1642", block)
	assert.Equal(t, "29", lot)
}

func TestSplitBBLMalformed(t *testing.T) {
	block, lot := SplitBBL("12345")
	assert.Empty(t, block)
	assert.Empty(t, lot)
}

func TestBoroughMaps(t *testing.T) {
	assert.Equal(t, "1", BoroughCode("Manhattan"))
	assert.Equal(t, "3", BoroughCode("brooklyn"))
	assert.Equal(t, "5", BoroughCode("5"))
	assert.Equal(t, "", BoroughCode("Philadelphia"))

	assert.Equal(t, "QUEENS", BoroughName("4"))
	assert.Equal(t, "STATEN ISLAND", BoroughName("Staten Island"))
}

func TestStripLeadingZeros(t *testing.T) {
	assert.Equal(t, "1642", StripLeadingZeros("01642"))
	assert.Equal(t, "29", StripLeadingZeros("0029"))
	assert.Equal(t, "0", StripLeadingZeros("0000"))
	assert.Equal(t, "", StripLeadingZeros(""))
}
