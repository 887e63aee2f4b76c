package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/influencehub-backend/pkg/errors"
)

type sampleRequest struct {
	CampaignID string `json:"campaignId" validate:"required,uuid"`
	Currency   string `json:"currency" validate:"required,currency"`
	Reason     string `json:"reason" validate:"max=10"`
}

func decode(t *testing.T, body string) (sampleRequest, error) {
	t.Helper()
	var req sampleRequest
	r := httptest.NewRequest("POST", "/", strings.NewReader(body))
	return req, DecodeJSONBody(r, &req)
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	req, err := decode(t, `{"campaignId":"6f1f3c3e-2a43-4d1a-9d0e-0b8a1a2b3c4d","currency":"usd"}`)
	require.NoError(t, err)
	assert.Equal(t, "usd", req.Currency)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	_, err := decode(t, `{"campaignId":"nope","currency":"XYZ","reason":"far too long a reason"}`)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid uuid", details["campaignId"])
	assert.Equal(t, "must be a supported ISO-4217 currency code", details["currency"])
	assert.Equal(t, "must be at most 10 characters", details["reason"])
}

func TestDecodeJSONBodyRejectsMalformedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"unknown field": `{"campaignId":"6f1f3c3e-2a43-4d1a-9d0e-0b8a1a2b3c4d","currency":"USD","extra":1}`,
		"trailing data": `{"campaignId":"6f1f3c3e-2a43-4d1a-9d0e-0b8a1a2b3c4d","currency":"USD"}{}`,
		"not json":      `campaign`,
		"too large":     `{"campaignId":"` + strings.Repeat("a", maxBodyBytes) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, body)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "late delivery", SanitizeString("  late\x00 delivery ", 0))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
	// "é" is two bytes; a cut inside it backs off to the previous rune boundary.
	assert.Equal(t, "caf", SanitizeString("café", 4))
	assert.Equal(t, "line\none", SanitizeString("line\none", 0))
}
