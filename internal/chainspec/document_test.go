package chainspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectKind(t *testing.T) {
	testCases := []struct {
		name   string
		data   string
		want   Kind
		errMsg string
	}{
		{name: "plain", data: `{"genesis":{"runtime":{}}}`, want: Plain},
		{name: "raw", data: `{"genesis":{"raw":{"top":{}}}}`, want: Raw},
		{name: "not json", data: `Building chain spec`, errMsg: "not valid JSON"},
		{name: "array", data: `[1,2]`, errMsg: "not a JSON object"},
		{name: "no genesis", data: `{"name":"x"}`, errMsg: "neither genesis.runtime nor genesis.raw"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectKind([]byte(tc.data))
			if tc.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParsePlain(t *testing.T) {
	spec, err := ParsePlain([]byte(`{
		"name": "Development", "id": "dev", "chainType": "Development",
		"bootNodes": [], "protocolId": "sub",
		"properties": {"tokenSymbol": "SUB"},
		"genesis": {"runtime": {"pallet_sudo": {"key": "x"}}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Development", spec.Name)
	assert.Equal(t, []string{}, spec.BootNodes)

	_, err = ParsePlain([]byte(`{"genesis":{"runtime":{}}}`))
	assert.ErrorContains(t, err, "name and an id")

	_, err = ParsePlain([]byte(`{"genesis":{"raw":{"top":{}}}}`))
	assert.ErrorContains(t, err, "expected a plain document, got raw")
}

func TestParsePlain_ProtocolAndProperties(t *testing.T) {
	testCases := []struct {
		name   string
		extra  string
		errMsg string
	}{
		{name: "full properties", extra: `"protocolId":"sub","properties":{"ss58Format":28,"tokenDecimals":12,"tokenSymbol":"SUB"}`},
		{name: "no properties", extra: `"protocolId":"sub"`},
		{name: "unknown property", extra: `"protocolId":"sub","properties":{"isEthereum":false}`},
		{name: "missing protocol id", extra: `"properties":{"ss58Format":28}`, errMsg: "must carry a protocolId"},
		{name: "empty protocol id", extra: `"protocolId":""`, errMsg: "must carry a protocolId"},
		{name: "null protocol id", extra: `"protocolId":null`, errMsg: "must carry a protocolId"},
		{name: "ss58 format as string", extra: `"protocolId":"sub","properties":{"ss58Format":"not-a-number"}`, errMsg: "ss58Format must be a non-negative integer"},
		{name: "fractional decimals", extra: `"protocolId":"sub","properties":{"tokenDecimals":1.5}`, errMsg: "tokenDecimals must be a non-negative integer"},
		{name: "negative decimals", extra: `"protocolId":"sub","properties":{"tokenDecimals":-1}`, errMsg: "tokenDecimals must be a non-negative integer"},
		{name: "numeric symbol", extra: `"protocolId":"sub","properties":{"tokenSymbol":7}`, errMsg: "tokenSymbol must be a string"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePlain([]byte(`{"name":"X","id":"dev",` + tc.extra + `,"genesis":{"runtime":{}}}`))
			if tc.errMsg != "" {
				assert.ErrorContains(t, err, tc.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseRaw(t *testing.T) {
	spec, err := ParseRaw([]byte(`{"name":"Dev","id":"dev","genesis":{"raw":{"top":{"0x26aa":"0x01"},"childrenDefault":{}}}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"0x26aa": "0x01"}, spec.Genesis.Raw.Top)

	_, err = ParseRaw([]byte(`{"genesis":{"raw":{"top":{"26aa":"0x01"}}}}`))
	assert.ErrorContains(t, err, "missing 0x prefix")

	_, err = ParseRaw([]byte(`{"genesis":{"raw":{"top":{"0x26aa":"0xzz"}}}}`))
	assert.ErrorContains(t, err, "storage value")
}

func TestProfile(t *testing.T) {
	assert.True(t, Profile("staging").IsPreset())
	assert.False(t, Profile("node/res/plain.json").IsPreset())

	assert.NoError(t, Profile("dev").Validate())
	assert.NoError(t, Profile("node/res/plain.json").Validate())
	assert.Error(t, Profile("").Validate())
	assert.Error(t, Profile("-x").Validate())
	assert.Error(t, Profile("dev local").Validate())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}
