package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stemsi/hiring-backend/internal/validator"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) RequestPayload {
	t.Helper()
	var p RequestPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestRequestPayloadValidation(t *testing.T) {
	valid := []string{
		`{"action":"start"}`,
		`{"action":"ping"}`,
		`{"action":"answer","question_id":"7b0e2e4a-2a7e-4f7e-9a53-51c3a2a1d0c1","option":"B"}`,
		`{"action":"navigate","index":2}`,
		`{"action":"signal","signal":{"kind":"visibility","hidden":true}}`,
		`{"action":"signal","signal":{"kind":"clipboard","action":"paste"}}`,
	}
	for _, raw := range valid {
		require.Nil(t, validator.Struct(decode(t, raw)), raw)
	}

	invalid := []struct{ raw, field string }{
		{`{"action":"teleport"}`, "action"},
		{`{"action":"answer","option":"B"}`, "question_id"},
		{`{"action":"answer","question_id":"nope","option":"B"}`, "question_id"},
		{`{"action":"navigate"}`, "index"},
		{`{"action":"navigate","index":-1}`, "index"},
		{`{"action":"signal"}`, "signal"},
		{`{"action":"signal","signal":{"kind":"telepathy"}}`, "kind"},
		{`{"action":"signal","signal":{"kind":"clipboard","action":"print"}}`, "action"},
	}
	for _, tc := range invalid {
		fields := validator.Struct(decode(t, tc.raw))
		require.NotNil(t, fields, tc.raw)
		require.Contains(t, fields, tc.field, tc.raw)
	}
}
