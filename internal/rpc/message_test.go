package rpc

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestEncode(t *testing.T) {
	req, err := NewRequest(MethodCompletion, PositionParams{Source: "os.", Row: 1, Column: 3})
	require.NoError(t, err)

	body, err := req.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"document_completion","params":{"source":"os.","row":1,"column":3}}`, body)

	req, err = NewRequest(MethodShutdown, nil)
	require.NoError(t, err)
	body, err = req.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"shutdown","params":null}`, body)
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantMethod Method
		wantParams string
		wantCode   Code
	}{
		{"valid", `{"method":"ping","params":{"a":1}}`, MethodPing, `{"a":1}`, 0},
		{"with id", `{"id":"abc","method":"exit","params":null}`, MethodExit, `null`, 0},
		{"numeric id", `{"id":1,"method":"ping","params":{"a":1}}`, MethodPing, `{"a":1}`, 0},
		{"missing params", `{"method":"shutdown"}`, MethodShutdown, `null`, 0},
		{"unknown method still parses", `{"method":"frobnicate","params":{}}`, "frobnicate", `{}`, 0},
		{"invalid json", `{"method":`, "", "", CodeInputError},
		{"not an object", `[1,2,3]`, "", "", CodeInputError},
		{"missing method", `{"params":{}}`, "", "", CodeInputError},
		{"empty method", `{"method":"","params":{}}`, "", "", CodeInputError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.body)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.True(t, IsCode(err, tt.wantCode), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, req.Method)
			assert.JSONEq(t, tt.wantParams, string(req.Params))
		})
	}
}

func TestResponseEncode(t *testing.T) {
	body, err := OK([]CompletionItem{{Label: "path", Type: KindModule}}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":[{"label":"path","type":"module","annotation":""}]}`, body)

	body, err = OK(nil).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":null}`, body)

	body, err = Failf(CodeMethodError, "unknown method %q", "x").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":5004,"message":"unknown method \"x\""}}`, body)

	resp := OK(true)
	resp.ID = StringID("42")
	body, err = resp.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42","result":true}`, body)
}

func TestOKUnencodableResult(t *testing.T) {
	resp := OK(make(chan int))
	require.True(t, resp.Failed())
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse(`{"result":{"diff":""}}`)
	require.NoError(t, err)
	assert.False(t, resp.Failed())
	var out FormattingResult
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "", out.Diff)

	resp, err = ParseResponse(`{"result":null}`)
	require.NoError(t, err)
	assert.False(t, resp.Failed())
	assert.NoError(t, resp.Decode(nil))

	resp, err = ParseResponse(`{"id":"7","error":{"code":5006,"message":"not initialized"}}`)
	require.NoError(t, err)
	require.True(t, resp.Failed())
	assert.JSONEq(t, `"7"`, string(resp.ID))
	assert.Equal(t, CodeNotInitialized, resp.Error.Code)
	decodeErr := resp.Decode(&out)
	assert.True(t, IsCode(decodeErr, CodeNotInitialized))

	resp, err = ParseResponse(`{"result":1,"error":null}`)
	require.NoError(t, err)
	assert.False(t, resp.Failed())

	for _, bad := range []string{
		`{}`,
		`{"result":1,"error":{"code":5001,"message":"x"}}`,
		`{"error":{"message":"no code"}}`,
		`not json`,
	} {
		_, err := ParseResponse(bad)
		assert.Error(t, err, bad)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewError(CodeParamError, "missing %s", "source")
	assert.Equal(t, "ParamError (5005): missing source", err.Error())
	assert.Equal(t, "Code(42)", Code(42).String())

	wrapped := fmt.Errorf("completion: %w", err)
	assert.True(t, IsCode(wrapped, CodeParamError))
	assert.False(t, IsCode(wrapped, CodeInputError))
}

func TestErrorDataRoundTrip(t *testing.T) {
	resp := Fail(&Error{Code: CodeInternalError, Message: "boom", Data: map[string]any{"method": "ping"}})
	body, err := resp.Encode()
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	assert.NotContains(t, raw, "result")

	parsed, err := ParseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"method": "ping"}, parsed.Error.Data)
}

func TestMethods(t *testing.T) {
	assert.Len(t, KnownMethods(), 9)
	assert.True(t, MethodHover.Known())
	assert.False(t, Method("frobnicate").Known())
	assert.True(t, MethodShutdown.Terminal())
	assert.True(t, MethodExit.Terminal())
	assert.False(t, MethodPing.Terminal())
	assert.True(t, MethodDiagnostics.Feature())
	assert.False(t, MethodInitialize.Feature())
}
