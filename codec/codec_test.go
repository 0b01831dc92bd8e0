package codec_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-rpc-proxy/codec"
	berr "github.com/next-trace/scg-rpc-proxy/contract/errors"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
)

func TestByName(t *testing.T) {
	c, err := codec.ByName("")
	require.NoError(t, err)
	assert.Equal(t, codec.NameNest, c.Name())

	c, err = codec.ByName("JSON")
	require.NoError(t, err)
	assert.Equal(t, codec.NameJSON, c.Name())

	_, err = codec.ByName("protobuf")
	assert.True(t, errors.Is(err, berr.ErrInvalidConfig))
}

func TestNest_RequestShape(t *testing.T) {
	body, err := codec.Nest{}.EncodeRequest(rpc.Request{
		Operation:     "FIND_BY_ID_AUTH_USER",
		CorrelationID: "c-1",
		ReplyTo:       "gateway.reply",
		Payload:       map[string]string{"id": "123"},
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, "FIND_BY_ID_AUTH_USER", m["pattern"])
	assert.Equal(t, "c-1", m["id"])
	assert.Equal(t, map[string]any{"id": "123"}, m["data"])

	emit, err := codec.Nest{}.EncodeRequest(rpc.Request{Operation: "ORDER_LIFE_CYCLE"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pattern":"ORDER_LIFE_CYCLE","data":{}}`, string(emit))
}

func TestNest_DecodeReply(t *testing.T) {
	ok, err := codec.Nest{}.DecodeReply(rpc.Frame{
		Body: []byte(`{"id":"c-1","response":{"id":"123","name":"Ada"},"isDisposed":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "c-1", ok.CorrelationID)
	assert.Equal(t, rpc.StatusSuccess, ok.Status)
	assert.JSONEq(t, `{"id":"123","name":"Ada"}`, string(ok.Body))

	str, err := codec.Nest{}.DecodeReply(rpc.Frame{
		CorrelationID: "from-transport",
		Body:          []byte(`{"err":"boom","isDisposed":true}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "from-transport", str.CorrelationID)
	assert.Equal(t, rpc.StatusFailure, str.Status)
	assert.Equal(t, rpc.ErrorBody{Code: "RPC_ERROR", Message: "boom"}, str.Failure())

	obj, err := codec.Nest{}.DecodeReply(rpc.Frame{
		Body: []byte(`{"id":"c-2","err":{"statusCode":404,"message":"no such user"},"isDisposed":true}`),
	})
	require.NoError(t, err)
	eb := obj.Failure()
	assert.Equal(t, "404", eb.Code)
	assert.Equal(t, "no such user", eb.Message)
	assert.NotEmpty(t, eb.Details)

	disposed, err := codec.Nest{}.DecodeReply(rpc.Frame{Body: []byte(`{"id":"c-3","err":null,"isDisposed":true}`)})
	require.NoError(t, err)
	assert.Equal(t, rpc.StatusSuccess, disposed.Status)
	assert.Nil(t, disposed.Body)

	_, err = codec.Nest{}.DecodeReply(rpc.Frame{Body: []byte(`not json`)})
	assert.True(t, errors.Is(err, berr.ErrSerializationFailed))
}

func TestServerSide_Exchange(t *testing.T) {
	for _, c := range []codec.Codec{codec.Nest{}, codec.JSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			body, err := c.EncodeRequest(rpc.Request{
				Operation:     "FIND_USER",
				CorrelationID: "c-9",
				ReplyTo:       "inbox",
				Payload:       json.RawMessage(`{"page":1}`),
			})
			require.NoError(t, err)

			in, err := c.DecodeRequest(rpc.Frame{Body: body, ReplyTo: "inbox", CorrelationID: "c-9"})
			require.NoError(t, err)
			assert.Equal(t, "FIND_USER", in.Operation)
			assert.Equal(t, "c-9", in.CorrelationID)
			assert.Equal(t, "inbox", in.ReplyTo)
			assert.JSONEq(t, `{"page":1}`, string(in.Data))

			failure, err := json.Marshal(rpc.ErrorBody{Code: "NOT_FOUND", Message: "no such user"})
			require.NoError(t, err)

			out, err := c.EncodeReply(rpc.Reply{CorrelationID: "c-9", Status: rpc.StatusFailure, Body: failure})
			require.NoError(t, err)

			r, err := c.DecodeReply(rpc.Frame{Body: out})
			require.NoError(t, err)
			assert.Equal(t, "c-9", r.CorrelationID)
			assert.Equal(t, rpc.StatusFailure, r.Status)
			assert.Equal(t, "NOT_FOUND", r.Failure().Code)
			assert.Equal(t, "no such user", r.Failure().Message)
		})
	}
}

func TestJSON_DecodeReply_DefaultsToSuccess(t *testing.T) {
	r, err := codec.JSON{}.DecodeReply(rpc.Frame{Body: []byte(`{"id":"a","body":[1,2]}`)})
	require.NoError(t, err)
	assert.Equal(t, rpc.StatusSuccess, r.Status)
	assert.JSONEq(t, `[1,2]`, string(r.Body))
}
