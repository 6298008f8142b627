package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/middleware"
)

type rpcReply struct {
	Result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

func postRPC(t *testing.T, h http.Handler, caller core.Identity, body string) (*httptest.ResponseRecorder, rpcReply) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	if caller != "" {
		req = req.WithContext(middleware.WithCaller(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var reply rpcReply
	if rec.Code == http.StatusOK || rec.Code == http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply), rec.Body.String())
	}
	return rec, reply
}

func TestHTTPHandlerListsTools(t *testing.T) {
	s, _ := newTestServer(t, owner)
	rec, reply := postRPC(t, s.HTTPHandler(), "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	for _, tool := range reply.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"create_job", "pay_job", "distribute_job", "get_job_status",
		"list_jobs", "get_payment_qr", "get_balance",
	}, names)
}

func TestHTTPHandlerActsAsCaller(t *testing.T) {
	s, pool := newTestServer(t, owner)
	job, err := pool.CreateJob(context.Background(), core.CreateJobParams{
		Contributors: []core.Identity{alice, bob},
		Recipients:   []core.Identity{xena},
		AmountDue:    100,
		Authority:    owner,
	})
	require.NoError(t, err)
	body := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"pay_job","arguments":{"job_id":"` + job.ID.String() + `"}}}`

	// anonymous HTTP callers never borrow the server wallet
	_, reply := postRPC(t, s.HTTPHandler(), "", body)
	require.True(t, reply.Result.IsError)
	require.NotEmpty(t, reply.Result.Content)
	assert.Contains(t, reply.Result.Content[0].Text, ErrCodeNoWallet)

	_, reply = postRPC(t, s.HTTPHandler(), alice, body)
	require.False(t, reply.Result.IsError, reply.Result.Content)
	assert.Contains(t, reply.Result.Content[0].Text, "Paid 1 into job")

	got, err := pool.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PaidCount())
	assert.True(t, got.Contributors[0].Paid)
}

func TestHTTPHandlerRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t, owner)
	h := s.HTTPHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, reply := postRPC(t, h, "", "  ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, -32600, reply.Error.Code)

	rec, reply = postRPC(t, h, "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, reply.Error)
	assert.Equal(t, -32700, reply.Error.Code)

	rec, _ = postRPC(t, h, "", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
