package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/services"
	jobstore "tabpool-backend/storage/payment_job"
)

var (
	alice = core.DeriveIdentity("alice")
	bob   = core.DeriveIdentity("bob")
	xena  = core.DeriveIdentity("xena")
	owner = core.DeriveIdentity("owner")
)

func newTestServer(t *testing.T, wallet core.Identity) (*MCPServer, *services.PoolService) {
	t.Helper()
	store := jobstore.NewMemoryStore(false)
	for _, w := range []core.Identity{alice, bob} {
		_, err := store.Deposit(context.Background(), w, 1_000)
		require.NoError(t, err)
	}
	pool := services.NewPoolService(services.PoolServiceConfig{Store: store})
	s := NewMCPServer(Options{
		Pool:     pool,
		QR:       services.NewQRCodeService("", "", 2, 128),
		Wallet:   wallet,
		Decimals: 2,
	})
	return s, pool
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func toolError(t *testing.T, res *mcp.CallToolResult) ToolError {
	t.Helper()
	require.True(t, res.IsError)
	var te ToolError
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &te))
	return te
}

func createJob(t *testing.T, s *MCPServer, pool *services.PoolService) core.Job {
	t.Helper()
	res, err := s.handleCreateJob(context.Background(), call(map[string]any{
		"contributors": []any{alice.String(), bob.String()},
		"recipients":   xena.String(),
		"amount":       "2.5",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	jobs, err := pool.ListJobs(context.Background(), core.Filter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func TestCreateJobTool(t *testing.T) {
	s, pool := newTestServer(t, owner)
	job := createJob(t, s, pool)

	assert.Equal(t, owner, job.Authority)
	assert.Equal(t, int64(250), job.AmountDue)
	assert.Equal(t, []core.Identity{xena}, job.Recipients)

	res, err := s.handleCreateJob(context.Background(), call(map[string]any{
		"contributors": []any{alice.String()},
		"recipients":   []any{xena.String()},
	}))
	require.NoError(t, err)
	te := toolError(t, res)
	assert.Equal(t, ErrCodeMissingRequired, te.Code)
	assert.Equal(t, "amount", te.Field)

	res, err = s.handleCreateJob(context.Background(), call(map[string]any{
		"contributors": []any{alice.String(), alice.String()},
		"recipients":   []any{xena.String()},
		"amount_due":   float64(10),
	}))
	require.NoError(t, err)
	assert.Equal(t, "INVALID_INPUT", toolError(t, res).Code)
}

func TestPayAndDistributeTools(t *testing.T) {
	ctx := context.Background()
	authority, pool := newTestServer(t, owner)
	job := createJob(t, authority, pool)
	args := map[string]any{"job_id": job.ID.String()}

	payer := NewMCPServer(Options{Pool: pool, QR: services.NewQRCodeService("", "", 2, 0), Wallet: alice, Decimals: 2})
	res, err := payer.handlePayJob(ctx, call(args))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text(t, res), "Paid 2.5 into job"), text(t, res))

	res, err = payer.handlePayJob(ctx, call(args))
	require.NoError(t, err)
	assert.Equal(t, "ALREADY_PAID", toolError(t, res).Code)

	res, err = payer.handleDistributeJob(ctx, call(args))
	require.NoError(t, err)
	assert.Equal(t, "BEFORE_DEADLINE", toolError(t, res).Code)

	res, err = authority.handleJobStatus(ctx, call(args))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "is open: 1/2 paid, deadline No deadline")

	res, err = authority.handleDistributeJob(ctx, call(args))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "2.5 to each of 1 recipients")

	res, err = authority.handleBalance(ctx, call(map[string]any{"account": xena.String()}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "holds 2.5 (250 smallest units)")

	res, err = authority.handlePaymentQR(ctx, call(args))
	require.NoError(t, err)
	assert.Equal(t, "JOB_CLOSED", toolError(t, res).Code)
}

func TestPaymentQRTool(t *testing.T) {
	s, pool := newTestServer(t, owner)
	job := createJob(t, s, pool)

	res, err := s.handlePaymentQR(context.Background(), call(map[string]any{"job_id": job.ID.String()}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 2)
	assert.Contains(t, text(t, res), "solana:"+job.ID.String()+"?amount=2.5&")
	img, ok := res.Content[1].(mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)
}

func TestListJobsTool(t *testing.T) {
	s, pool := newTestServer(t, owner)
	createJob(t, s, pool)

	res, err := s.handleListJobs(context.Background(), call(map[string]any{"participant": alice.String(), "status": "open"}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text(t, res), "Found 1 jobs"))

	res, err = s.handleListJobs(context.Background(), call(map[string]any{"status": "closed"}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text(t, res), "Found 0 jobs"))

	res, err = s.handleListJobs(context.Background(), call(map[string]any{"status": "pending"}))
	require.NoError(t, err)
	assert.Equal(t, ErrCodeInvalidValue, toolError(t, res).Code)
}

func TestToolsRequireWallet(t *testing.T) {
	s, _ := newTestServer(t, "")
	res, err := s.handlePayJob(context.Background(), call(map[string]any{"job_id": owner.String()}))
	require.NoError(t, err)
	assert.Equal(t, ErrCodeNoWallet, toolError(t, res).Code)

	res, err = s.handleBalance(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, ErrCodeMissingRequired, toolError(t, res).Code)
}

func TestJobIDValidation(t *testing.T) {
	s, _ := newTestServer(t, owner)

	res, err := s.handleJobStatus(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, ErrCodeMissingRequired, toolError(t, res).Code)

	res, err = s.handleJobStatus(context.Background(), call(map[string]any{"job_id": "0OIl"}))
	require.NoError(t, err)
	te := toolError(t, res)
	assert.Equal(t, "INVALID_INPUT", te.Code)
	assert.Equal(t, "job_id", te.Field)

	res, err = s.handleJobStatus(context.Background(), call(map[string]any{"job_id": alice.String()}))
	require.NoError(t, err)
	assert.Equal(t, "JOB_NOT_FOUND", toolError(t, res).Code)
}
