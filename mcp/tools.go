package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/services"
)

func createJobTool() mcp.Tool {
	return mcp.NewTool("create_job",
		mcp.WithDescription("Create a payment job owned by the configured wallet. Each contributor owes the same amount; the pool is split evenly across recipients."),
		mcp.WithArray("contributors", mcp.Required(), mcp.Items(map[string]any{"type": "string"}),
			mcp.Description("Base58 wallet addresses that each owe the amount")),
		mcp.WithArray("recipients", mcp.Required(), mcp.Items(map[string]any{"type": "string"}),
			mcp.Description("Base58 wallet addresses that share the pool")),
		mcp.WithString("amount", mcp.Description("Amount owed per contributor in whole units, e.g. \"0.5\"")),
		mcp.WithNumber("amount_due", mcp.Description("Amount owed per contributor in smallest units")),
		mcp.WithNumber("deadline", mcp.Description("Unix timestamp after which anyone may distribute; omit for none")),
	)
}

func payJobTool() mcp.Tool {
	return mcp.NewTool("pay_job",
		mcp.WithDescription("Pay the configured wallet's share into a job pool"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID")),
	)
}

func distributeJobTool() mcp.Tool {
	return mcp.NewTool("distribute_job",
		mcp.WithDescription("Split a job's pool evenly across its recipients and close it"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID")),
	)
}

func jobStatusTool() mcp.Tool {
	return mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the payment status of a job"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID")),
	)
}

func listJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List jobs, newest first"),
		mcp.WithString("authority", mcp.Description("Only jobs owned by this wallet")),
		mcp.WithString("participant", mcp.Description("Only jobs where this wallet contributes or receives")),
		mcp.WithString("status", mcp.Description("open or closed"), mcp.Enum("open", "closed")),
		mcp.WithNumber("limit", mcp.Description("Maximum results")),
	)
}

func paymentQRTool() mcp.Tool {
	return mcp.NewTool("get_payment_qr",
		mcp.WithDescription("Get the wallet payment request for a job as a URI and PNG QR code"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID")),
	)
}

func balanceTool() mcp.Tool {
	return mcp.NewTool("get_balance",
		mcp.WithDescription("Get the ledger balance of a wallet or job pool; defaults to the configured wallet"),
		mcp.WithString("account", mcp.Description("Base58 address")),
	)
}

func jsonResult(summary string, v interface{}) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode tool result")
	}
	return mcp.NewToolResultText(summary + "\n\n" + string(body)), nil
}

func (s *MCPServer) requireWallet(ctx context.Context, tool string) (core.Identity, *mcp.CallToolResult) {
	wallet := s.walletFor(ctx)
	if wallet == "" {
		return "", errorResult(&ToolError{
			Code:       ErrCodeNoWallet,
			Message:    "no caller wallet for this request",
			Tool:       tool,
			Hint:       "over stdio set wallet in the config file or TABPOOL_WALLET; over HTTP send X-API-Key",
			HttpStatus: 401,
		})
	}
	return wallet, nil
}

func requireJobID(tool string, request mcp.CallToolRequest) (core.Identity, *mcp.CallToolResult) {
	raw, err := request.RequireString("job_id")
	if err != nil {
		return "", errorResult(NewMissingFieldError(tool, "job_id"))
	}
	id, err := core.ParseIdentity(raw)
	if err != nil {
		return "", errorResult(NewInvalidFieldError(tool, "job_id", err))
	}
	return id, nil
}

func identityArg(tool, field string, raw []string) ([]core.Identity, *mcp.CallToolResult) {
	if len(raw) == 0 {
		return nil, errorResult(NewMissingFieldError(tool, field))
	}
	ids, err := core.ParseIdentityList(raw)
	if err != nil {
		return nil, errorResult(NewInvalidFieldError(tool, field, err))
	}
	return ids, nil
}

// stringList accepts a JSON array or a comma separated string.
func stringList(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return strings.Split(v, ",")
	}
	return nil
}

func (s *MCPServer) handleCreateJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "create_job"
	authority, res := s.requireWallet(ctx, tool)
	if res != nil {
		return res, nil
	}
	args := request.GetArguments()

	contributors, res := identityArg(tool, "contributors", stringList(args, "contributors"))
	if res != nil {
		return res, nil
	}
	recipients, res := identityArg(tool, "recipients", stringList(args, "recipients"))
	if res != nil {
		return res, nil
	}

	var amount int64
	switch {
	case request.GetString("amount", "") != "":
		v, err := core.ParseAmount(request.GetString("amount", ""), s.decimals)
		if err != nil {
			return errorResult(NewInvalidFieldError(tool, "amount", err)), nil
		}
		amount = v
	case request.GetFloat("amount_due", 0) != 0:
		amount = int64(request.GetFloat("amount_due", 0))
	default:
		return errorResult(NewMissingFieldError(tool, "amount")), nil
	}

	params := core.CreateJobParams{
		Contributors: contributors,
		Recipients:   recipients,
		AmountDue:    amount,
		Authority:    authority,
	}
	if _, ok := args["deadline"]; ok {
		deadline := int64(request.GetFloat("deadline", 0))
		params.Deadline = &deadline
	}

	job, err := s.pool.CreateJob(ctx, params)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	return jsonResult(fmt.Sprintf("Created job %s", job.ID), core.Summarize(job))
}

func (s *MCPServer) handlePayJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "pay_job"
	payer, res := s.requireWallet(ctx, tool)
	if res != nil {
		return res, nil
	}
	id, res := requireJobID(tool, request)
	if res != nil {
		return res, nil
	}

	out, err := s.pool.Pay(ctx, id, payer)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	summary := core.Summarize(out.Job)
	text := fmt.Sprintf("Paid %s into job %s (%d/%d contributors paid)",
		core.FormatAmount(out.Job.AmountDue, s.decimals), id, summary.PaidCount, summary.Contributors)
	switch d := out.Distribution; {
	case d == nil:
	case d.Complete:
		text += "; the job was distributed automatically"
	default:
		text += fmt.Sprintf("; the job closed but automatic distribution stopped after %d payouts", len(d.Transfers))
	}
	return jsonResult(text, services.Outcome{Job: out.Job, Distribution: out.Distribution})
}

func (s *MCPServer) handleDistributeJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "distribute_job"
	caller, res := s.requireWallet(ctx, tool)
	if res != nil {
		return res, nil
	}
	id, res := requireJobID(tool, request)
	if res != nil {
		return res, nil
	}

	out, err := s.pool.Distribute(ctx, id, caller)
	if err != nil {
		te := FromError(tool, err)
		if core.ShouldCommit(err) && out.Distribution != nil {
			te.Hint = fmt.Sprintf("job is closed; %d payouts completed before the failure", len(out.Distribution.Transfers))
		}
		return errorResult(te), nil
	}
	d := out.Distribution
	return jsonResult(fmt.Sprintf("Distributed job %s: %s to each of %d recipients",
		id, core.FormatAmount(d.PerRecipient, s.decimals), len(out.Job.Recipients)), d)
}

func (s *MCPServer) handleJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "get_job_status"
	id, res := requireJobID(tool, request)
	if res != nil {
		return res, nil
	}
	summary, err := s.pool.Status(ctx, id)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	return jsonResult(fmt.Sprintf("Job %s is %s: %d/%d paid, deadline %s",
		id, summary.Status, summary.PaidCount, summary.Contributors, summary.Deadline), summary)
}

func (s *MCPServer) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "list_jobs"
	var filter core.Filter
	var err error

	if v := request.GetString("authority", ""); v != "" {
		if filter.Authority, err = core.ParseIdentity(v); err != nil {
			return errorResult(NewInvalidFieldError(tool, "authority", err)), nil
		}
	}
	if v := request.GetString("participant", ""); v != "" {
		if filter.Participant, err = core.ParseIdentity(v); err != nil {
			return errorResult(NewInvalidFieldError(tool, "participant", err)), nil
		}
	}
	switch request.GetString("status", "") {
	case "":
	case "open":
		closed := false
		filter.Closed = &closed
	case "closed":
		closed := true
		filter.Closed = &closed
	default:
		return errorResult(&ToolError{Code: ErrCodeInvalidValue, Message: "status must be open or closed", Tool: tool, Field: "status", HttpStatus: 400}), nil
	}
	filter.Limit = request.GetInt("limit", 0)

	jobs, err := s.pool.ListJobs(ctx, filter)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	summaries := make([]core.Summary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, core.Summarize(j))
	}
	return jsonResult(fmt.Sprintf("Found %d jobs", len(jobs)), summaries)
}

func (s *MCPServer) handlePaymentQR(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "get_payment_qr"
	id, res := requireJobID(tool, request)
	if res != nil {
		return res, nil
	}
	job, err := s.pool.GetJob(ctx, id)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	uri, err := s.qr.PaymentURI(job)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	png, err := s.qr.GenerateQRCode(job)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	return mcp.NewToolResultImage(uri, base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

func (s *MCPServer) handleBalance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "get_balance"
	account := s.walletFor(ctx)
	if v := request.GetString("account", ""); v != "" {
		id, err := core.ParseIdentity(v)
		if err != nil {
			return errorResult(NewInvalidFieldError(tool, "account", err)), nil
		}
		account = id
	}
	if account == "" {
		return errorResult(NewMissingFieldError(tool, "account")), nil
	}
	balance, err := s.pool.Balance(ctx, account)
	if err != nil {
		return errorResult(FromError(tool, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s holds %s (%d smallest units)",
		account, core.FormatAmount(balance, s.decimals), balance)), nil
}
