package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/services"
)

// MCPServer exposes the pool operations as MCP tools acting as one wallet.
type MCPServer struct {
	mcpServer *server.MCPServer
	pool      *services.PoolService
	qr        *services.QRCodeService
	wallet    core.Identity
	decimals  int
	logger    *zap.SugaredLogger
}

// Options configures NewMCPServer.
type Options struct {
	Pool     *services.PoolService
	QR       *services.QRCodeService
	Wallet   core.Identity
	Decimals int
	Version  string
	Logger   *zap.SugaredLogger
}

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(opts Options) *MCPServer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	mcpServer := server.NewMCPServer(
		"Tab Pool MCP Server",
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		pool:      opts.Pool,
		qr:        opts.QR,
		wallet:    opts.Wallet,
		decimals:  opts.Decimals,
		logger:    opts.Logger,
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving MCP over stdin and stdout.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(createJobTool(), s.handleCreateJob)
	s.mcpServer.AddTool(payJobTool(), s.handlePayJob)
	s.mcpServer.AddTool(distributeJobTool(), s.handleDistributeJob)
	s.mcpServer.AddTool(jobStatusTool(), s.handleJobStatus)
	s.mcpServer.AddTool(listJobsTool(), s.handleListJobs)
	s.mcpServer.AddTool(paymentQRTool(), s.handlePaymentQR)
	s.mcpServer.AddTool(balanceTool(), s.handleBalance)
}
