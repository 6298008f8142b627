// Package docs holds the OpenAPI description of the REST API, registered
// with swag so it can be served at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/api/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Service health",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/jobs": {
            "get": {
                "tags": ["Jobs"],
                "summary": "List payment jobs",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Filter by authority", "name": "authority", "in": "query"},
                    {"type": "string", "description": "Filter by contributor or recipient", "name": "participant", "in": "query"},
                    {"type": "boolean", "description": "Filter by closed state", "name": "closed", "in": "query"},
                    {"type": "integer", "description": "Maximum results", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.JobsResponse"}}
                }
            },
            "post": {
                "tags": ["Jobs"],
                "summary": "Create a payment job",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"description": "Job definition", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.CreateJobRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.JobResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/jobs/{id}": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Job status",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.JobResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/jobs/{id}/pay": {
            "post": {
                "tags": ["Jobs"],
                "summary": "Pay into a job",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OutcomeResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/jobs/{id}/distribute": {
            "post": {
                "tags": ["Jobs"],
                "summary": "Distribute a job's pool",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OutcomeResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/jobs/{id}/transfers": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Job transfer log",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TransfersResponse"}}
                }
            }
        },
        "/api/jobs/{id}/payment-uri": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Payment request URI",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.PaymentURIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/jobs/{id}/qrcode": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Payment request QR code",
                "produces": ["image/png"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/accounts/{id}/balance": {
            "get": {
                "tags": ["Accounts"],
                "summary": "Account balance",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Wallet or job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.BalanceResponse"}}
                }
            }
        },
        "/api/accounts/{id}/deposit": {
            "post": {
                "tags": ["Accounts"],
                "summary": "Faucet deposit",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Wallet ID", "name": "id", "in": "path", "required": true},
                    {"description": "Amount", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.DepositRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.BalanceResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.APIResponse"}}
                }
            }
        },
        "/api/events": {
            "get": {
                "tags": ["Events"],
                "summary": "Recent pool events",
                "produces": ["application/json"],
                "parameters": [{"type": "integer", "description": "Maximum events (default 50)", "name": "limit", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EventsResponse"}}
                }
            }
        },
        "/api/events/ws": {
            "get": {
                "tags": ["Events"],
                "summary": "Live pool events (websocket)",
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/payment_job.Event"}}
                }
            }
        },
        "/mcp": {
            "post": {
                "tags": ["MCP"],
                "summary": "MCP JSON-RPC tool calls acting as the authenticated wallet",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "JSON-RPC response"},
                    "202": {"description": "Notification accepted"}
                }
            }
        }
    },
    "definitions": {
        "models.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/models.ErrorResponse"},
                "meta": {"type": "object", "additionalProperties": true}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "integer"},
                "error_code": {"type": "string"},
                "hint": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "models.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"},
                "store": {"type": "string"},
                "version": {"type": "string"},
                "timestamp": {"type": "integer"},
                "memory": {"$ref": "#/definitions/models.MemoryStats"}
            }
        },
        "models.MemoryStats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "available": {"type": "integer"}
            }
        },
        "models.CreateJobRequest": {
            "type": "object",
            "properties": {
                "contributors": {"type": "array", "items": {"type": "string"}},
                "recipients": {"type": "array", "items": {"type": "string"}},
                "amount_due": {"type": "integer"},
                "amount": {"type": "string"},
                "deadline": {"type": "integer"}
            }
        },
        "models.DepositRequest": {
            "type": "object",
            "properties": {
                "amount_due": {"type": "integer"},
                "amount": {"type": "string"}
            }
        },
        "payment_job.ContributorStatus": {
            "type": "object",
            "properties": {
                "wallet": {"type": "string"},
                "paid": {"type": "boolean"}
            }
        },
        "payment_job.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "authority": {"type": "string"},
                "amount_due": {"type": "integer"},
                "deadline": {"type": "integer"},
                "closed": {"type": "boolean"},
                "contributors": {"type": "array", "items": {"$ref": "#/definitions/payment_job.ContributorStatus"}},
                "recipients": {"type": "array", "items": {"type": "string"}},
                "created_at": {"type": "string"}
            }
        },
        "payment_job.Summary": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "authority": {"type": "string"},
                "status": {"type": "string"},
                "paid_count": {"type": "integer"},
                "contributors": {"type": "integer"},
                "recipients": {"type": "integer"},
                "amount_due": {"type": "integer"},
                "collected": {"type": "integer"},
                "expected": {"type": "integer"},
                "deadline": {"type": "string"},
                "outstanding": {"type": "array", "items": {"type": "string"}},
                "pool_balance": {"type": "integer"}
            }
        },
        "payment_job.Payout": {
            "type": "object",
            "properties": {
                "recipient": {"type": "string"},
                "amount": {"type": "integer"}
            }
        },
        "payment_job.Distribution": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "paid_count": {"type": "integer"},
                "total_collected": {"type": "integer"},
                "pool_balance": {"type": "integer"},
                "distributable": {"type": "integer"},
                "per_recipient": {"type": "integer"},
                "remainder": {"type": "integer"},
                "transfers": {"type": "array", "items": {"$ref": "#/definitions/payment_job.Payout"}},
                "complete": {"type": "boolean"}
            }
        },
        "payment_job.TransferRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "job_id": {"type": "string"},
                "from": {"type": "string"},
                "to": {"type": "string"},
                "amount": {"type": "integer"},
                "kind": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "payment_job.Event": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "job_id": {"type": "string"},
                "actor": {"type": "string"},
                "message": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "models.JobResponse": {
            "type": "object",
            "properties": {
                "job": {"$ref": "#/definitions/payment_job.Job"},
                "summary": {"$ref": "#/definitions/payment_job.Summary"}
            }
        },
        "models.OutcomeResponse": {
            "type": "object",
            "properties": {
                "job": {"$ref": "#/definitions/payment_job.Job"},
                "summary": {"$ref": "#/definitions/payment_job.Summary"},
                "distribution": {"$ref": "#/definitions/payment_job.Distribution"}
            }
        },
        "models.JobsResponse": {
            "type": "object",
            "properties": {
                "jobs": {"type": "array", "items": {"$ref": "#/definitions/payment_job.Job"}},
                "total": {"type": "integer"}
            }
        },
        "models.TransfersResponse": {
            "type": "object",
            "properties": {
                "transfers": {"type": "array", "items": {"$ref": "#/definitions/payment_job.TransferRecord"}},
                "total": {"type": "integer"}
            }
        },
        "models.EventsResponse": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/payment_job.Event"}},
                "total": {"type": "integer"}
            }
        },
        "models.BalanceResponse": {
            "type": "object",
            "properties": {
                "account": {"type": "string"},
                "balance": {"type": "integer"},
                "display": {"type": "string"}
            }
        },
        "models.PaymentURIResponse": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "uri": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Tab Pool API",
	Description:      "Pooled payment jobs: contributors pay a fixed amount into a job pool that is split evenly across recipients.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
