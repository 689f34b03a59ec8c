// Package docs registers the OpenAPI description served under /swagger.
// Keep it in step with the godoc annotations on the handlers.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/health": {"get": {"tags": ["health"], "summary": "Dependency health", "responses": {"200": {"description": "healthy"}, "206": {"description": "degraded"}}}},
        "/health/ready": {"get": {"tags": ["health"], "summary": "Readiness probe", "responses": {"200": {"description": "ready"}, "503": {"description": "database unavailable"}}}},
        "/health/live": {"get": {"tags": ["health"], "summary": "Liveness probe", "responses": {"200": {"description": "alive"}}}},
        "/v1/entities": {
            "get": {"tags": ["entities"], "summary": "List entities", "parameters": [{"name": "entity_type", "in": "query", "type": "string", "enum": ["TENANT", "SUB_TENANT"]}, {"name": "limit", "in": "query", "type": "integer"}, {"name": "offset", "in": "query", "type": "integer"}], "responses": {"200": {"description": "entities"}}},
            "post": {"tags": ["entities"], "summary": "Provision a tenant or sub-tenant", "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProvisionEntityRequest"}}], "responses": {"201": {"description": "created"}, "400": {"description": "invalid entity"}, "409": {"description": "exists or invalid hierarchy"}}}
        },
        "/v1/entities/{entity_id}": {"get": {"tags": ["entities"], "summary": "Stored entity", "parameters": [{"name": "entity_id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "entity"}, "404": {"description": "not found"}}}},
        "/v1/entities/{entity_id}/status": {"get": {"tags": ["entities"], "summary": "Effective status including ancestors", "parameters": [{"name": "entity_id", "in": "path", "required": true, "type": "string"}, {"name": "entity_type", "in": "query", "type": "string"}], "responses": {"200": {"description": "status"}}}},
        "/v1/entities/{entity_id}/disable": {"post": {"tags": ["entities"], "summary": "Disable an entity", "parameters": [{"name": "entity_id", "in": "path", "required": true, "type": "string"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}], "responses": {"204": {"description": "disabled"}}}},
        "/v1/entities/{entity_id}/enable": {"post": {"tags": ["entities"], "summary": "Enable an entity", "parameters": [{"name": "entity_id", "in": "path", "required": true, "type": "string"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStatusRequest"}}], "responses": {"204": {"description": "enabled"}}}},
        "/v1/prices/{service_code}": {"put": {"tags": ["pricing"], "summary": "Set the platform default price", "parameters": [{"name": "service_code", "in": "path", "required": true, "type": "string"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPriceRequest"}}], "responses": {"204": {"description": "stored"}}}},
        "/v1/admin/jobs/reconcile": {"post": {"tags": ["jobs"], "summary": "Reconcile every wallet now", "responses": {"200": {"description": "report"}}}},
        "/v1/admin/jobs/archive": {"post": {"tags": ["jobs"], "summary": "Export one UTC day of audit entries", "parameters": [{"name": "day", "in": "query", "type": "string", "format": "date"}], "responses": {"200": {"description": "archived count"}, "503": {"description": "object storage not configured"}}}},
        "/v1/tenants/{tenant_id}/prices": {"get": {"tags": ["pricing"], "summary": "Effective price of every service", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "prices"}}}},
        "/v1/tenants/{tenant_id}/prices/{service_code}": {
            "get": {"tags": ["pricing"], "summary": "Resolve one price", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "service_code", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "pricing"}, "403": {"description": "not configured"}}},
            "put": {"tags": ["pricing"], "summary": "Set a tenant override", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "service_code", "in": "path", "required": true, "type": "string"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPriceRequest"}}], "responses": {"204": {"description": "stored"}}},
            "delete": {"tags": ["pricing"], "summary": "Remove a tenant override", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "service_code", "in": "path", "required": true, "type": "string"}], "responses": {"204": {"description": "removed"}}}
        },
        "/v1/tenants/{tenant_id}/wallet": {"get": {"tags": ["wallet"], "summary": "Current balance", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "balance"}}}},
        "/v1/tenants/{tenant_id}/wallet/transactions": {"get": {"tags": ["wallet"], "summary": "Ledger, newest first", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "limit", "in": "query", "type": "integer"}, {"name": "offset", "in": "query", "type": "integer"}], "responses": {"200": {"description": "transactions"}}}},
        "/v1/tenants/{tenant_id}/wallet/topup": {"post": {"tags": ["wallet"], "summary": "Credit a wallet", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TopupRequest"}}], "responses": {"200": {"description": "balance"}}}},
        "/v1/tenants/{tenant_id}/wallet/refund": {"post": {"tags": ["wallet"], "summary": "Refund a charge", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefundRequest"}}], "responses": {"200": {"description": "balance"}, "404": {"description": "no wallet"}}}},
        "/v1/tenants/{tenant_id}/wallet/reconcile": {"post": {"tags": ["wallet"], "summary": "Compare balance with ledger", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "result"}}}},
        "/v1/tenants/{tenant_id}/audit-logs": {"get": {"tags": ["audit"], "summary": "Query audit entries", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "event_type", "in": "query", "type": "string"}, {"name": "event_result", "in": "query", "type": "string"}, {"name": "actor_id", "in": "query", "type": "string"}, {"name": "target_entity", "in": "query", "type": "string"}, {"name": "start_date", "in": "query", "type": "string"}, {"name": "end_date", "in": "query", "type": "string"}, {"name": "limit", "in": "query", "type": "integer"}, {"name": "offset", "in": "query", "type": "integer"}], "responses": {"200": {"description": "page"}}}},
        "/v1/tenants/{tenant_id}/audit-logs/summary": {"get": {"tags": ["audit"], "summary": "Counts by event, result and reason", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "summary"}}}},
        "/v1/tenants/{tenant_id}/audit-logs/{log_id}": {"get": {"tags": ["audit"], "summary": "One audit entry", "parameters": [{"name": "tenant_id", "in": "path", "required": true, "type": "string"}, {"name": "log_id", "in": "path", "required": true, "type": "string", "format": "uuid"}], "responses": {"200": {"description": "entry"}, "404": {"description": "not found"}}}},
        "/v1/services/{service_code}/authorize": {"post": {"tags": ["usage"], "summary": "Admission check without charging", "parameters": [{"name": "service_code", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "pricing"}, "402": {"description": "insufficient balance", "schema": {"$ref": "#/definitions/InsufficientBalanceResponse"}}, "403": {"description": "disabled or not priced"}}}},
        "/v1/services/{service_code}/usage": {"post": {"tags": ["usage"], "summary": "Charge for completed work", "parameters": [{"name": "service_code", "in": "path", "required": true, "type": "string"}, {"name": "Idempotency-Key", "in": "header", "type": "string"}, {"name": "body", "in": "body", "schema": {"$ref": "#/definitions/RecordUsageRequest"}}], "responses": {"200": {"description": "charged, or replayed when reference_id was already charged"}, "402": {"description": "insufficient balance", "schema": {"$ref": "#/definitions/InsufficientBalanceResponse"}}}}}
    },
    "definitions": {
        "ProvisionEntityRequest": {"type": "object", "required": ["entity_id", "entity_type"], "properties": {"entity_id": {"type": "string"}, "entity_type": {"type": "string", "enum": ["TENANT", "SUB_TENANT"]}, "parent_id": {"type": "string"}, "status": {"type": "string", "enum": ["ACTIVE", "DISABLED"]}}},
        "ChangeStatusRequest": {"type": "object", "required": ["entity_type"], "properties": {"entity_type": {"type": "string"}, "reason": {"type": "string"}}},
        "SetPriceRequest": {"type": "object", "required": ["price"], "properties": {"price": {"type": "string"}, "currency": {"type": "string"}, "description": {"type": "string"}}},
        "TopupRequest": {"type": "object", "required": ["amount", "payment_id"], "properties": {"amount": {"type": "string"}, "payment_id": {"type": "string"}}},
        "RefundRequest": {"type": "object", "required": ["amount", "reason"], "properties": {"amount": {"type": "string"}, "reason": {"type": "string"}, "reference_id": {"type": "string"}}},
        "RecordUsageRequest": {"type": "object", "properties": {"reference_id": {"type": "string"}, "metadata": {"type": "object"}}},
        "InsufficientBalanceResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "string"}, "required": {"type": "string"}, "available": {"type": "string"}, "currency": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "verimeter API",
	Description:      "Tenant admission control and metered billing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
