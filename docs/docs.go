// Package docs holds the Swagger document served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag/v2"

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
    "paths": {
        "/billing/fee-catalog": {
            "get": {"operationId": "listFeeCatalog", "tags": ["fee-catalog"], "summary": "List fee catalog entries", "responses": {"200": {"description": "OK"}}},
            "put": {"operationId": "upsertFeeCatalog", "tags": ["fee-catalog"], "summary": "Create or update a fee catalog entry", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/billing/fee-catalog/import": {
            "post": {"operationId": "importFeeCatalog", "tags": ["fee-catalog"], "summary": "Bulk upsert the fee catalog from CSV", "consumes": ["multipart/form-data"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/billing/runs": {
            "post": {"operationId": "runBilling", "tags": ["billing-runs"], "summary": "Run monthly billing now", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "429": {"description": "Too Many Requests"}}}
        },
        "/billing/students": {
            "post": {"operationId": "openLedger", "tags": ["billing"], "summary": "Open a student ledger", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/billing/students/{student_id}/calculations": {
            "get": {"operationId": "listCalculations", "tags": ["billing"], "summary": "List fee calculations of a student", "responses": {"200": {"description": "OK"}}}
        },
        "/billing/students/{student_id}/ledger": {
            "get": {"operationId": "getLedger", "tags": ["billing"], "summary": "Get a student ledger", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/billing/students/{student_id}/payments": {
            "get": {"operationId": "listPayments", "tags": ["billing"], "summary": "List payments of a student", "responses": {"200": {"description": "OK"}}},
            "post": {"operationId": "applyPayment", "tags": ["billing"], "summary": "Apply a payment", "responses": {"201": {"description": "Created"}, "422": {"description": "Unprocessable Entity"}, "503": {"description": "Service Unavailable"}}}
        },
        "/billing/students/{student_id}/schedules": {
            "get": {"operationId": "listSchedules", "tags": ["billing"], "summary": "List monthly schedule rows of a student", "responses": {"200": {"description": "OK"}}}
        },
        "/billing/students/{student_id}/status": {
            "patch": {"operationId": "changeLedgerStatus", "tags": ["billing"], "summary": "Change ledger status", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Fee Billing API",
	Description:      "Monthly student fee billing, payments and ledgers",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
