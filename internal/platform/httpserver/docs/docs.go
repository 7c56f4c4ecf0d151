// Package docs holds the generated OpenAPI document served at /swagger/doc.json.
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
    "paths": {
        "/v1/market/listings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["marketplace"],
                "summary": "List listings",
                "parameters": [
                    {"type": "string", "name": "seller", "in": "query"},
                    {"type": "string", "name": "asset_contract", "in": "query"},
                    {"type": "string", "name": "kind", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/market/listings/multi-unit": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["marketplace"],
                "summary": "Register a multi-unit asset for sale",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/v1/market/listings/unique": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["marketplace"],
                "summary": "Register a unique asset for sale",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/v1/market/listings/{asset_contract}/{asset_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["marketplace"],
                "summary": "Fetch one listing",
                "parameters": [
                    {"type": "string", "name": "asset_contract", "in": "path", "required": true},
                    {"type": "string", "name": "asset_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["marketplace"],
                "summary": "Cancel a listing",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true},
                    {"type": "string", "name": "asset_contract", "in": "path", "required": true},
                    {"type": "string", "name": "asset_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/v1/market/assets/{asset_id}/listing": {
            "get": {
                "produces": ["application/json"],
                "tags": ["marketplace"],
                "summary": "Resolve the active listing for an asset id",
                "parameters": [
                    {"type": "string", "name": "asset_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/v1/market/purchases": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["marketplace"],
                "summary": "Buy units of a listed asset",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "402": {"description": "Payment Required"},
                    "409": {"description": "Conflict"}
                }
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "tokenmart API",
	Description:      "Fixed-price marketplace for multi-unit and unique tokenized assets.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
