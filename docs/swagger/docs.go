// Package swagger registers the DromeBoard OpenAPI document with swag.
package swagger

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
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Database unreachable"}}
            }
        },
        "/version": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Get service version",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Log in with email and password",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/wire.LoginRequest"}}],
                "responses": {"200": {"description": "Session token"}, "400": {"description": "Missing credentials"}, "401": {"description": "Invalid credentials"}, "403": {"description": "Inactive user"}}
            }
        },
        "/api/auth/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "End the current session",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/auth/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current session",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthenticated"}}
            }
        },
        "/api/units": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Units"],
                "summary": "List units",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Units"],
                "summary": "Create a unit",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/wire.UnitRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid unit"}, "409": {"description": "Duplicate code"}}
            }
        },
        "/api/units/{id}": {
            "put": {
                "tags": ["Units"],
                "summary": "Update a unit",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Units"],
                "summary": "Deactivate a unit",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Unit has users"}}
            }
        },
        "/api/units/{id}/users": {
            "get": {
                "tags": ["Units"],
                "summary": "Users assigned to a unit",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/units/{id}/modules/{moduleID}": {
            "post": {
                "tags": ["Units"],
                "summary": "Enable or disable a module for a unit",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "path", "name": "moduleID", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/api/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "unit_id", "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create a user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/wire.UserRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Duplicate email"}}
            }
        },
        "/api/users/{id}": {
            "put": {
                "tags": ["Users"],
                "summary": "Update a user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate a user",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/users/{id}/reset-password": {
            "post": {
                "tags": ["Users"],
                "summary": "Reset a user's password",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/roles": {
            "get": {
                "tags": ["Users"],
                "summary": "List roles",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/modules": {
            "get": {
                "tags": ["Modules"],
                "summary": "List modules, optionally those enabled for a unit",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "unit_id", "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/results": {
            "get": {
                "tags": ["Results"],
                "summary": "List uploads",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "date_range", "type": "string", "enum": ["7d", "30d", "90d"]},
                    {"in": "query", "name": "unit_id", "type": "string"},
                    {"in": "query", "name": "user_id", "type": "string"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Results"],
                "summary": "Upload parsed spreadsheet rows",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/wire.UploadRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid upload"}}
            }
        },
        "/api/metrics": {
            "get": {
                "tags": ["Results"],
                "summary": "Dashboard metrics",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "date_range", "type": "string", "enum": ["7d", "30d", "90d"]},
                    {"in": "query", "name": "unit_id", "type": "string"},
                    {"in": "query", "name": "user_id", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "wire.LoginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "wire.UnitRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}, "code": {"type": "string"}, "address": {"type": "string"},
                "phone": {"type": "string"}, "email": {"type": "string"},
                "modules": {"type": "array", "items": {"type": "string"}}
            }
        },
        "wire.UserRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}, "email": {"type": "string"}, "phone": {"type": "string"},
                "role_id": {"type": "string"}, "password": {"type": "string"},
                "unit_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "wire.UploadRequest": {
            "type": "object",
            "properties": {
                "unit_id": {"type": "string"}, "file_name": {"type": "string"},
                "processing_ms": {"type": "integer"},
                "rows": {"type": "array", "items": {"type": "object"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "DromeBoard API",
	Description:      "Units, users, modules and results behind the DromeBoard dashboard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
