// Package docs holds the OpenAPI document served under /swagger/. Keep it in
// step with the @-annotations on the handlers (swag init -g internal/api/server.go).
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
    "paths": {
        "/api/v1/auth.Register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a local user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CredentialsRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}},
                    "default": {"description": "-32602 invalid params, -32009 username taken", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/auth.Login": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in with username and password",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CredentialsRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoginResponse"}},
                    "default": {"description": "-32001 invalid credentials", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/server.Info": {
            "post": {
                "tags": ["server"],
                "summary": "Server information",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ServerInfoResponse"}}}
            }
        },
        "/api/v1/setting.Get": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["setting"],
                "summary": "Get a setting",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/SettingID"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Setting"}},
                    "default": {"description": "-32004 not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/setting.List": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["setting"],
                "summary": "List settings",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ListSettingResponse"}}}
            }
        },
        "/api/v1/setting.Create": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["setting"],
                "summary": "Create a setting",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreateSettingRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Setting"}},
                    "default": {"description": "-32602 invalid params, -32009 already exists", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/setting.Update": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["setting"],
                "summary": "Replace a setting",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/Setting"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Setting"}},
                    "default": {"description": "-32004 not found, -32010 version conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/setting.Patch": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["setting"],
                "summary": "Merge-patch a setting",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/PatchSettingRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Setting"}},
                    "default": {"description": "-32602 invalid patch, -32010 version conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/setting.Remove": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["setting"],
                "summary": "Remove a setting",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/SettingID"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RemoveSettingResponse"}},
                    "default": {"description": "-32004 not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "CredentialsRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "User": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "version": {"type": "string"}, "username": {"type": "string"}, "createdAt": {"type": "string"}}
        },
        "LoginResponse": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "user": {"$ref": "#/definitions/User"}}
        },
        "ServerInfoResponse": {
            "type": "object",
            "properties": {"version": {"type": "string"}, "backend": {"type": "string"}, "events": {"type": "string"}, "started_at": {"type": "string"}, "uptime": {"type": "string"}}
        },
        "SettingID": {
            "type": "object",
            "properties": {"id": {"type": "string"}}
        },
        "Setting": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "version": {"type": "string", "example": "42"},
                "language": {"type": "string"},
                "avatar": {"type": "string"},
                "currencyCode": {"type": "string", "example": "EUR"},
                "currencySymbol": {"type": "string", "example": "€"}
            }
        },
        "CreateSettingRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "language": {"type": "string"},
                "avatar": {"type": "string"},
                "currencyCode": {"type": "string"},
                "currencySymbol": {"type": "string"}
            }
        },
        "PatchSettingRequest": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "version": {"type": "string"}, "patch": {"type": "object"}}
        },
        "ListSettingResponse": {
            "type": "object",
            "properties": {"settings": {"type": "array", "items": {"$ref": "#/definitions/Setting"}}, "total": {"type": "integer"}}
        },
        "RemoveSettingResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "removed": {"type": "boolean"}}
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "jsonrpc": {"type": "string", "example": "2.0"},
                "error": {"type": "object", "properties": {"code": {"type": "integer"}, "message": {"type": "string"}}},
                "id": {"type": "integer"}
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
	Title:            "Settings API",
	Description:      "JSON-RPC 2.0 settings service over a versioned document store.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
