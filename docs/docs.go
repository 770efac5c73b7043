// Package docs registers the OpenAPI document of the taxdesk development
// backend with swag. Regenerate with `swag init -g internal/api/router.go`.
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
        "/users/register": {
            "post": {
                "tags": ["users"],
                "summary": "Register a new user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}
            }
        },
        "/users/login": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Upsert the caller's profile",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/users/{uid}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Get a user profile",
                "parameters": [{"type": "string", "name": "uid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/requests": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["requests"],
                "summary": "Submit a filing request",
                "consumes": ["multipart/form-data"],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/requests/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["requests"],
                "summary": "Get a filing request by confirmation number",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/requests/user/{uid}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["requests"],
                "summary": "List the requests of one owner, newest first",
                "parameters": [{"type": "string", "name": "uid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/admin/requests": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Page through all requests",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/admin/requests/{id}/status": {
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Change the status of a request",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}
            }
        },
        "/admin/requests/{id}/notes": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Append an internal note",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/admin/requests/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Delete a request",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        },
        "/admin/statistics": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Aggregate statistics",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/verify": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Confirm the caller is an administrator",
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "taxdesk development backend",
	Description:      "Filing intake, admin review and identity emulation for local development.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
