// Package docs registers the OpenAPI document served under
// /api/tour/swagger/*.
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
        "/api/tour/document": {
            "get": {
                "produces": ["application/json"],
                "tags": ["editor"],
                "summary": "Get the tour document",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/tour/styles": {
            "get": {
                "produces": ["application/json"],
                "tags": ["editor"],
                "summary": "Get the style configuration",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["editor"],
                "summary": "Update the style configuration",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid style configuration"}}
            }
        },
        "/api/tour/scenes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scenes"],
                "summary": "Add a scene",
                "responses": {"201": {"description": "Created"}, "409": {"description": "Scene exists"}}
            }
        },
        "/api/tour/scenes/{id}": {
            "patch": {
                "tags": ["scenes"],
                "summary": "Update a scene",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Scene not found"}}
            },
            "delete": {
                "tags": ["scenes"],
                "summary": "Delete a scene",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Default scene"}, "404": {"description": "Scene not found"}}
            }
        },
        "/api/tour/scenes/{id}/hotspots": {
            "post": {
                "tags": ["hotspots"],
                "summary": "Place a hotspot",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}}
            },
            "delete": {
                "tags": ["hotspots"],
                "summary": "Remove every hotspot of a scene",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/tour/hotspots/{hid}": {
            "patch": {
                "tags": ["hotspots"],
                "summary": "Edit a hotspot",
                "parameters": [{"type": "integer", "name": "hid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed"}, "404": {"description": "Hotspot not found"}}
            },
            "delete": {
                "tags": ["hotspots"],
                "summary": "Delete a hotspot",
                "parameters": [{"type": "integer", "name": "hid", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Hotspot not found"}}
            }
        },
        "/api/tour/uploads": {
            "post": {
                "consumes": ["multipart/form-data"],
                "tags": ["assets"],
                "summary": "Stage an upload behind a transient handle",
                "parameters": [{"type": "file", "name": "file", "in": "formData", "required": true}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/api/tour/assets/{handle}": {
            "get": {
                "tags": ["assets"],
                "summary": "Read the bytes behind a transient handle",
                "parameters": [{"type": "string", "name": "handle", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Unknown handle"}}
            }
        },
        "/api/tour/export": {
            "get": {
                "produces": ["application/zip"],
                "tags": ["bundle"],
                "summary": "Export the tour as a static site bundle",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/tour/import": {
            "post": {
                "consumes": ["multipart/form-data"],
                "tags": ["bundle"],
                "summary": "Import an exported bundle",
                "parameters": [{"type": "file", "name": "bundle", "in": "formData", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid bundle"}}
            }
        },
        "/submit-project": {
            "post": {
                "consumes": ["multipart/form-data"],
                "tags": ["submissions"],
                "summary": "Submit a tour project",
                "parameters": [
                    {"type": "file", "name": "project", "in": "formData", "required": true},
                    {"type": "string", "name": "studentName", "in": "formData", "required": true},
                    {"type": "string", "name": "projectName", "in": "formData"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Missing file or name"}}
            }
        },
        "/admin/submissions": {
            "get": {
                "tags": ["admin"],
                "summary": "List submissions",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/host/{filename}": {
            "post": {
                "tags": ["admin"],
                "summary": "Host a submission",
                "parameters": [{"type": "string", "name": "filename", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid URL path"}, "404": {"description": "Project file not found"}}
            }
        },
        "/admin/unhost/{filename}": {
            "post": {
                "tags": ["admin"],
                "summary": "Stop hosting a submission",
                "parameters": [{"type": "string", "name": "filename", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Project is not currently hosted"}}
            }
        },
        "/admin/backup-all": {
            "get": {
                "produces": ["application/zip"],
                "tags": ["admin"],
                "summary": "Download a backup of every submission",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/restore-backup": {
            "post": {
                "consumes": ["multipart/form-data"],
                "tags": ["admin"],
                "summary": "Restore a backup",
                "parameters": [{"type": "file", "name": "backup", "in": "formData", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "No backup file provided"}}
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
	Title:            "Tour Service API",
	Description:      "Authoring API for 360° VR tours and the project submission server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
