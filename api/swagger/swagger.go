package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dispatch Advisor API",
        "description": "Schedule placement advisor for field-service dispatch",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Advisor", "description": "Placement scoring and ranking"},
        {"name": "Exports", "description": "Suggestion report exports"}
    ],
    "paths": {
        "/advisor/jobs/due-soon": {
            "get": {
                "tags": ["Advisor"],
                "summary": "List unplaced jobs ordered by due date",
                "parameters": [
                    {"name": "dueBefore", "in": "query", "type": "string", "description": "Only jobs due on or before this date (YYYY-MM-DD)"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer", "maximum": 200}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/advisor/due-soon": {
            "post": {
                "tags": ["Advisor"],
                "summary": "Rank placement slots for due-soon jobs",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnalyzeDueSoonRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/advisor/schedules/{id}/move": {
            "post": {
                "tags": ["Advisor"],
                "summary": "Rank alternative slots for an existing schedule entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnalyzeMoveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Schedule entry not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/advisor/apply": {
            "post": {
                "tags": ["Advisor"],
                "summary": "Commit a chosen placement candidate",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyPlacementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot no longer feasible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a placement suggestion export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Export job not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AnalyzeDueSoonRequest": {
            "type": "object",
            "required": ["jobIds", "dateFrom", "dateTo"],
            "properties": {
                "jobIds": {"type": "array", "items": {"type": "string"}},
                "dateFrom": {"type": "string", "example": "2026-06-01"},
                "dateTo": {"type": "string", "example": "2026-06-14"},
                "technicianIds": {"type": "array", "items": {"type": "string"}},
                "crewSize": {"type": "integer"},
                "duePolicy": {"type": "string", "enum": ["hard", "soft"]},
                "maxCandidates": {"type": "integer"}
            }
        },
        "AnalyzeMoveRequest": {
            "type": "object",
            "required": ["dateFrom", "dateTo"],
            "properties": {
                "dateFrom": {"type": "string", "example": "2026-06-01"},
                "dateTo": {"type": "string", "example": "2026-06-14"},
                "technicianIds": {"type": "array", "items": {"type": "string"}},
                "crewSize": {"type": "integer"},
                "duePolicy": {"type": "string", "enum": ["hard", "soft"]},
                "bufferMinutes": {"type": "integer"},
                "maxCandidates": {"type": "integer"}
            }
        },
        "ApplyPlacementRequest": {
            "type": "object",
            "required": ["jobId", "date", "technicianIds"],
            "properties": {
                "jobId": {"type": "string"},
                "scheduleId": {"type": "string"},
                "date": {"type": "string", "example": "2026-06-03"},
                "technicianIds": {"type": "array", "items": {"type": "string"}},
                "startTime": {"type": "string", "example": "08:00"}
            }
        },
        "CreateExportRequest": {
            "type": "object",
            "required": ["format", "analysis"],
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "analysis": {"$ref": "#/definitions/AnalyzeDueSoonRequest"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
