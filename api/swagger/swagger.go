package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Intake API",
        "description": "Collects course intentions and turns each pending batch into sections, a conflict-free timetable and enrollments.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Intentions", "description": "Student course intentions"},
        {"name": "Processing", "description": "Batch processing runs and their reports"},
        {"name": "Timetable", "description": "Published sections and exports"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {"tags": ["Observability"], "summary": "Liveness check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"tags": ["Observability"], "summary": "Readiness check against Postgres and Redis", "responses": {"200": {"description": "Ready"}, "503": {"description": "A dependency is down"}}}
        },
        "/metrics": {
            "get": {"tags": ["Observability"], "summary": "Prometheus metrics", "produces": ["text/plain"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/metrics/summary": {
            "get": {"tags": ["Observability"], "summary": "Process metrics snapshot", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/api/v1/intentions": {
            "get": {
                "tags": ["Intentions"],
                "summary": "List course intentions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["pending", "enrolled", "failed"]},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "courseCode", "in": "query", "type": "string"},
                    {"name": "term", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Intentions"],
                "summary": "Register a course intention",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitIntentionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"},
                    "404": {"description": "Unknown student or course"}
                }
            }
        },
        "/api/v1/intentions/process": {
            "post": {
                "tags": ["Processing"],
                "summary": "Process every pending intention",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "async", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "Run report", "schema": {"$ref": "#/definitions/ProcessingReport"}},
                    "202": {"description": "Run queued"},
                    "409": {"description": "A run is already in progress"},
                    "503": {"description": "Store unavailable"}
                }
            }
        },
        "/api/v1/processing-runs": {
            "get": {
                "tags": ["Processing"],
                "summary": "List processing runs",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["running", "completed", "failed"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/processing-runs/{id}": {
            "get": {
                "tags": ["Processing"],
                "summary": "Get a processing run",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/api/v1/processing-runs/latest/report": {
            "get": {
                "tags": ["Processing"],
                "summary": "Report of the most recent finished run",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ProcessingReport"}}, "404": {"description": "No run recorded"}}
            }
        },
        "/api/v1/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Published timetable of a term",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "term", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/timetable/export": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Render the timetable as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TimetableExportRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/export/{token}": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download an exported timetable via signed token",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File"}, "401": {"description": "Invalid or expired token"}}
            }
        }
    },
    "definitions": {
        "SubmitIntentionRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "courseCode": {"type": "string"},
                "term": {"type": "string"}
            },
            "required": ["courseCode", "term"]
        },
        "TimetableExportRequest": {
            "type": "object",
            "properties": {
                "term": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["term", "format"]
        },
        "ProcessingReport": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "successful_enrollments": {"type": "integer"},
                "failed_prerequisites": {"type": "integer"},
                "failed_scheduling": {"type": "integer"},
                "failed_capacity": {"type": "integer"},
                "failed_not_found": {"type": "integer"},
                "sections_created": {"type": "integer"},
                "course_terms_scheduled": {"type": "integer"},
                "course_terms_unscheduled": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
