package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "University Research Portal API",
        "description": "Approval and milestone workflow engine for university research projects",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Projects", "description": "Research project lifecycle"},
        {"name": "Bookings", "description": "Defense booking approval chain"},
        {"name": "Councils", "description": "Council grading"},
        {"name": "Milestones", "description": "Milestone deliverable submissions"},
        {"name": "Notifications", "description": "User notification inbox"}
    ],
    "paths": {
        "/projects": {
            "get": {
                "tags": ["Projects"],
                "summary": "List projects",
                "parameters": [
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "departmentId", "in": "query", "type": "string"},
                    {"name": "supervisorId", "in": "query", "type": "string"},
                    {"name": "termId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Projects"],
                "summary": "Register a research project",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/projects/{id}": {
            "get": {
                "tags": ["Projects"],
                "summary": "Fetch a project with all relations",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Projects"],
                "summary": "Update a project",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateProjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Projects"],
                "summary": "Delete a project and its relations",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookings",
                "parameters": [
                    {"name": "projectId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Request a defense booking",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate pending booking", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Fetch a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Bookings"],
                "summary": "Update a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Bookings"],
                "summary": "Cancel a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/bookings/{id}/approve/lecturer": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Lecturer decision on a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/approve/faculty-dean": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Faculty dean decision on a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{id}/approve/rector": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Rector decision on a booking",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveBookingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/councils/grades": {
            "post": {
                "tags": ["Councils"],
                "summary": "Submit or revise a council grade",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not a council member", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/councils/{id}/grades": {
            "get": {
                "tags": ["Councils"],
                "summary": "List grades for a council and project",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "projectId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/councils/{id}/grades/export": {
            "get": {
                "tags": ["Councils"],
                "summary": "Export a grade sheet as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "projectId", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/milestones/{id}/submissions": {
            "get": {
                "tags": ["Milestones"],
                "summary": "List submissions for a milestone",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Milestones"],
                "summary": "Submit a milestone deliverable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitMilestoneRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Deadline passed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the current user's notifications",
                "parameters": [
                    {"name": "unseen", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}/seen": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as seen",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        }
    },
    "definitions": {
        "ProjectMemberInput": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "role_in_team": {"type": "string"}
            },
            "required": ["student_id", "role_in_team"]
        },
        "CreateProjectRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "level": {"type": "string"},
                "supervisor_id": {"type": "string"},
                "term_id": {"type": "string"},
                "faculty_id": {"type": "string"},
                "department_id": {"type": "string"},
                "major_id": {"type": "string"},
                "members": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ProjectMemberInput"}
                }
            },
            "required": ["code", "title", "level", "supervisor_id", "term_id", "faculty_id", "department_id", "major_id", "members"]
        },
        "UpdateProjectRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "level": {"type": "string"},
                "status": {"type": "string"},
                "supervisor_id": {"type": "string"},
                "members": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ProjectMemberInput"}
                }
            }
        },
        "CreateBookingRequest": {
            "type": "object",
            "properties": {
                "project_id": {"type": "string"},
                "scheduled_at": {"type": "string", "format": "date-time"},
                "room": {"type": "string"},
                "note": {"type": "string"}
            },
            "required": ["project_id", "scheduled_at"]
        },
        "UpdateBookingRequest": {
            "type": "object",
            "properties": {
                "scheduled_at": {"type": "string", "format": "date-time"},
                "room": {"type": "string"},
                "note": {"type": "string"}
            }
        },
        "ApproveBookingRequest": {
            "type": "object",
            "properties": {
                "approve": {"type": "boolean"},
                "note": {"type": "string"}
            }
        },
        "SubmitGradeRequest": {
            "type": "object",
            "properties": {
                "council_id": {"type": "string"},
                "project_id": {"type": "string"},
                "score": {"type": "number"},
                "comment": {"type": "string"}
            },
            "required": ["council_id", "project_id", "score"]
        },
        "SubmitMilestoneRequest": {
            "type": "object",
            "properties": {
                "file_url": {"type": "string"},
                "note": {"type": "string"}
            },
            "required": ["file_url"]
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
