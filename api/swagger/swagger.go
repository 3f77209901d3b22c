package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Duotopia API",
        "description": "Language-learning backend: organizations, speech assessment, batch grading",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Teacher and student login"},
        {"name": "Organizations", "description": "Tenant graph and memberships"},
        {"name": "Schools", "description": "Schools and school memberships"},
        {"name": "Classrooms", "description": "Classroom-to-school links"},
        {"name": "Speech", "description": "Provider tokens, assessment uploads, recordings"},
        {"name": "Grading", "description": "Batch auto-grading"},
        {"name": "Exports", "description": "Grade-sheet exports"},
        {"name": "Ops", "description": "Runtime metrics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate teacher",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/student-login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current identity",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/organizations": {
            "get": {
                "tags": ["Organizations"],
                "summary": "List organizations visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Organizations"],
                "summary": "Create organization; caller becomes org_owner",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateOrganizationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/organizations/{id}": {
            "get": {
                "tags": ["Organizations"],
                "summary": "Get organization",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Organizations"],
                "summary": "Update organization",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateOrganizationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Organizations"],
                "summary": "Soft-delete organization and cascade to schools and memberships",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/organizations/{id}/restore": {
            "post": {
                "tags": ["Organizations"],
                "summary": "Restore a soft-deleted organization (stored owner only)",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Restored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Caller is not the stored owner"},
                    "404": {"description": "No deleted organization to restore"}
                }
            }
        },
        "/organizations/{id}/teachers": {
            "get": {
                "tags": ["Organizations"],
                "summary": "List organization teachers",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Organizations"],
                "summary": "Add teacher with an org-level role (second org_owner conflicts)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddOrganizationTeacherRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Organization already has an owner"}
                }
            }
        },
        "/organizations/{id}/teachers/{teacherId}": {
            "delete": {
                "tags": ["Organizations"],
                "summary": "Remove teacher from organization",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "teacherId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        },
        "/schools": {
            "get": {
                "tags": ["Schools"],
                "summary": "List schools visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schools"],
                "summary": "Create school under an organization",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSchoolRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}": {
            "get": {
                "tags": ["Schools"],
                "summary": "Get school",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Schools"],
                "summary": "Update school",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSchoolRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schools"],
                "summary": "Soft-delete school",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/schools/{id}/teachers": {
            "get": {
                "tags": ["Schools"],
                "summary": "List school teachers",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schools"],
                "summary": "Add teacher with school-level roles (union semantics)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddSchoolTeacherRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}/teachers/{teacherId}": {
            "patch": {
                "tags": ["Schools"],
                "summary": "Update a teacher's school roles (union semantics)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "teacherId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSchoolTeacherRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schools"],
                "summary": "Remove teacher from school",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "teacherId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        },
        "/schools/{id}/classrooms": {
            "get": {
                "tags": ["Schools"],
                "summary": "List classrooms linked to the school",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classrooms/{id}/school": {
            "get": {
                "tags": ["Classrooms"],
                "summary": "Get the classroom's school link",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not linked"}
                }
            },
            "post": {
                "tags": ["Classrooms"],
                "summary": "Link classroom to a school (at most one)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LinkClassroomRequest"}}
                ],
                "responses": {
                    "201": {"description": "Linked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already linked"}
                }
            },
            "delete": {
                "tags": ["Classrooms"],
                "summary": "Unlink classroom from its school",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Unlinked"}
                }
            }
        },
        "/azure-speech/token": {
            "post": {
                "tags": ["Speech"],
                "summary": "Issue a short-lived provider credential",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Daily limit exceeded"}
                }
            }
        },
        "/speech/upload-analysis": {
            "post": {
                "tags": ["Speech"],
                "summary": "Upload a client-run assessment (idempotent on analysis_id)",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "analysis_id", "in": "formData", "required": true, "type": "string"},
                    {"name": "analysis_json", "in": "formData", "required": true, "type": "file"},
                    {"name": "audio_file", "in": "formData", "type": "file"},
                    {"name": "progress_id", "in": "formData", "type": "string"},
                    {"name": "latency_ms", "in": "formData", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/recordings/{progressId}/url": {
            "get": {
                "tags": ["Speech"],
                "summary": "Sign a recording download URL",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "progressId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No recording"}
                }
            }
        },
        "/recordings/download/{token}": {
            "get": {
                "tags": ["Speech"],
                "summary": "Download a recording via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Audio bytes"},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/assignments/{id}/batch-grade": {
            "post": {
                "tags": ["Grading"],
                "summary": "Batch grade every recorded-but-unscored item",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Per-student results", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/assignments/{id}/grades/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Render the assignment grade sheet to CSV or PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Signed download URL", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a rendered grade sheet via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File bytes"},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/ops/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Runtime metrics snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "StudentLoginRequest": {
            "type": "object",
            "required": ["student_id", "password"],
            "properties": {
                "student_id": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateOrganizationRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "display_name": {"type": "string"},
                "settings": {"type": "object"}
            }
        },
        "UpdateOrganizationRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "display_name": {"type": "string"},
                "settings": {"type": "object"}
            }
        },
        "AddOrganizationTeacherRequest": {
            "type": "object",
            "required": ["teacher_id", "role"],
            "properties": {
                "teacher_id": {"type": "string"},
                "role": {"type": "string", "enum": ["org_owner", "org_admin"]}
            }
        },
        "CreateSchoolRequest": {
            "type": "object",
            "required": ["organization_id", "display_name"],
            "properties": {
                "organization_id": {"type": "string"},
                "display_name": {"type": "string"}
            }
        },
        "UpdateSchoolRequest": {
            "type": "object",
            "required": ["display_name"],
            "properties": {
                "display_name": {"type": "string"}
            }
        },
        "AddSchoolTeacherRequest": {
            "type": "object",
            "required": ["teacher_id", "roles"],
            "properties": {
                "teacher_id": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string", "enum": ["school_admin", "teacher"]}}
            }
        },
        "UpdateSchoolTeacherRequest": {
            "type": "object",
            "required": ["roles"],
            "properties": {
                "roles": {"type": "array", "items": {"type": "string", "enum": ["school_admin", "teacher"]}}
            }
        },
        "LinkClassroomRequest": {
            "type": "object",
            "required": ["school_id"],
            "properties": {
                "school_id": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
