package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Registration API",
        "description": "Enrollment, waitlist and section administration for a course catalog.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/users": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Register a user account",
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateUserRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Username taken",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Authenticate with username and password",
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AuthenticateRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Token issued",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Invalid credentials",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": [
                    "Authentication"
                ],
                "summary": "Claims of the current token",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/classes": {
            "get": {
                "tags": [
                    "Catalog"
                ],
                "summary": "Available sections of a department",
                "parameters": [
                    {
                        "in": "query",
                        "name": "department",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrations": {
            "post": {
                "tags": [
                    "Registrations"
                ],
                "summary": "Enroll in a section",
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SectionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Already enrolled, already waitlisted or not eligible",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "201": {
                        "description": "Enrolled or waitlisted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Section closed or role not allowed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "500": {
                        "description": "Registration failed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrations/drop": {
            "post": {
                "tags": [
                    "Registrations"
                ],
                "summary": "Drop a section",
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SectionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Dropped or already dropped",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "No registration",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/students/{id}/waitlist": {
            "get": {
                "tags": [
                    "Waitlists"
                ],
                "summary": "Waitlist positions of a student",
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "integer",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/sections/{courseCode}/{sectionNumber}/waitlist": {
            "get": {
                "tags": [
                    "Waitlists"
                ],
                "summary": "Waitlist of a section in rank order",
                "parameters": [
                    {
                        "in": "path",
                        "name": "courseCode",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "path",
                        "name": "sectionNumber",
                        "type": "integer",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Section not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/instructor/roster": {
            "get": {
                "tags": [
                    "Instructor"
                ],
                "summary": "Students of the caller's sections",
                "parameters": [
                    {
                        "in": "query",
                        "name": "status",
                        "type": "string",
                        "enum": [
                            "enrolled",
                            "waitlisted",
                            "dropped"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "course_code",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "section_number",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/instructor/roster/export": {
            "get": {
                "tags": [
                    "Instructor"
                ],
                "summary": "Download the caller's roster",
                "parameters": [
                    {
                        "in": "query",
                        "name": "status",
                        "type": "string",
                        "enum": [
                            "enrolled",
                            "waitlisted",
                            "dropped"
                        ]
                    },
                    {
                        "in": "query",
                        "name": "course_code",
                        "type": "string"
                    },
                    {
                        "in": "query",
                        "name": "section_number",
                        "type": "integer"
                    },
                    {
                        "in": "query",
                        "name": "format",
                        "type": "string",
                        "enum": [
                            "csv",
                            "pdf"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ]
            }
        },
        "/instructor/drops": {
            "post": {
                "tags": [
                    "Instructor"
                ],
                "summary": "Drop a student from one of the caller's sections",
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DropStudentRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Dropped",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Not the section's instructor",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Student not enrolled",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrar/classes": {
            "post": {
                "tags": [
                    "Registrar"
                ],
                "summary": "Add a section, creating its class when new",
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AddClassRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Section exists",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrar/sections/{courseCode}/{sectionNumber}": {
            "delete": {
                "tags": [
                    "Registrar"
                ],
                "summary": "Delete a section",
                "parameters": [
                    {
                        "in": "path",
                        "name": "courseCode",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "path",
                        "name": "sectionNumber",
                        "type": "integer",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Deleted",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Section not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrar/sections/{courseCode}/{sectionNumber}/instructor": {
            "put": {
                "tags": [
                    "Registrar"
                ],
                "summary": "Reassign the instructor of a section",
                "parameters": [
                    {
                        "in": "path",
                        "name": "courseCode",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "path",
                        "name": "sectionNumber",
                        "type": "integer",
                        "required": true
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ChangeInstructorRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrar/sections/{courseCode}/{sectionNumber}/freeze": {
            "post": {
                "tags": [
                    "Registrar"
                ],
                "summary": "Close a section to new registrations",
                "parameters": [
                    {
                        "in": "path",
                        "name": "courseCode",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "path",
                        "name": "sectionNumber",
                        "type": "integer",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrar/sections/{courseCode}/{sectionNumber}/audit": {
            "get": {
                "tags": [
                    "Registrar"
                ],
                "summary": "Compare section counters with the registration ledger",
                "parameters": [
                    {
                        "in": "path",
                        "name": "courseCode",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "path",
                        "name": "sectionNumber",
                        "type": "integer",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/registrar/metrics/summary": {
            "get": {
                "tags": [
                    "Metrics"
                ],
                "summary": "Request, cache and registration counters",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "CreateUserRequest": {
            "type": "object",
            "properties": {
                "cwid": {
                    "type": "integer"
                },
                "first_name": {
                    "type": "string"
                },
                "middle_name": {
                    "type": "string"
                },
                "last_name": {
                    "type": "string"
                },
                "username": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "role": {
                    "type": "string",
                    "enum": [
                        "student",
                        "instructor",
                        "registrar"
                    ]
                }
            }
        },
        "AuthenticateRequest": {
            "type": "object",
            "properties": {
                "username": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                }
            }
        },
        "SectionRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "integer"
                },
                "course_code": {
                    "type": "string"
                },
                "section_number": {
                    "type": "integer"
                }
            }
        },
        "DropStudentRequest": {
            "type": "object",
            "properties": {
                "student_id": {
                    "type": "integer"
                },
                "course_code": {
                    "type": "string"
                },
                "section_number": {
                    "type": "integer"
                }
            }
        },
        "AddClassRequest": {
            "type": "object",
            "properties": {
                "course_code": {
                    "type": "string"
                },
                "class_name": {
                    "type": "string"
                },
                "department": {
                    "type": "string"
                },
                "section_number": {
                    "type": "integer"
                },
                "instructor_id": {
                    "type": "integer"
                },
                "max_enrollment": {
                    "type": "integer"
                }
            }
        },
        "ChangeInstructorRequest": {
            "type": "object",
            "properties": {
                "instructor_id": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
            }
        }
    }
}`

// SwaggerInfo holds the metadata served at /docs.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Course Registration API",
	Description:      "Enrollment, waitlist and section administration for a course catalog.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
