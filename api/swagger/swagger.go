package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam Insight API",
        "description": "Exam grading and score analytics service",
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
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Exams", "description": "Exam structure: exams, subjects, questions, reviewers"},
        {"name": "Roster", "description": "Student and reviewer registration"},
        {"name": "Sheets", "description": "Answer sheet ingestion and identity binding"},
        {"name": "Grading", "description": "Multi-reviewer grading and arbitration"},
        {"name": "Analysis", "description": "Score analytics for students"},
        {"name": "Exports", "description": "Asynchronous score report exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Create a user account",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterUserRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Return the authenticated account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams": {
            "get": {
                "tags": ["Exams"],
                "summary": "List exams",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "school", "in": "query", "type": "string"},
                    {"name": "grade", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Exams"],
                "summary": "Create an exam",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExamRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}": {
            "get": {
                "tags": ["Exams"],
                "summary": "Get one exam",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Exams"],
                "summary": "Update exam metadata",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateExamRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/subjects": {
            "get": {
                "tags": ["Exams"],
                "summary": "List an exam's subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Exams"],
                "summary": "Add a subject to an exam",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Subject name already used in exam"}
                }
            }
        },
        "/subjects/{subjectId}/questions": {
            "get": {
                "tags": ["Exams"],
                "summary": "List a subject's questions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Exams"],
                "summary": "Add a question to a subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateQuestionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Question code already used in subject"}
                }
            }
        },
        "/questions/{questionId}/reviewers": {
            "get": {
                "tags": ["Exams"],
                "summary": "List reviewers authorised for a question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "questionId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Exams"],
                "summary": "Authorise a reviewer for a question",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "questionId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignReviewerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Roster"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Roster"],
                "summary": "Register a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Student code already registered"}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Roster"],
                "summary": "Get one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reviewers": {
            "post": {
                "tags": ["Roster"],
                "summary": "Register a reviewer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReviewerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reviewers/{id}": {
            "get": {
                "tags": ["Roster"],
                "summary": "Get one reviewer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sheets": {
            "post": {
                "tags": ["Sheets"],
                "summary": "Ingest a scanned answer sheet",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IngestSheetRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sheets/{id}": {
            "get": {
                "tags": ["Sheets"],
                "summary": "Get one answer sheet",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sheets/{id}/bind": {
            "post": {
                "tags": ["Sheets"],
                "summary": "Bind an unbound sheet to a student by student code",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BindSheetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Sheet already bound"}
                }
            }
        },
        "/sheets/{id}/answers": {
            "post": {
                "tags": ["Sheets"],
                "summary": "Record one segmented answer from a bound sheet",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordAnswerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Sheet not bound to a student"}
                }
            }
        },
        "/exams/{id}/sheets/unbound": {
            "get": {
                "tags": ["Sheets"],
                "summary": "List an exam's sheets awaiting identity resolution",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/answers/{id}/grades": {
            "get": {
                "tags": ["Grading"],
                "summary": "Get an answer's grade records and current resolution",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grading"],
                "summary": "Submit a reviewer's grade for an answer",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Score outside the allowed range"},
                    "403": {"description": "Reviewer not assigned to this question"}
                }
            }
        },
        "/answers/{id}/resolve": {
            "post": {
                "tags": ["Grading"],
                "summary": "Re-derive an answer's final score from its record trail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/arbitration": {
            "get": {
                "tags": ["Grading"],
                "summary": "List an exam's answers awaiting arbitration",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/scores": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Per-subject score card for one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/position": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Cohort position for one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "grouping", "in": "query", "type": "string", "enum": ["class", "grade"]},
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/pk": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Head-to-head percentile view for one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "grouping", "in": "query", "type": "string", "enum": ["class", "grade"]},
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/simulate": {
            "post": {
                "tags": ["Analysis"],
                "summary": "Re-rank one student under hypothetical subject scores",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "grouping", "in": "query", "type": "string", "enum": ["class", "grade"]},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SimulateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Hypothetical score outside the allowed range"}
                }
            }
        },
        "/exams/{id}/students/{studentId}/bias": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Subject strength and weakness radar for one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "grouping", "in": "query", "type": "string", "enum": ["class", "grade"]},
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/subjects/{subjectId}/knowledge": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Knowledge-point mastery for one student and subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"},
                    {"name": "grouping", "in": "query", "type": "string", "enum": ["class", "grade"]},
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/subjects/{subjectId}/questions": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Per-question analysis of one subject for one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"},
                    {"name": "grouping", "in": "query", "type": "string", "enum": ["class", "grade"]},
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/students/{studentId}/loss": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Score-loss analysis for one student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "grouping", "in": "query", "type": "string", "enum": ["class", "grade"]},
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/classes/{classId}/scores": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Ranked score listing for one class",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/analysis/cache": {
            "delete": {
                "tags": ["Analysis"],
                "summary": "Drop every cached analytics payload for an exam",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a score report export",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get one export job",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}/link": {
            "get": {
                "tags": ["Exports"],
                "summary": "Issue a signed download link for a completed job",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Export not completed"}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Stream a rendered report using a signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/exams/{id}/exports": {
            "get": {
                "tags": ["Exports"],
                "summary": "List an exam's export jobs",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "RegisterUserRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["TEACHER", "STUDENT"]},
                "student_id": {"type": "string"},
                "reviewer_id": {"type": "string"}
            },
            "required": ["email", "password", "full_name", "role"]
        },
        "CreateExamRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "intro": {"type": "string"},
                "school_name": {"type": "string"},
                "grade": {"type": "string"},
                "uploader_id": {"type": "string"},
                "chief_teacher_id": {"type": "string"},
                "material_root": {"type": "string"},
                "exam_date": {"type": "string"}
            },
            "required": ["name", "school_name", "grade"]
        },
        "UpdateExamRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "intro": {"type": "string"},
                "chief_teacher_id": {"type": "string"}
            }
        },
        "CreateSubjectRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "question_paper_path": {"type": "string"},
                "ref_answer_path": {"type": "string"},
                "sample_sheet_path": {"type": "string"},
                "sheet_division": {"type": "string"},
                "choice_sheet_locations": {"type": "string"}
            },
            "required": ["name"]
        },
        "CreateQuestionRequest": {
            "type": "object",
            "properties": {
                "question_code": {"type": "integer"},
                "question_text": {"type": "string"},
                "question_path": {"type": "string"},
                "ref_answer_text": {"type": "string"},
                "ref_answer_path": {"type": "string"},
                "template_text": {"type": "string"},
                "template_path": {"type": "string"},
                "strategy": {"type": "string"},
                "full_score": {"type": "number"},
                "question_type": {"type": "string"},
                "division": {"type": "string"},
                "sub_divisions": {"type": "string"},
                "knowledge_points": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["question_code", "full_score", "question_type"]
        },
        "AssignReviewerRequest": {
            "type": "object",
            "properties": {
                "reviewer_id": {"type": "string"}
            },
            "required": ["reviewer_id"]
        },
        "RegisterStudentRequest": {
            "type": "object",
            "properties": {
                "student_code": {"type": "string"},
                "name": {"type": "string"},
                "class_id": {"type": "string"}
            },
            "required": ["student_code", "name", "class_id"]
        },
        "CreateReviewerRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}
            },
            "required": ["name"]
        },
        "IngestSheetRequest": {
            "type": "object",
            "properties": {
                "exam_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "student_code": {"type": "string"},
                "raw_image_path": {"type": "string"}
            },
            "required": ["exam_id", "subject_id", "raw_image_path"]
        },
        "BindSheetRequest": {
            "type": "object",
            "properties": {
                "student_code": {"type": "string"}
            }
        },
        "RecordAnswerRequest": {
            "type": "object",
            "properties": {
                "question_code": {"type": "integer"},
                "answer_text": {"type": "string"},
                "answer_image_path": {"type": "string"}
            },
            "required": ["question_code"]
        },
        "SubmitGradeRequest": {
            "type": "object",
            "properties": {
                "reviewer_id": {"type": "string"},
                "score": {"type": "number"},
                "comment": {"type": "string"}
            },
            "required": ["score"]
        },
        "SimulateRequest": {
            "type": "object",
            "properties": {
                "subject_scores": {
                    "type": "object",
                    "additionalProperties": {"type": "number"}
                }
            },
            "required": ["subject_scores"]
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "exam_id": {"type": "string"},
                "student_id": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["exam_id", "student_id", "format"]
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
