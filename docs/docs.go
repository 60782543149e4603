// Package docs registra la especificación OpenAPI servida en /swagger.
// Se mantiene a mano a partir de las anotaciones de los handlers.
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
        "/events": {
            "get": {"tags": ["events"], "summary": "Listar mis eventos", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "BUSY | SWAPPABLE | SWAPPED", "name": "status", "in": "query"},
                    {"type": "string", "description": "start_time | end_time | created_at | title", "name": "sort", "in": "query"},
                    {"type": "string", "description": "asc | desc", "name": "order", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/events.View"}}}}},
            "post": {"tags": ["events"], "summary": "Crear evento", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/events.View"}},
                    "400": {"description": "validación", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}},
                    "409": {"description": "conflicto de horario", "schema": {"$ref": "#/definitions/httpx.ErrorBody"}}}}
        },
        "/events/export.ics": {
            "get": {"tags": ["events"], "summary": "Exportar mi calendario", "produces": ["text/calendar"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/events/{eventID}": {
            "get": {"tags": ["events"], "summary": "Obtener evento",
                "parameters": [{"type": "string", "name": "eventID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/events.View"}}}},
            "patch": {"tags": ["events"], "summary": "Editar evento",
                "parameters": [{"type": "string", "name": "eventID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/events.View"}}}},
            "delete": {"tags": ["events"], "summary": "Borrar evento",
                "parameters": [{"type": "string", "name": "eventID", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}}
        },
        "/events/{eventID}/swappable": {
            "post": {"tags": ["events"], "summary": "Marcar como swappable",
                "parameters": [{"type": "string", "name": "eventID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/events.View"}}}}
        },
        "/marketplace": {
            "get": {"tags": ["marketplace"], "summary": "Slots swappables de otros usuarios",
                "responses": {"200": {"description": "OK"}}}
        },
        "/marketplace/{eventID}": {
            "get": {"tags": ["marketplace"], "summary": "Detalle de un slot",
                "parameters": [{"type": "string", "name": "eventID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/swap-requests": {
            "post": {"tags": ["swap-requests"], "summary": "Proponer un swap",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/swaps.Detail"}}}}
        },
        "/swap-requests/incoming": {
            "get": {"tags": ["swap-requests"], "summary": "Swap requests recibidos",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/swaps.Detail"}}}}}
        },
        "/swap-requests/outgoing": {
            "get": {"tags": ["swap-requests"], "summary": "Swap requests enviados",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/swaps.Detail"}}}}}
        },
        "/swap-requests/{requestID}": {
            "get": {"tags": ["swap-requests"], "summary": "Obtener swap request",
                "parameters": [{"type": "string", "name": "requestID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/swaps.Detail"}}}},
            "delete": {"tags": ["swap-requests"], "summary": "Cancelar swap request",
                "parameters": [{"type": "string", "name": "requestID", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}}}
        },
        "/swap-requests/{requestID}/accept": {
            "post": {"tags": ["swap-requests"], "summary": "Aceptar swap request",
                "parameters": [{"type": "string", "name": "requestID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/swaps.Detail"}}}}
        },
        "/swap-requests/{requestID}/reject": {
            "post": {"tags": ["swap-requests"], "summary": "Rechazar swap request",
                "parameters": [{"type": "string", "name": "requestID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/swaps.Detail"}}}}
        },
        "/history": {
            "get": {"tags": ["history"], "summary": "Mis swaps completados",
                "responses": {"200": {"description": "OK"}}}
        },
        "/history/{swapRequestID}": {
            "get": {"tags": ["history"], "summary": "Entrada de historial de un swap",
                "parameters": [{"type": "string", "name": "swapRequestID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/users/stats": {
            "get": {"tags": ["users"], "summary": "Resumen del usuario",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/account.Stats"}}}}
        },
        "/users/export": {
            "get": {"tags": ["users"], "summary": "Exportar mis datos",
                "responses": {"200": {"description": "OK"}}}
        },
        "/ws": {
            "get": {"tags": ["realtime"], "summary": "Canal de notificaciones en tiempo real",
                "responses": {"101": {"description": "Switching Protocols"}}}
        }
    },
    "definitions": {
        "account.Stats": {
            "type": "object",
            "properties": {
                "total_events": {"type": "integer"},
                "total_swaps": {"type": "integer"},
                "pending_requests": {"type": "integer"},
                "swappable_events": {"type": "integer"}
            }
        },
        "events.View": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "owner_user_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "status": {"type": "string"},
                "original_event_id": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "swaps.Detail": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string"},
                "requester_event": {"$ref": "#/definitions/events.View"},
                "target_event": {"$ref": "#/definitions/events.View"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "httpx.ErrorBody": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "kind": {"type": "string"},
                        "message": {"type": "string"},
                        "details": {"type": "array", "items": {"type": "string"}}
                    }
                }
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
	Title:            "SlotSwapper API",
	Description:      "Intercambio de slots de calendario entre usuarios.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
