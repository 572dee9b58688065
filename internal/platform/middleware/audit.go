package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medapp/medapp/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// AuditEntry records one access to clinical data.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	TenantID   string
	Resource   string
	ResourceID string
	PatientID  string
	Action     string // read, search, create, update, delete
	IPAddress  string
	Path       string
	Method     string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit emits a phi_access event for every /api/v1 request after the handler
// ran, and hands the entry to recorder when one is given.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			resource, id := splitResourcePath(req.URL.Path)
			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(req.Context()),
				UserRoles:  auth.RolesFromContext(req.Context()),
				Resource:   resource,
				ResourceID: id,
				PatientID:  patientIDOf(c, resource, id),
				Action:     actionOf(req.Method, id),
				IPAddress:  c.RealIP(),
				Path:       req.URL.Path,
				Method:     req.Method,
				StatusCode: status,
				Timestamp:  time.Now().UTC(),
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			entry.TenantID, _ = c.Get("tenant_id").(string)

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("tenant_id", entry.TenantID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Str("remote_ip", entry.IPAddress).
				Msg("phi_access")

			return err
		}
	}
}

// splitResourcePath turns /api/v1/patients/<id>/... into ("patients", "<id>").
func splitResourcePath(path string) (string, string) {
	segments := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	resource := segments[0]
	if resource == "" {
		resource = "unknown"
	}
	if len(segments) > 1 && isUUID(segments[1]) {
		return resource, segments[1]
	}
	return resource, ""
}

func patientIDOf(c echo.Context, resource, id string) string {
	if resource == "patients" && id != "" {
		return id
	}
	if pid := c.QueryParam("patient_id"); isUUID(pid) {
		return pid
	}
	return ""
}

func actionOf(method, id string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	if id == "" {
		return "search"
	}
	return "read"
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return s != "" && err == nil
}
