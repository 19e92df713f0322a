package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ClinicianIDHeader carries the identifier of the clinician making the
// request. Authentication happens upstream (gateway or practice management
// system); this service records the identity it is handed.
const ClinicianIDHeader = "X-Clinician-ID"

// AuditEntry represents an audit log entry produced by the middleware.
// It captures who accessed which patient's chart, when, and from where.
type AuditEntry struct {
	ClinicianID string
	Resource    string
	PatientID   string
	Domain      string
	Action      string // read, create, update, delete
	IPAddress   string
	UserAgent   string
	Path        string
	Method      string
	Timestamp   time.Time
	RequestID   string
	StatusCode  int
}

// AuditRecorder is the interface that the audit middleware uses to persist
// audit entries. This decouples the middleware from any concrete sink so
// that tests can provide a mock implementation.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns Echo middleware that intercepts requests to /api/v1/*,
// extracts the clinician identity from the X-Clinician-ID header, and logs
// chart access for the compliance trail.
//
// If no AuditRecorder is provided, it falls back to structured zerolog
// logging only.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			// Execute the handler first so we capture the response status
			err := next(c)

			entry := AuditEntry{
				Timestamp:   time.Now().UTC(),
				Path:        path,
				Method:      req.Method,
				IPAddress:   c.RealIP(),
				UserAgent:   req.UserAgent(),
				StatusCode:  c.Response().Status,
				ClinicianID: req.Header.Get(ClinicianIDHeader),
			}

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.Action = httpMethodToAction(req.Method)
			entry.Resource = extractResource(path)
			entry.PatientID = extractPatientID(c)
			entry.Domain = extractChartDomain(path)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "chart_audit").
				Str("request_id", entry.RequestID).
				Str("clinician_id", entry.ClinicianID).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("domain", entry.Domain).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("chart_access")

			return err
		}
	}
}

// isAuditablePath returns true if the path is under /api/v1/.
func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

// httpMethodToAction maps HTTP methods to audit action codes.
func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource parses the top-level resource name from a URL path.
//
// Supported patterns:
//   - /api/v1/patients           -> patients
//   - /api/v1/patients/123/...   -> patients
func extractResource(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

// extractPatientID finds the patient identifier in the request. It checks the
// URL path for /patients/<uuid> and falls back to the patient query param.
func extractPatientID(c echo.Context) string {
	path := c.Request().URL.Path

	if strings.HasPrefix(path, "/api/v1/patients/") {
		segments := strings.Split(strings.TrimPrefix(path, "/api/v1/patients/"), "/")
		if len(segments) > 0 && isUUIDLike(segments[0]) {
			return segments[0]
		}
	}

	if patient := c.QueryParam("patient"); patient != "" {
		return patient
	}

	return ""
}

// extractChartDomain parses the charting domain from chart routes:
// /api/v1/patients/<uuid>/chart/<domain>/...
func extractChartDomain(path string) string {
	idx := strings.Index(path, "/chart/")
	if idx < 0 {
		return ""
	}
	rest := path[idx+len("/chart/"):]
	segments := strings.Split(rest, "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return ""
}

// isUUIDLike checks if a string parses as a UUID.
func isUUIDLike(s string) bool {
	if len(s) < 1 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
