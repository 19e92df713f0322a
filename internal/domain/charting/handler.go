package charting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentchart/dentchart/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.PUT("/patients/:id/chart/:domain/draft", h.SaveDraft)
	api.PATCH("/patients/:id/chart/:domain/draft", h.AutoSaveDraft)
	api.GET("/patients/:id/chart/:domain/draft", h.GetDraft)
	api.DELETE("/patients/:id/chart/:domain/draft", h.ClearDraft)

	api.POST("/patients/:id/chart/:domain/assessments", h.SaveAssessment)
	api.GET("/patients/:id/chart/:domain/assessments", h.History)
	api.GET("/patients/:id/chart/:domain/assessments/latest", h.Latest)

	api.GET("/patients/:id/chart/:domain/report", h.LatestReport)
	api.GET("/patients/:id/chart/:domain/reports", h.HistoryReports)
	api.GET("/patients/:id/chart/:domain/export.csv", h.ExportCSV)
}

// chartKey parses the patient id and assessment domain path parameters.
func chartKey(c echo.Context) (uuid.UUID, Domain, error) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, "", echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	domain, err := ParseDomain(c.Param("domain"))
	if err != nil {
		return uuid.Nil, "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return patientID, domain, nil
}

// bindState decodes the request body into the domain's state type.
func bindState(c echo.Context, domain Domain) (ChartState, error) {
	state := NewState(domain)
	if err := c.Bind(state); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return state, nil
}

type draftResponse struct {
	Domain  Domain     `json:"domain"`
	State   ChartState `json:"state"`
	SavedAt time.Time  `json:"saved_at"`
}

func (h *Handler) SaveDraft(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	state, err := bindState(c, domain)
	if err != nil {
		return err
	}
	h.svc.SaveDraft(patientID, state)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AutoSaveDraft(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	state, err := bindState(c, domain)
	if err != nil {
		return err
	}
	h.svc.AutoSaveDraft(patientID, state)
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) GetDraft(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	draft := h.svc.LoadDraft(patientID, domain)
	if draft == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no draft")
	}
	return c.JSON(http.StatusOK, draftResponse{Domain: domain, State: draft.State, SavedAt: draft.SavedAt})
}

func (h *Handler) ClearDraft(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	h.svc.ClearDraft(patientID, domain)
	return c.NoContent(http.StatusNoContent)
}

// SaveAssessment persists a new immutable snapshot. The state comes from
// the request body when one is sent, otherwise from the held draft (the
// usual "Save Assessment" action after continuous auto-saves).
func (h *Handler) SaveAssessment(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}

	// ContentLength is unreliable for chunked requests, so decide on the
	// body bytes themselves.
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var state ChartState
	if len(bytes.TrimSpace(body)) > 0 {
		state = NewState(domain)
		if err := json.Unmarshal(body, state); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	} else {
		draft := h.svc.LoadDraft(patientID, domain)
		if draft == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no draft to save")
		}
		state = draft.State
	}

	snap, err := h.svc.SaveAssessment(c.Request().Context(), patientID, state)
	if err != nil {
		if IsStorageError(err) {
			// The draft is still held; the client can retry the save.
			return echo.NewHTTPError(http.StatusBadGateway, "assessment could not be saved; draft preserved")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *Handler) Latest(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	snap, err := h.svc.Latest(c.Request().Context(), patientID, domain)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if snap == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no assessment")
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) History(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	snaps, total, err := h.svc.History(c.Request().Context(), patientID, domain, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(snaps, total, p.Limit, p.Offset))
}

func (h *Handler) LatestReport(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	report, err := h.svc.LatestReport(c.Request().Context(), patientID, domain)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if report == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no assessment")
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) HistoryReports(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	p := pagination.FromContext(c)
	reports, total, err := h.svc.HistoryReports(c.Request().Context(), patientID, domain, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reports, total, p.Limit, p.Offset))
}

func (h *Handler) ExportCSV(c echo.Context) error {
	patientID, domain, err := chartKey(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-%s-history.csv"`, patientID, domain))
	c.Response().WriteHeader(http.StatusOK)
	return h.svc.ExportCSV(c.Request().Context(), c.Response(), patientID, domain)
}
