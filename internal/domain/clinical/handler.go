package clinical

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/matt-standley/openmrs-core/pkg/pagination"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/obs/:id", h.GetObs)
	api.GET("/encounters/:id/obs", h.ListByEncounter)
	api.GET("/patients/:id/obs", h.ListByPatient)
	api.GET("/concepts/:id/obs", h.ListByConcept)
	api.GET("/concept-proposals", h.ListProposals)
}

func (h *Handler) GetObs(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	obs, err := h.svc.GetObs(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if obs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "obs not found")
	}
	return c.JSON(http.StatusOK, obsView(obs))
}

func (h *Handler) ListByEncounter(c echo.Context) error {
	encounterID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid encounter id")
	}
	obs, err := h.svc.ListObsByEncounter(c.Request().Context(), encounterID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, obsViews(obs))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pg := pagination.FromContext(c)
	obs, total, err := h.svc.ListObsByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(obsViews(obs), total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByConcept(c echo.Context) error {
	conceptID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid concept id")
	}
	pg := pagination.FromContext(c)
	obs, total, err := h.svc.ListObsByConcept(c.Request().Context(), conceptID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(obsViews(obs), total, pg.Limit, pg.Offset))
}

func (h *Handler) ListProposals(c echo.Context) error {
	props, err := h.svc.ListProposals(c.Request().Context(), c.QueryParam("state"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, props)
}

// ObsView is the JSON shape of an observation; the typed value is flattened
// into a kind discriminator plus the matching payload field.
type ObsView struct {
	*Obs
	ValueKind     string   `json:"value_kind"`
	ValueNumeric  *float64 `json:"value_numeric,omitempty"`
	ValueCoded    *int     `json:"value_coded,omitempty"`
	ValueDatetime *string  `json:"value_datetime,omitempty"`
	ValueText     *string  `json:"value_text,omitempty"`
}

func obsView(o *Obs) *ObsView {
	v := &ObsView{Obs: o, ValueKind: o.Value.Kind().String()}
	switch o.Value.Kind() {
	case ValueNumeric:
		n, _ := o.Value.Numeric()
		v.ValueNumeric = &n
	case ValueCoded:
		c, _ := o.Value.Coded()
		v.ValueCoded = &c
	case ValueDatetime:
		d, _ := o.Value.Datetime()
		s := d.Format("2006-01-02T15:04:05Z07:00")
		v.ValueDatetime = &s
	case ValueText:
		t, _ := o.Value.Text()
		v.ValueText = &t
	}
	return v
}

func obsViews(obs []*Obs) []*ObsView {
	out := make([]*ObsView, len(obs))
	for i, o := range obs {
		out[i] = obsView(o)
	}
	return out
}
