package workinghours

import (
	"net/http"

	"go-timetrack/internal/shared/apperror"
	"go-timetrack/internal/shared/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

// queryFromRequest maps the shared query params. A caller without an
// explicit user_id scopes the query to itself unless it asks org-wide.
func queryFromRequest(c *gin.Context) Query {
	q := Query{
		UserID:              c.Query("user_id"),
		OrgID:               c.Query("org_id"),
		StartDate:           c.Query("start_date"),
		EndDate:             c.Query("end_date"),
		SortDatesAscending:  c.Query("order_dates") == "asc",
		SortShiftsAscending: c.Query("order_shifts") == "asc",
	}
	if q.UserID == "" && q.OrgID == "" {
		q.UserID = c.GetString("user_id")
	}
	return q
}

func (h *Handler) QueryShifts(c *gin.Context) {
	resp, err := h.service.QueryShifts(c.Request.Context(), queryFromRequest(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) ExportView(c *gin.Context) {
	resp, err := h.service.ExportView(c.Request.Context(), queryFromRequest(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp, nil)
}
