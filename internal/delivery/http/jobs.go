package http

import (
	"net/http"
	"strconv"

	"nexatrade/internal/dto"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	v1 := base.Group("/v1/jobs")
	{
		v1.GET("", h.ListJobSchedules)
		v1.POST("/run", h.RunJobs)
		v1.POST("/:id/run", h.RunJob)
	}
}

func (h *HttpAPIHandler) ListJobSchedules(c echo.Context) error {
	param := model.GetJobParam{IsActive: utils.ToPointer(true)}
	if limit, err := strconv.Atoi(c.QueryParam("history_limit")); err == nil && limit > 0 {
		param.WithTaskHistory = &model.GetTaskExecutionHistoryParam{Limit: &limit}
	}
	jobs, err := h.service.SchedulerService.GetJobSchedule(c.Request().Context(), param)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", jobs))
}

// RunJobs kicks one scheduler pass over every due schedule.
func (h *HttpAPIHandler) RunJobs(c echo.Context) error {
	response := dto.NewBaseResponse(http.StatusOK, "Start running jobs", nil)
	if err := h.service.SchedulerService.Execute(c.Request().Context()); err != nil {
		response.Code = http.StatusInternalServerError
		response.Message = err.Error()
	}
	return c.JSON(response.Code, response)
}

// RunJob triggers a single job immediately, ignoring its cron schedule.
func (h *HttpAPIHandler) RunJob(c echo.Context) error {
	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}
	if err := h.service.SchedulerService.RunJobTask(c.Request().Context(), uint(jobID)); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Job started", nil))
}
