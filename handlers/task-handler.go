package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"trello-project/microservices/tasks-service/logging"
	"trello-project/microservices/tasks-service/middleware"
	"trello-project/microservices/tasks-service/models"
	"trello-project/microservices/tasks-service/services"
	"trello-project/microservices/tasks-service/utils"
)

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Logger.Errorf("Event ID: REQUEST_FAILED, Description: %s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Logger.Infof("Event ID: REQUEST_REJECTED, Description: %s %s answered %d: %v", r.Method, r.URL.Path, status, err)
	}
	utils.WriteError(w, status, services.PublicMessage(err))
}

// principal fetches the caller placed on the context by the auth middleware.
func principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Authentication required")
	}
	return p, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	logging.Logger.Warnf("Event ID: INVALID_REQUEST_BODY, Description: Invalid body for %s %s: %v", r.Method, r.URL.Path, err)
	utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetTask(r.Context(), mux.Vars(r)["taskId"], p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, view)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var patch models.TaskPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	view, err := h.service.UpdateTask(r.Context(), mux.Vars(r)["taskId"], p, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, view)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	result, err := h.service.DeleteTask(r.Context(), mux.Vars(r)["taskId"], p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, result.Message)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var input services.CreateTaskInput
	if !decodeBody(w, r, &input) {
		return
	}
	view, err := h.service.CreateTask(r.Context(), p, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusCreated, view)
}

func (h *TaskHandler) GetTasksByProjectID(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	views, err := h.service.ListProjectTasks(r.Context(), p, mux.Vars(r)["projectId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, views)
}

func (h *TaskHandler) CreateSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var input services.CreateSubtaskInput
	if !decodeBody(w, r, &input) {
		return
	}
	view, err := h.service.CreateSubtask(r.Context(), p, mux.Vars(r)["taskId"], input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusCreated, view)
}

func (h *TaskHandler) UpdateSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var patch models.SubtaskPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	view, err := h.service.UpdateSubtask(r.Context(), p, mux.Vars(r)["subtaskId"], patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, view)
}

func (h *TaskHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	view, err := h.service.DeleteSubtask(r.Context(), p, mux.Vars(r)["subtaskId"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, view)
}
