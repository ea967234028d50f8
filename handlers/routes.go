package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"trello-project/microservices/tasks-service/middleware"
	"trello-project/microservices/tasks-service/utils"
)

// NewRouter mounts every route behind recover, CORS and token auth.
// /health stays public.
func NewRouter(tasks *TaskHandler, notifications *NotificationHandler, validator middleware.TokenValidator, corsOrigin string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteMessage(w, http.StatusOK, "ok")
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.JWTAuthMiddleware(validator))

	api.HandleFunc("/tasks", tasks.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/project/{projectId}", tasks.GetTasksByProjectID).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskId}", tasks.GetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{taskId}", tasks.UpdateTask).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/tasks/{taskId}", tasks.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{taskId}/subtasks", tasks.CreateSubtask).Methods(http.MethodPost)
	api.HandleFunc("/subtasks/{subtaskId}", tasks.UpdateSubtask).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/subtasks/{subtaskId}", tasks.DeleteSubtask).Methods(http.MethodDelete)

	api.HandleFunc("/notifications", notifications.GetNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", notifications.MarkAsRead).Methods(http.MethodPut, http.MethodPatch)

	return middleware.Recover(middleware.EnableCORS(corsOrigin)(r))
}
