package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"trello-project/microservices/tasks-service/services"
	"trello-project/microservices/tasks-service/utils"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	notifications, err := h.service.ListNotifications(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteData(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkRead(r.Context(), p, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Notification marked as read")
}
