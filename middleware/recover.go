package middleware

import (
	"net/http"
	"runtime/debug"

	"trello-project/microservices/tasks-service/logging"
	"trello-project/microservices/tasks-service/utils"
)

// Recover turns a handler panic into a 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Logger.Errorf("Event ID: HANDLER_PANIC, Description: Panic while serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
