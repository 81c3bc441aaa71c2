package handler

import (
	"net/http"
)

// RegisterRoutes sets up all HTTP routes on the given mux. The collection
// endpoint is only mounted when users is non-nil.
func RegisterRoutes(mux *http.ServeMux, boards *BoardHandler, users *UserHandler) {
	mux.HandleFunc("GET /healthz", HandleHealthz)

	mux.HandleFunc("GET /", boards.HandleHome)
	mux.HandleFunc("POST /board/refresh", boards.HandleRefresh)
	mux.HandleFunc("POST /board/users", boards.HandleSubmit)

	if users != nil {
		mux.HandleFunc("GET /user", users.HandleList)
		mux.HandleFunc("GET /user/{name}", users.HandleGetByName)
		mux.HandleFunc("POST /user", users.HandleCreate)
	}
}
