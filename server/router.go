package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// TrendRoutes are the handlers served by the router.
type TrendRoutes interface {
	GetPredictions(w http.ResponseWriter, r *http.Request)
	GetForecastChart(w http.ResponseWriter, r *http.Request)
	PostDetection(w http.ResponseWriter, r *http.Request)
	Ping(w http.ResponseWriter, r *http.Request)
}

type Router struct {
	trendHandler TrendRoutes
	router       *mux.Router
	middleware   []mux.MiddlewareFunc
}

// NewRouter creates a router with the app’s routes.
func NewRouter(
	trendHandler TrendRoutes,
	router *mux.Router,
	middleware ...mux.MiddlewareFunc) *Router {
	return &Router{
		trendHandler: trendHandler,
		router:       router,
		middleware:   middleware,
	}
}

func (r *Router) RegisterRoutes() {
	r.router.Use(r.middleware...)

	// expects ?lookback={days(int)}&locale={en|ne}&as_of={RFC3339}, all optional
	r.router.HandleFunc("/v1/trends/predictions", r.trendHandler.GetPredictions).Methods("GET")
	r.router.HandleFunc("/v1/trends/forecast/chart", r.trendHandler.GetForecastChart).Methods("GET")

	r.router.HandleFunc("/v1/detections", r.trendHandler.PostDetection).Methods("POST")

	r.router.HandleFunc("/ping", r.trendHandler.Ping).Methods("GET")
}
