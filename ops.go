// FILE: ops.go
// Package main – Ops HTTP surface.
//
//   GET /healthz         liveness
//   GET /metrics         Prometheus exposition
//   GET /orders          ledger snapshot (optional ?status=)
//   GET /orders/{id}     one order
//   GET /inventory       position, thresholds, pending take-profit
//   GET /history         candle history size and latest close
package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type opsServer struct {
	orders  *OrderManager
	history *PriceHistory
	router  *mux.Router
}

type InventoryView struct {
	Position          float64 `json:"position"`
	MaxThreshold      float64 `json:"max_threshold"`
	MinThreshold      float64 `json:"min_threshold"`
	PendingTakeProfit OrderID `json:"pending_take_profit,omitempty"`
}

type HistoryView struct {
	Candles   int     `json:"candles"`
	LastClose float64 `json:"last_close,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func newOpsRouter(orders *OrderManager, history *PriceHistory) *mux.Router {
	s := &opsServer{orders: orders, history: history, router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/orders", s.handleOrders).Methods("GET")
	s.router.HandleFunc("/orders/{id:[0-9]+}", s.handleOrder).Methods("GET")
	s.router.HandleFunc("/inventory", s.handleInventory).Methods("GET")
	s.router.HandleFunc("/history", s.handleHistory).Methods("GET")
	return s.router
}

func (s *opsServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok\n"))
}

func (s *opsServer) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.orders.Orders()
	if want := r.URL.Query().Get("status"); want != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status.String() == want {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	respondJSON(w, orders)
}

func (s *opsServer) handleOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	o, ok := s.orders.Order(OrderID(id))
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, o)
}

func (s *opsServer) handleInventory(w http.ResponseWriter, _ *http.Request) {
	pos, maxT, minT, tp := s.orders.InventoryState()
	respondJSON(w, InventoryView{Position: pos, MaxThreshold: maxT, MinThreshold: minT, PendingTakeProfit: tp})
}

func (s *opsServer) handleHistory(w http.ResponseWriter, _ *http.Request) {
	closes := s.history.Closes()
	v := HistoryView{Candles: len(closes)}
	if len(closes) > 0 {
		v.LastClose = closes[len(closes)-1]
	}
	respondJSON(w, v)
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errText, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: errText, Message: message})
}
