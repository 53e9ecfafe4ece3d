package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"food-whatsapp/db"
	"food-whatsapp/models"
	"food-whatsapp/services"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// fail maps service errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, db.ErrDuplicateName):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrBadTransition),
		errors.Is(err, services.ErrInvalidMenuItem),
		errors.Is(err, services.ErrInvalidRate),
		errors.Is(err, services.ErrNoItems),
		errors.Is(err, services.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("admin request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	f := models.OrderFilter{
		Status:        r.URL.Query().Get("status"),
		CustomerPhone: r.URL.Query().Get("phone"),
		Limit:         queryLimit(r, 100),
	}
	if f.Status != "" && !services.KnownStatus(f.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	orders, err := s.deps.Orders.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.deps.Orders.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusRequest struct {
	Status        string  `json:"status"`
	PaymentStatus *string `json:"paymentStatus,omitempty"`
}

func validPaymentStatus(s string) bool {
	switch s {
	case models.PaymentStatusUnpaid, models.PaymentStatusVerificationPending,
		models.PaymentStatusVerified, models.PaymentStatusRejected:
		return true
	}
	return false
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if req.PaymentStatus != nil && !validPaymentStatus(*req.PaymentStatus) {
		writeError(w, http.StatusBadRequest, "unknown paymentStatus")
		return
	}
	o, err := s.deps.Orders.SetStatus(r.Context(), ps.ByName("id"), req.Status, req.PaymentStatus)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type manualLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type manualOrderRequest struct {
	Phone         string           `json:"phone"`
	Name          string           `json:"name"`
	Address       string           `json:"address"`
	Location      *models.GeoPoint `json:"location,omitempty"`
	Items         []manualLine     `json:"items"`
	PaymentMethod string           `json:"paymentMethod"`
}

// createOrder records an order taken over the phone or at the counter. It goes through the
// same pending_confirmation step as chat orders and is confirmed immediately.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req manualOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	switch req.PaymentMethod {
	case "":
		req.PaymentMethod = models.PaymentCOD
	case models.PaymentCOD, models.PaymentUPI:
	default:
		writeError(w, http.StatusBadRequest, "unknown paymentMethod")
		return
	}

	var candidates []services.Candidate
	for _, l := range req.Items {
		if strings.TrimSpace(l.Name) == "" || l.Quantity < 1 || l.Quantity > services.MaxLineQuantity {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("every item needs a name and a quantity of 1 to %d", services.MaxLineQuantity))
			return
		}
		candidates = append(candidates, services.Candidate{RawName: strings.TrimSpace(l.Name), Quantity: l.Quantity})
	}
	if len(candidates) == 0 {
		writeError(w, http.StatusBadRequest, services.ErrNoItems.Error())
		return
	}

	ctx := r.Context()
	res, err := services.ResolveCandidates(ctx, s.deps.Catalog, candidates)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(res.Unresolved) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "unknown menu items",
			"unresolved": res.Unresolved,
		})
		return
	}

	customer, err := s.deps.Customers.FindOrCreate(ctx, req.Phone)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var upd models.ProfileUpdate
	if n := strings.TrimSpace(req.Name); n != "" {
		upd.Name = &n
	}
	if a := strings.TrimSpace(req.Address); a != "" {
		upd.Address = &a
	}
	if req.Location != nil {
		upd.Location = req.Location
	}
	if upd.Name != nil || upd.Address != nil || upd.Location != nil {
		if customer, err = s.deps.Customers.UpdateProfile(ctx, req.Phone, upd); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	loc := customer.Location
	quote, err := s.deps.Pricing.Quote(ctx, loc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pending, err := s.deps.Orders.CreatePending(ctx, services.PendingInput{
		Customer: customer,
		Items:    res.Lines,
		Quote:    quote,
		Address:  customer.Address,
		Location: loc,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.deps.Orders.Confirm(ctx, pending.ID, services.ConfirmInput{
		PaymentMethod: req.PaymentMethod,
		Target:        models.OrderStatusConfirmed,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) orderReceipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := s.deps.Orders.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pdf, err := renderReceipt(o, s.opts.ShopName, s.opts.Currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=receipt-"+o.ShortID()+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (s *Server) listMenu(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	items, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) addMenuItem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var item models.MenuItem
	if !decodeJSON(w, r, &item) {
		return
	}
	item.ID = ""
	if err := s.deps.Catalog.Add(r.Context(), &item); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) updateMenuItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var item models.MenuItem
	if !decodeJSON(w, r, &item) {
		return
	}
	item.ID = ps.ByName("id")
	if err := s.deps.Catalog.Update(r.Context(), &item); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteMenuItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.deps.Catalog.Delete(r.Context(), ps.ByName("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRates(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rates, err := s.deps.Pricing.Rates(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rates == nil {
		rates = []models.DeliveryRate{}
	}
	writeJSON(w, http.StatusOK, rates)
}

func (s *Server) replaceRates(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var rates []models.DeliveryRate
	if !decodeJSON(w, r, &rates) {
		return
	}
	if err := s.deps.Pricing.ReplaceRates(r.Context(), rates); err != nil {
		s.fail(w, r, err)
		return
	}
	s.listRates(w, r, nil)
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	customers, err := s.deps.Customers.Recent(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if customers == nil {
		customers = []models.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

type botStatusResponse struct {
	Transport  string `json:"transport"`
	Ready      bool   `json:"ready"`
	Account    string `json:"account,omitempty"`
	Dashboards int    `json:"dashboards"`
}

func (s *Server) currentStatus() botStatusResponse {
	var resp botStatusResponse
	if s.deps.Bot != nil {
		st := s.deps.Bot.Status()
		resp.Transport, resp.Ready, resp.Account = st.Transport, st.Ready, st.Account
	}
	if s.deps.Hub != nil {
		resp.Dashboards = s.deps.Hub.Clients()
	}
	return resp
}

func (s *Server) botStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.currentStatus())
}

func (s *Server) botQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if strings.TrimSpace(s.opts.ShopPhone) == "" {
		writeError(w, http.StatusNotFound, "shop phone not configured")
		return
	}
	png, err := chatQR(s.opts.ShopPhone)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.deps.Hub == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	first, err := encodeEvent(services.EventBotStatus, s.currentStatus())
	if err != nil {
		first = nil
	}
	s.deps.Hub.serve(conn, first)
}
