package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopd/go-shop-orders/internal/cart"
	"github.com/shopd/go-shop-orders/internal/redisx"
)

type CartHandler struct {
	Cart  *cart.Store
	Redis *redis.Client
	Log   *zap.Logger
}

type cartItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.list)
	r.Get("/cart/count", h.count)
	r.Get("/cart/in-stock", h.inStock)
	r.Post("/cart/items", h.add)
	r.Put("/cart/items/{productID}", h.update)
	r.Delete("/cart/items/{productID}", h.remove)
	r.Delete("/cart", h.clear)
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.Cart.List(ctx, uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	var total int64
	for _, l := range lines {
		total += l.SubtotalCents
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lines, "total_cents": total})
}

func (h *CartHandler) count(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyCartCount, uid)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			writeJSON(w, http.StatusOK, map[string]int{"count": n})
			return
		}
	}

	n, err := h.Cart.Count(ctx, uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = h.Redis.Set(ctx, key, strconv.Itoa(n), redisx.TTLCartCount).Err()
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *CartHandler) inStock(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	okStock, err := h.Cart.CheckAllInStock(ctx, uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"in_stock": okStock})
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID <= 0 || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id and positive quantity required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.Add(ctx, uid, req.ProductID, req.Quantity); err != nil {
		writeErr(w, err)
		return
	}
	h.dropCountCache(ctx, uid)
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.UpdateQuantity(ctx, uid, productID, req.Quantity); err != nil {
		writeErr(w, err)
		return
	}
	h.dropCountCache(ctx, uid)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.Remove(ctx, uid, productID); err != nil {
		writeErr(w, err)
		return
	}
	h.dropCountCache(ctx, uid)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.Clear(ctx, uid); err != nil {
		writeErr(w, err)
		return
	}
	h.dropCountCache(ctx, uid)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *CartHandler) dropCountCache(ctx context.Context, uid int64) {
	if err := h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCartCount, uid)).Err(); err != nil {
		h.Log.Warn("cart count cache invalidation failed", zap.Int64("user_id", uid), zap.Error(err))
	}
}
