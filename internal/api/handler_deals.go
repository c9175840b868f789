package api

import (
	"net/http"

	"github.com/steampulse/steampulse/internal/model"
)

// requireDeals answers 503 when deals credentials are not configured.
func requireDeals(w http.ResponseWriter, deals Deals) bool {
	if deals == nil {
		WriteError(w, http.StatusServiceUnavailable, "deals API not configured")
		return false
	}
	return true
}

type bestDealsResponse struct {
	Deals []model.DealInfo `json:"deals"`
}

// HandleBestDeals returns a handler for
// GET /api/deals/best?limit={1..50}&min_discount={0..100}.
func HandleBestDeals(deals Deals) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDeals(w, deals) {
			return
		}
		limit, err := intQueryInRange(r, "limit", 20, 1, 50)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		minDiscount, err := intQueryInRange(r, "min_discount", 0, 0, 100)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		rows, err := deals.BestDeals(r.Context(), limit, minDiscount)
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		if rows == nil {
			rows = []model.DealInfo{}
		}
		WriteJSON(w, http.StatusOK, bestDealsResponse{Deals: rows})
	}
}

type gameDealsResponse struct {
	AppID int64            `json:"appid"`
	Deals []model.DealInfo `json:"deals"`
}

// HandleGameDeals returns a handler for GET /api/deals/game/{appid}.
func HandleGameDeals(deals Deals) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDeals(w, deals) {
			return
		}
		appid, err := appIDPathValue(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		rows, err := deals.GamePrices(r.Context(), appid)
		if err != nil {
			writeUpstreamUnavailable(w, r, err)
			return
		}
		if rows == nil {
			rows = []model.DealInfo{}
		}
		WriteJSON(w, http.StatusOK, gameDealsResponse{AppID: appid, Deals: rows})
	}
}
