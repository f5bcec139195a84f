package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/analytics"
)

type statisticalRequest struct {
	MarketData   []analytics.Row `json:"market_data"`
	AnalysisType string          `json:"analysis_type" validate:"omitempty,oneof=comprehensive correlation descriptive market"`
}

type predictiveRequest struct {
	MarketData []analytics.Row `json:"market_data"`
	Periods    int             `json:"periods" validate:"omitempty,min=1,max=30"`
}

type algorithmsRequest struct {
	MarketData []analytics.Row `json:"market_data"`
	Algorithms []string        `json:"algorithms" validate:"dive,required"`
}

func (h *Handler) handleListAlgorithms(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"algorithms": h.opts.Algorithms.List(),
	})
}

func (h *Handler) handleStatistical(w http.ResponseWriter, r *http.Request) {
	var req statisticalRequest
	if !h.decode(w, r, &req) {
		return
	}
	kind := orDefault(req.AnalysisType, "comprehensive")
	want := func(k string) bool { return kind == "comprehensive" || kind == k }

	results := analytics.Result{}
	if len(req.MarketData) > 0 {
		if want("correlation") && len(req.MarketData) > 1 {
			results["correlation_analysis"] = analytics.Correlations(req.MarketData, analytics.MarketColumns)
		}
		if want("descriptive") {
			results["descriptive_statistics"] = analytics.DescriptiveStatistics(req.MarketData, analytics.MarketColumns)
		}
		if want("market") {
			results["market_analysis"] = analytics.MarketAnalysis(req.MarketData)
		}
		results["insights"] = analytics.StatisticalInsights(results)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "success", "results": results})
}

func (h *Handler) handlePredictive(w http.ResponseWriter, r *http.Request) {
	var req predictiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	periods := req.Periods
	if periods == 0 {
		periods = 3
	}

	results := analytics.Result{}
	if len(req.MarketData) > 0 {
		forecast := analytics.MarketForecast(req.MarketData, periods)
		results["market_forecast"] = forecast
		results["insights"] = analytics.ForecastInsights(forecast)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "success", "results": results})
}

func (h *Handler) handleCustomAlgorithms(w http.ResponseWriter, r *http.Request) {
	var req algorithmsRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": h.opts.Algorithms.RunAlgorithms(req.MarketData, req.Algorithms),
	})
}

// decode reads and validates a JSON body, replying with the error itself
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.sendError(w, validationMessage(err), http.StatusUnprocessableEntity)
		return false
	}
	return true
}
