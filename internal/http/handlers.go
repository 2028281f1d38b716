package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hisob/internal/aggregate"
	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/log"
	"hisob/internal/period"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks storage and reports cache and rate state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	storageCheck := map[string]any{"status": "ok"}
	if s.deps.Ready != nil {
		if err := s.deps.Ready(ctx); err != nil {
			status, code = "not_ready", http.StatusServiceUnavailable
			storageCheck = map[string]any{"status": "error", "error": err.Error()}
			s.logger.WarnContext(ctx, "Readiness check failed",
				log.FieldError, err,
				"error_type", log.ErrorTypeDatabase)
		}
	}
	checks["storage"] = storageCheck

	checks["cache"] = map[string]any{"summary_entries": s.summaries.Size(), "status": "ok"}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients(), "status": "ok"}
	if s.deps.Converter != nil {
		checks["rates"] = s.deps.Converter.Stats()
	}

	WriteJSON(w, r, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()
	secMetrics := s.detector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("hisob_http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("hisob_http_average_response_microseconds", "gauge", "Mean request duration", traceMetrics.AverageResponseTime)
	metric("hisob_transactions_recorded_total", "counter", "Transactions recorded through the API", s.metrics.recorded.Load())
	metric("hisob_summary_cache_hits_total", "counter", "Dashboard summary cache hits", s.metrics.summaryHits.Load())
	metric("hisob_summary_cache_misses_total", "counter", "Dashboard summary cache misses", s.metrics.summaryMisses.Load())
	metric("hisob_summary_cache_entries", "gauge", "Cached dashboard summaries", s.summaries.Size())
	metric("hisob_rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", limitMetrics.TotalHits)
	metric("hisob_rate_limit_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	metric("hisob_suspicious_requests_total", "counter", "Requests matching probe patterns", secMetrics.SuspiciousRequests)
	if s.deps.Converter != nil {
		st := s.deps.Converter.Stats()
		metric("hisob_rates_api_calls_total", "counter", "Exchange rate provider calls", st.APICalls)
		metric("hisob_rates_cache_hits_total", "counter", "Exchange rate cache hits", st.CacheHits)
		metric("hisob_rates_fallbacks_total", "counter", "Lookups served from fallback rates", st.Fallbacks)
		metric("hisob_conversions_total", "counter", "Currency conversions performed", st.Conversions)
	}
	metric("hisob_uptime_seconds", "gauge", "Process uptime", fmt.Sprintf("%.0f", time.Since(s.metrics.started).Seconds()))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	target, err := ParseCurrency(r.URL.Query(), "currency", s.deps.Base)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	sum, err := s.getSummary(ctx, userID, target, s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, sum)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	q := r.URL.Query()
	target, err := ParseCurrency(q, "currency", s.deps.Base)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	days := 30
	if v := strings.TrimSpace(q.Get("days")); v != "" {
		if days, err = strconv.Atoi(v); err != nil || days < 1 {
			WriteError(w, r, badRequest("days", errInvalidNumber))
			return
		}
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	chart, err := s.deps.Dashboard.Chart(ctx, userID, days, target, s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, chart)
}

// reportInput is the common query of the reporting endpoints.
type reportInput struct {
	userID int64
	filter aggregate.FilterSpec
	token  string
	target core.Currency
}

func (s *Server) parseReport(r *http.Request) (reportInput, error) {
	userID, err := ParseUserID(r)
	if err != nil {
		return reportInput{}, err
	}
	q := r.URL.Query()
	filter, token, warn, err := ParseFilter(q, s.now())
	if err != nil {
		return reportInput{}, err
	}
	if warn != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Unknown period token, using this_month",
			log.FieldPeriod, q.Get("period"),
			log.FieldError, warn)
	}
	target, err := ParseCurrency(q, "currency", s.deps.Base)
	if err != nil {
		return reportInput{}, err
	}
	return reportInput{userID: userID, filter: filter, token: token, target: target}, nil
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseReport(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	by, err := aggregate.ParseGroupBy(r.URL.Query().Get("group_by"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	res, err := s.deps.Reports.Aggregate(ctx, in.userID, in.filter, by, in.target)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, AggregateResponse{
		Result:      res,
		Period:      in.token,
		PeriodStart: in.filter.Range.Start.Format(time.DateOnly),
		PeriodEnd:   in.filter.Range.End.Format(time.DateOnly),
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseReport(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	g, err := aggregate.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	points, err := s.deps.Reports.Trend(ctx, in.userID, in.filter, g, in.target)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, TrendResponse{
		Currency:    in.target,
		Granularity: string(g),
		Period:      in.filter.Range.String(),
		Points:      points,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseReport(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	stats, err := s.deps.Reports.Summarize(ctx, in.userID, in.filter, in.target)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, stats)
}

// handleCompare totals the filter over its period and the period before.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseReport(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	prev := period.Previous(in.token, s.now(), in.filter.Range)

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	cmp, err := s.deps.Reports.Compare(ctx, in.userID, in.filter, prev, in.target)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, cmp)
}

// handleConvert converts with live rates, or with the quotes of date when
// it is given and earlier than today.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := ParseDecimal(q, "amount")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	from, err := ParseCurrency(q, "from", s.deps.Base)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	to, err := ParseCurrency(q, "to", s.deps.Base)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	date, err := ParseDate(q, "date")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	resp := ConvertResponse{Amount: amount, From: from, To: to}
	today := core.DateOf(s.now())
	if !date.IsZero() && date.Before(today.Time) {
		resp.Date = core.DateOf(date).String()
		resp.Result, err = s.deps.Converter.ConvertAt(ctx, amount, from, to, date)
		if err != nil {
			WriteError(w, r, err)
			return
		}
	} else {
		resp.Result = s.deps.Converter.Convert(ctx, amount, from, to)
	}
	resp.Formatted = currency.Format(resp.Result, to)
	WriteJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	table := s.deps.Converter.Rates(ctx)
	WriteJSON(w, r, http.StatusOK, RatesResponse{
		Base:  table.Base(),
		AsOf:  table.AsOf(),
		Rates: table.Rates(),
		Stats: s.deps.Converter.Stats(),
	})
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, currency.Supported())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	tx, err := DecodeTransaction(r, userID, s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	saved, err := s.deps.Transactions.Record(ctx, tx)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.metrics.recorded.Add(1)
	s.invalidateUser(userID)

	WriteJSON(w, r, http.StatusCreated, newTransactionResponse(saved))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	tx, err := s.deps.Transactions.Get(ctx, userID, r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := ParsePathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	st, err := s.deps.Budgets.Evaluate(ctx, userID, id, s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, st)
}

func (s *Server) handleBudgetsStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	all, err := s.deps.Budgets.EvaluateAll(ctx, userID, s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, all)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := ParsePathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	p, err := s.deps.Goals.Evaluate(ctx, userID, id, s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, p)
}

// handleGoalRefresh re-evaluates a goal and persists a status transition.
func (s *Server) handleGoalRefresh(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := ParsePathID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	g, p, err := s.deps.Goals.RefreshStatus(ctx, userID, id, s.now())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, r, http.StatusOK, map[string]any{
		"goal_id":  g.ID,
		"status":   g.Status,
		"progress": p,
	})
}
