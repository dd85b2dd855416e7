package dashboard

import (
	"net/http"
)

type healthHandler struct{ d *Dashboard }

func newHealthHandler(d *Dashboard) http.Handler { return &healthHandler{d: d} }

// /healthz is ok as long as the process serves; optional dependencies only degrade it.
func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status        string `json:"status"`
		Classifier    string `json:"classifier"`
		Regressor     string `json:"regressor"`
		Scoring       string `json:"scoring,omitempty"`
		Prefill       string `json:"prefill,omitempty"`
		MQTTConnected *bool  `json:"mqtt_connected,omitempty"`
	}
	info := h.d.cfg.Advisor.ModelInfo()
	st := status{Status: "ok", Classifier: info.Classifier, Regressor: info.Regressor}

	if sc := h.d.cfg.Scoring; sc != nil {
		st.Scoring = sc.State()
		if st.Scoring == "open" {
			st.Status = "degraded"
		}
	}
	if p := h.d.cfg.Prefill; p != nil {
		st.Prefill = p.State()
		if st.Prefill == "open" {
			st.Status = "degraded"
		}
	}
	if n := h.d.cfg.Notifier; n != nil {
		connected := n.Connected()
		st.MQTTConnected = &connected
		if !connected {
			st.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, st)
}

type readyHandler struct{ d *Dashboard }

func newReadyHandler(d *Dashboard) http.Handler { return &readyHandler{d: d} }

// /readyz is 200 once the models are loaded and until shutdown starts.
func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Ready bool `json:"ready"`
	}
	ready := h.d.ready.Load()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp{Ready: ready})
}
