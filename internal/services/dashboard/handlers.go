package dashboard

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
	"github.com/LeonardoBeccarini/fertilizer_advisor/pkg/metrics"
)

//go:embed templates/*.html
var templatesFS embed.FS

// PageState is what the single page currently shows.
type PageState int

const (
	AwaitingInput PageState = iota
	ResultDisplayed
)

type formInput struct {
	Key   string
	Label string
	Hint  string
	Value string
}

type formGroup struct {
	Name   string
	Inputs []formInput
}

type pageData struct {
	State   PageState
	Groups  []formGroup
	FieldID string
	Notice  string // prefill information
	Error   string
	Result  *advisor.Recommendation
	Model   advisor.ModelInfo
}

func (p pageData) ShowResult() bool { return p.State == ResultDisplayed && p.Result != nil }

var pageFuncs = template.FuncMap{
	// catalog descriptions are sanitized when the catalog is loaded
	"trusted": func(s string) template.HTML { return template.HTML(s) },
	"barWidth": func(w float64, all []advisor.FeatureWeight) string {
		var top float64
		for _, fw := range all {
			if fw.Weight > top {
				top = fw.Weight
			}
		}
		if top <= 0 || w <= 0 {
			return "0%"
		}
		return fmt.Sprintf("%.1f%%", w/top*100)
	},
	"weight": func(w float64) string { return fmt.Sprintf("%.3f", w) },
}

func parsePage() (*template.Template, error) {
	t, err := template.New("index.html").Funcs(pageFuncs).ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return t, nil
}

func buildGroups(raw advisor.RawSample) []formGroup {
	var groups []formGroup
	for i, f := range entities.Features {
		if len(groups) == 0 || groups[len(groups)-1].Name != f.Group {
			groups = append(groups, formGroup{Name: f.Group})
		}
		g := &groups[len(groups)-1]
		g.Inputs = append(g.Inputs, formInput{Key: f.Key, Label: f.Input, Hint: f.Hint, Value: raw[i]})
	}
	return groups
}

// GET / renders the form, POST / renders the form plus the result of its values.
func (d *Dashboard) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		d.renderForm(w, r)
	case http.MethodPost:
		d.renderResult(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d *Dashboard) renderForm(w http.ResponseWriter, r *http.Request) {
	data := pageData{State: AwaitingInput, Model: d.cfg.Advisor.ModelInfo()}
	raw := advisor.DefaultRawSample()

	fieldID := strings.TrimSpace(r.URL.Query().Get("field"))
	if fieldID != "" {
		data.FieldID = fieldID
		if d.cfg.Prefill != nil {
			ctx, cancel := context.WithTimeout(r.Context(), d.cfg.RequestTimeout)
			n, err := d.prefill(ctx, fieldID, &raw)
			cancel()
			switch {
			case err != nil:
				d.log.Warn("prefill failed, using defaults", zap.String("field_id", fieldID), zap.Error(err))
				data.Notice = "Latest readings for " + fieldID + " are unavailable, defaults are shown."
			case n > 0:
				data.Notice = fmt.Sprintf("%d of %d values prefilled from the latest readings of %s.", n, entities.FeatureCount, fieldID)
			}
		}
	}
	data.Groups = buildGroups(raw)
	d.render(w, http.StatusOK, data)
}

func (d *Dashboard) renderResult(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	raw := advisor.CollectRawSample(func(k string) (string, bool) {
		_, ok := r.PostForm[k]
		return r.PostForm.Get(k), ok
	})
	fieldID := strings.TrimSpace(r.PostForm.Get("field_id"))

	data := pageData{
		State:   ResultDisplayed,
		Groups:  buildGroups(raw),
		FieldID: fieldID,
		Model:   d.cfg.Advisor.ModelInfo(),
	}
	rec, status, err := d.recommend(r.Context(), raw, fieldID)
	if err != nil {
		data.Error = advisor.UserMessage(err)
		d.render(w, status, data)
		return
	}
	data.Result = rec
	d.render(w, http.StatusOK, data)
}

// recommend runs the advisor and hands successful results to the notifier.
func (d *Dashboard) recommend(ctx context.Context, raw advisor.RawSample, fieldID string) (*advisor.Recommendation, int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	rec, err := d.cfg.Advisor.Recommend(ctx, raw)
	status := statusFor(err)
	fields := []zap.Field{zap.String("outcome", outcome(err)), zap.Duration("took", time.Since(start))}
	if rec != nil {
		fields = append(fields, zap.String("fertilizer", rec.Fertilizer))
	}
	d.log.Info("recommendation", fields...)
	if err != nil {
		return nil, status, err
	}
	if fieldID != "" {
		d.cfg.Notifier.Enqueue(fieldID, rec)
	}
	return rec, status, nil
}

func statusFor(err error) int {
	var ve *advisor.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func outcome(err error) string {
	switch statusFor(err) {
	case http.StatusOK:
		return metrics.OutcomeOK
	case http.StatusUnprocessableEntity:
		return metrics.OutcomeValidationError
	}
	return metrics.OutcomeInferenceError
}

func (d *Dashboard) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := d.page.Execute(&buf, data); err != nil {
		d.log.Error("render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
