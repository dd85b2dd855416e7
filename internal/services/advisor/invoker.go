package advisor

import (
	"context"
	"fmt"
	"math"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor/inference"
)

// predict runs classifier, regressor and decoder on one sample.
// Every failure, panics included, comes back as *InferenceError.
func predict(ctx context.Context, m inference.Models, s entities.SoilSample) (res entities.PredictionResult, err error) {
	stage := "classify"
	defer func() {
		if r := recover(); r != nil {
			res = entities.PredictionResult{}
			err = &InferenceError{Stage: stage, Err: fmt.Errorf("%v", r)}
		}
	}()

	code, err := m.Classifier.Classify(ctx, s.Vector())
	if err != nil {
		return res, &InferenceError{Stage: stage, Err: err}
	}

	stage = "regress"
	rate, err := m.Regressor.Regress(ctx, s.Vector())
	if err != nil {
		return res, &InferenceError{Stage: stage, Err: err}
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return res, &InferenceError{Stage: stage, Err: fmt.Errorf("application rate is not finite")}
	}

	stage = "decode"
	name, err := m.Encoder.Decode(ctx, code)
	if err != nil {
		return res, &InferenceError{Stage: stage, Err: err}
	}
	if name == "" {
		return res, &InferenceError{Stage: stage, Err: fmt.Errorf("label %d decoded to an empty name", code)}
	}

	res = entities.PredictionResult{Fertilizer: name, RateKgHa: rate}
	if fi, ok := m.Classifier.(inference.FeatureImportancer); ok {
		res.Importances = fi.FeatureImportances()
	}
	return res, nil
}
