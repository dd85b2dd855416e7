package advisor

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/model/entities"
)

// RawSample holds the seven inputs as typed by the user, in Feature order.
type RawSample [entities.FeatureCount]string

var errNotFinite = errors.New("value is not a finite number")

// DefaultRawSample is what the form shows before the first submission.
func DefaultRawSample() RawSample {
	var r RawSample
	for i, f := range entities.Features {
		r[i] = f.Default
	}
	return r
}

// CollectRawSample builds a RawSample by looking every feature key up
// (form values, json body, grpc struct, cli flags). Missing keys stay empty.
func CollectRawSample(lookup func(key string) (string, bool)) RawSample {
	var r RawSample
	for i, f := range entities.Features {
		if v, ok := lookup(f.Key); ok {
			r[i] = v
		}
	}
	return r
}

// ParseSample converts the raw inputs. The first unparseable field fails the whole sample;
// ranges are not checked.
func ParseSample(raw RawSample) (entities.SoilSample, error) {
	var v [entities.FeatureCount]float64
	for i, s := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			var ne *strconv.NumError
			if errors.As(err, &ne) {
				err = ne.Err
			}
			return entities.SoilSample{}, &ValidationError{Field: entities.Feature(i), Value: s, Err: err}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return entities.SoilSample{}, &ValidationError{Field: entities.Feature(i), Value: s, Err: errNotFinite}
		}
		v[i] = f
	}
	return entities.SampleFromValues(v), nil
}
