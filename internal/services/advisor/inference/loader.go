package inference

import (
	"encoding/json"
	"fmt"
	"os"
)

type classifierArtifact struct {
	Kind               string    `json:"kind"`
	ModelName          string    `json:"model_name"`
	NFeatures          int       `json:"n_features"`
	Classes            []int     `json:"classes"`
	FeatureImportances []float64 `json:"feature_importances"`
	Trees              []tree    `json:"trees"`
}

type regressorArtifact struct {
	Kind      string `json:"kind"`
	ModelName string `json:"model_name"`
	NFeatures int    `json:"n_features"`
	Trees     []tree `json:"trees"`
}

type labelEncoderArtifact struct {
	Classes []string `json:"classes"`
}

func ParseClassifier(data []byte) (*ForestClassifier, error) {
	if err := validateArtifact(schemaClassifier, data); err != nil {
		return nil, err
	}
	var a classifierArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode classifier: %w", err)
	}
	if n := len(a.FeatureImportances); n != 0 && n != a.NFeatures {
		return nil, fmt.Errorf("classifier has %d feature importances for %d features", n, a.NFeatures)
	}
	for i := range a.Trees {
		if err := a.Trees[i].validate(a.NFeatures, len(a.Classes)); err != nil {
			return nil, fmt.Errorf("classifier tree %d: %w", i, err)
		}
	}
	return &ForestClassifier{
		name:        modelName(a.ModelName, a.Kind),
		nFeatures:   a.NFeatures,
		classes:     a.Classes,
		importances: a.FeatureImportances,
		trees:       a.Trees,
	}, nil
}

func ParseRegressor(data []byte) (*ForestRegressor, error) {
	if err := validateArtifact(schemaRegressor, data); err != nil {
		return nil, err
	}
	var a regressorArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode regressor: %w", err)
	}
	for i := range a.Trees {
		if err := a.Trees[i].validate(a.NFeatures, 1); err != nil {
			return nil, fmt.Errorf("regressor tree %d: %w", i, err)
		}
	}
	return &ForestRegressor{name: modelName(a.ModelName, a.Kind), nFeatures: a.NFeatures, trees: a.Trees}, nil
}

func ParseLabelEncoder(data []byte) (*ClassEncoder, error) {
	if err := validateArtifact(schemaLabelEncoder, data); err != nil {
		return nil, err
	}
	var a labelEncoderArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode label encoder: %w", err)
	}
	return NewClassEncoder(a.Classes)
}

// LocalPaths are the three artifact files of the local backend.
type LocalPaths struct {
	Classifier   string
	Regressor    string
	LabelEncoder string
}

// LoadLocal reads and checks all three artifacts. Any failure is returned
// and the caller must not serve requests.
func LoadLocal(p LocalPaths) (Models, error) {
	cdata, err := os.ReadFile(p.Classifier)
	if err != nil {
		return Models{}, fmt.Errorf("read classification model: %w", err)
	}
	clf, err := ParseClassifier(cdata)
	if err != nil {
		return Models{}, fmt.Errorf("%s: %w", p.Classifier, err)
	}

	rdata, err := os.ReadFile(p.Regressor)
	if err != nil {
		return Models{}, fmt.Errorf("read regression model: %w", err)
	}
	reg, err := ParseRegressor(rdata)
	if err != nil {
		return Models{}, fmt.Errorf("%s: %w", p.Regressor, err)
	}

	edata, err := os.ReadFile(p.LabelEncoder)
	if err != nil {
		return Models{}, fmt.Errorf("read label encoder: %w", err)
	}
	enc, err := ParseLabelEncoder(edata)
	if err != nil {
		return Models{}, fmt.Errorf("%s: %w", p.LabelEncoder, err)
	}

	if clf.nFeatures != reg.nFeatures {
		return Models{}, fmt.Errorf("classifier expects %d features, regressor %d", clf.nFeatures, reg.nFeatures)
	}
	// every label the classifier can emit must decode
	for _, code := range clf.classes {
		if code >= len(enc.classes) {
			return Models{}, fmt.Errorf("classifier label %d has no entry in the label encoder (%d classes)", code, len(enc.classes))
		}
	}
	return Models{Classifier: clf, Regressor: reg, Encoder: enc}, nil
}

func modelName(name, kind string) string {
	if name != "" {
		return name
	}
	switch kind {
	case "random_forest_classifier", "random_forest_regressor":
		return "Random Forest"
	case "decision_tree_classifier", "decision_tree_regressor":
		return "Decision Tree"
	}
	return kind
}
