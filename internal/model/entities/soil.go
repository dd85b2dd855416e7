package entities

// Feature identifies one of the soil parameters fed to the models.
// The iota order is the column order the models were trained on.
type Feature int

const (
	Moisture Feature = iota
	Temperature
	EC
	PH
	Nitrogen
	Phosphorus
	Potassium
)

const FeatureCount = 7

// FeatureSpec describes how a parameter is collected and displayed.
type FeatureSpec struct {
	Key     string // form / json key
	Label   string // summary table + chart label
	Input   string // form label
	Unit    string
	Hint    string // range hint, shown but never enforced
	Group   string
	Default string
}

var Features = [FeatureCount]FeatureSpec{
	Moisture:    {Key: "moisture", Label: "Moisture", Input: "Moisture (%)", Unit: "%", Hint: "Soil water content (0-100%)", Group: "Physical Properties", Default: "30.0"},
	Temperature: {Key: "temperature", Label: "Temperature", Input: "Temperature (°C)", Unit: "°C", Hint: "Soil temperature range: 0-50°C", Group: "Physical Properties", Default: "25.0"},
	EC:          {Key: "ec", Label: "EC", Input: "EC (µS/cm)", Unit: "µS/cm", Hint: "Electrical conductivity (0-2000 µS/cm)", Group: "Chemical Properties", Default: "300"},
	PH:          {Key: "ph", Label: "pH", Input: "pH Level", Unit: "pH", Hint: "Soil acidity/alkalinity (0-14 scale)", Group: "Chemical Properties", Default: "6.5"},
	Nitrogen:    {Key: "n", Label: "N", Input: "Nitrogen (N) mg/kg", Unit: "mg/kg", Hint: "Available nitrogen (0-500 mg/kg)", Group: "Nutrient Levels", Default: "50"},
	Phosphorus:  {Key: "p", Label: "P", Input: "Phosphorus (P) mg/kg", Unit: "mg/kg", Hint: "Available phosphorus (0-500 mg/kg)", Group: "Nutrient Levels", Default: "50"},
	Potassium:   {Key: "k", Label: "K", Input: "Potassium (K) mg/kg", Unit: "mg/kg", Hint: "Available potassium (0-500 mg/kg)", Group: "Nutrient Levels", Default: "50"},
}

func (f Feature) Spec() FeatureSpec { return Features[f] }

func (f Feature) String() string {
	if f < 0 || int(f) >= FeatureCount {
		return "unknown"
	}
	return Features[f].Key
}

// FeatureByKey resolves a form/json key ("moisture", "ec", "n", ...).
func FeatureByKey(key string) (Feature, bool) {
	for i, s := range Features {
		if s.Key == key {
			return Feature(i), true
		}
	}
	return 0, false
}

// SoilSample is one validated set of soil readings. Ranges are not checked.
type SoilSample struct {
	Moisture    float64 `json:"moisture"`    // %
	Temperature float64 `json:"temperature"` // °C
	EC          float64 `json:"ec"`          // µS/cm
	PH          float64 `json:"ph"`
	Nitrogen    float64 `json:"n"` // mg/kg
	Phosphorus  float64 `json:"p"` // mg/kg
	Potassium   float64 `json:"k"` // mg/kg
}

func SampleFromValues(v [FeatureCount]float64) SoilSample {
	return SoilSample{
		Moisture:    v[Moisture],
		Temperature: v[Temperature],
		EC:          v[EC],
		PH:          v[PH],
		Nitrogen:    v[Nitrogen],
		Phosphorus:  v[Phosphorus],
		Potassium:   v[Potassium],
	}
}

// Values returns the readings in model column order.
func (s SoilSample) Values() [FeatureCount]float64 {
	return [FeatureCount]float64{s.Moisture, s.Temperature, s.EC, s.PH, s.Nitrogen, s.Phosphorus, s.Potassium}
}

// Vector is Values as a fresh slice, safe to hand to a predictor.
func (s SoilSample) Vector() []float64 {
	v := s.Values()
	return v[:]
}

func (s SoilSample) Value(f Feature) float64 { return s.Values()[f] }
