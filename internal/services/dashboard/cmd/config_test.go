package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/fertilizer_advisor/internal/services/advisor"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "5009", cfg.Port)
	assert.Equal(t, "", cfg.GRPCPort)
	assert.Equal(t, "local", cfg.ModelBackend)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.CBFails)
	assert.Equal(t, 10*time.Second, cfg.CBOpen)
	assert.Equal(t, "soil_reading", cfg.Measurement)
	assert.Equal(t, 24*time.Hour, cfg.PrefillWindow)
	assert.False(t, cfg.MQTTEnabled)
	assert.Equal(t, 1883, cfg.Rabbit.Port)
	assert.Equal(t, "event/fertilizerRecommendation/{field}", cfg.TopicTemplate)
	assert.Equal(t, 10*time.Minute, cfg.DedupTTL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("MODEL_BACKEND", "Remote")
	t.Setenv("MODEL_SERVICE_URL", "http://scoring:9000")
	t.Setenv("TIMEOUT_MS", "1500")
	t.Setenv("MQTT_ENABLED", "true")

	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)
	assert.Equal(t, "8088", cfg.Port)
	assert.Equal(t, "remote", cfg.ModelBackend)
	assert.Equal(t, "http://scoring:9000", cfg.ModelServiceURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.True(t, cfg.MQTTEnabled)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\ncatalog_path: /etc/catalog.yaml\n"), 0o600))

	cfg, err := loadConfig(newViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "/etc/catalog.yaml", cfg.CatalogPath)

	_, err = loadConfig(newViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown backend", map[string]string{"MODEL_BACKEND": "onnx"}, "MODEL_BACKEND must be local or remote"},
		{"remote without url", map[string]string{"MODEL_BACKEND": "remote"}, "MODEL_SERVICE_URL"},
		{"zero timeout", map[string]string{"TIMEOUT_MS": "0"}, "TIMEOUT_MS"},
		{"topic without field", map[string]string{"MQTT_ENABLED": "true", "RECOMMENDATION_TOPIC_TEMPLATE": "advice"}, "{field}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(newViper(), "")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FERTADVISOR_TEST_KEY=from-dotenv\n"), 0o600))
	t.Setenv("FERTADVISOR_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("FERTADVISOR_TEST_KEY"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("FERTADVISOR_TEST_KEY"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(&advisor.ValidationError{Err: errors.New("x")}))
	assert.Equal(t, 1, exitCode(&advisor.InferenceError{Stage: "classify", Err: errors.New("x")}))
	assert.Equal(t, 1, exitCode(errors.New("config")))
}

func modelEnv(t *testing.T) {
	t.Helper()
	dir := filepath.Join("..", "..", "advisor", "inference", "testdata")
	t.Setenv("CLASSIFIER_PATH", filepath.Join(dir, "classification_model.json"))
	t.Setenv("REGRESSOR_PATH", filepath.Join(dir, "regression_model.json"))
	t.Setenv("LABEL_ENCODER_PATH", filepath.Join(dir, "label_encoder.json"))
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRecommendCmd(t *testing.T) {
	modelEnv(t)

	out, err := runCLI(t, "recommend", "--n", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "Recommended fertilizer: Urea")
	assert.Contains(t, out, "Application rate: 104.0 kg/ha")
	assert.Contains(t, out, "Input summary:")
}

func TestRecommendCmd_JSON(t *testing.T) {
	modelEnv(t)

	out, err := runCLI(t, "recommend", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"fertilizer": "MOP"`)
	assert.Contains(t, out, `"rate_text": "84.1 kg/ha"`)
}

func TestRecommendCmd_InvalidInput(t *testing.T) {
	modelEnv(t)

	_, err := runCLI(t, "recommend", "--ph", "acidic")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
	assert.Equal(t, "Please enter valid numbers in all fields", advisor.UserMessage(err))
}

func TestRecommendCmd_MissingArtifacts(t *testing.T) {
	t.Setenv("CLASSIFIER_PATH", filepath.Join(t.TempDir(), "nope.json"))

	_, err := runCLI(t, "recommend")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "Smart Fertilizer Advisor Version 1.0\n", out)
}

func TestSimulateCmd_RejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("INFLUX_URL", "http://127.0.0.1:1")
	for _, iv := range []string{"0s", "-5s"} {
		_, err := runCLI(t, "simulate", "--interval", iv)
		assert.ErrorContains(t, err, "--interval must be positive")
	}
}

func TestSimulateCmd_NeedsInflux(t *testing.T) {
	t.Setenv("INFLUX_URL", "")
	_, err := runCLI(t, "simulate")
	assert.ErrorContains(t, err, "INFLUX_URL")
}
