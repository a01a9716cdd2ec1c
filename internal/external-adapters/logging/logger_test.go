package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/sonarscan/internal/domain/interfaces"
)

func TestLogger_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Output: &buf, Secrets: []string{"squ_secret"}})

	log.Info("running mvn -Dsonar.token=squ_secret",
		interfaces.F("command", "mvn -Dsonar.token=squ_secret"),
		interfaces.F("error", errors.New("auth failed for squ_secret")),
		interfaces.F("steps", 3),
	)

	out := buf.String()
	assert.NotContains(t, out, "squ_secret")
	assert.Contains(t, out, "-Dsonar.token=****")
	assert.Contains(t, out, "steps=3")
}

func TestLogger_AddSecretAppliesToDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})
	child := log.With(interfaces.F("request_id", "abc"))

	log.AddSecret("late_token")
	child.Warn("token late_token rejected")

	assert.NotContains(t, buf.String(), "late_token")
	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf})

	log.Error("scan failed", interfaces.F("project_key", "demo"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scan failed", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "demo", entry["project_key"])
}

func TestLogger_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, false},
		{"bogus", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: tt.level, Output: &buf})

			log.Debug("debug-line")
			log.Info("info-line")

			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), "debug-line"))
			assert.Equal(t, tt.wantInfo, strings.Contains(buf.String(), "info-line"))
		})
	}
}

func TestLogger_ImplementsInterface(_ *testing.T) {
	var _ interfaces.Logger = New(Config{})
}
