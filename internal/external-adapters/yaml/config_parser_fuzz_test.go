package yaml

import (
	"testing"
)

// FuzzConfigParser tests the YAML parser against random/malformed inputs
// to detect crashes, panics, or unexpected behavior.
//
// Run with: go test -fuzz=FuzzConfigParser -fuzztime=30s
func FuzzConfigParser(f *testing.F) {
	// Seed corpus with valid YAML examples
	f.Add([]byte(`sonarqube_url: http://localhost:9000
sonarqube_token: squ_abc
sonarscanner_path: /opt/sonar-scanner/bin/sonar-scanner
`))

	f.Add([]byte(`sonarqube_url: https://sonar.example.com/
sonarscanner_path: sonar-scanner
dotnet_scanner: dotnet sonarscanner
command_timeout_minutes: 45
max_upload_mb: 250
require_signature: true
trusted_keys_file: /etc/sonarscan/keys.asc
log_format: json
`))

	// Seed with edge cases
	f.Add([]byte(``))                                       // Empty input
	f.Add([]byte(`sonarqube_url: ""` + "\n"))               // Empty URL
	f.Add([]byte(`{}`))                                     // Empty JSON-style YAML
	f.Add([]byte(`[]`))                                     // Array instead of object
	f.Add([]byte(`sonarqube_url: x\n  bad`))                // Invalid indentation
	f.Add([]byte(`command_timeout_minutes: not-a-number`))  // Wrong type
	f.Add([]byte(`sonarqube_url: "http://[::1]:namedport"`)) // Unparsable URL

	parser := NewConfigParser()

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg, err := parser.Parse(data, nil)
		if err == nil && (cfg.HostURL == "" || cfg.ScannerPath == "" || cfg.CommandTimeout <= 0) {
			t.Errorf("Parse() accepted incomplete config: %+v", cfg)
		}
	})
}
