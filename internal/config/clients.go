package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadClients reads the client registry from the CLIENTS env var (JSON object)
// or, when that is unset, from the file named by CLIENTS_FILE (YAML mapping).
// The registry must end up non-empty with no blank ids or secrets.
func loadClients(errs *[]string) map[string]string {
	raw, hasInline := os.LookupEnv("CLIENTS")
	path, hasFile := os.LookupEnv("CLIENTS_FILE")

	var clients map[string]string
	switch {
	case hasInline && strings.TrimSpace(raw) != "":
		if err := json.Unmarshal([]byte(raw), &clients); err != nil {
			*errs = append(*errs, fmt.Sprintf("CLIENTS: invalid JSON object: %v", err))
			return nil
		}
	case hasFile && strings.TrimSpace(path) != "":
		data, err := os.ReadFile(path)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("CLIENTS_FILE: %v", err))
			return nil
		}
		if err := yaml.Unmarshal(data, &clients); err != nil {
			*errs = append(*errs, fmt.Sprintf("CLIENTS_FILE: invalid YAML mapping: %v", err))
			return nil
		}
	default:
		*errs = append(*errs, "CLIENTS or CLIENTS_FILE is required and must define at least one client")
		return nil
	}

	if len(clients) == 0 {
		*errs = append(*errs, "client registry must not be empty")
		return nil
	}
	for id, secret := range clients {
		if strings.TrimSpace(id) == "" {
			*errs = append(*errs, "client registry contains a blank client id")
		}
		if strings.TrimSpace(secret) == "" {
			*errs = append(*errs, fmt.Sprintf("client %q has a blank secret", id))
		}
	}
	return clients
}
