package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rsp2com/gateway/pkg/gwconfig"
)

// ModelEntry is one row of the /v1/models listing.
type ModelEntry struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

// ListModels builds the /v1/models body from the static configuration:
// cfg.Models are routed directly (provider inferred from the model-id
// prefix, same rule the chat handler uses), cfg.AdapterModels are all
// attributed to a single "adapter" provider. A bare name that is unique
// across the whole catalog keeps its bare id; one offered by more than
// one provider is disambiguated as "<provider>.<name>".
func ListModels(cfg *gwconfig.Config) []ModelEntry {
	type row struct {
		provider string
		name     string
	}
	var rows []row
	for _, m := range cfg.Models {
		rows = append(rows, row{provider: string(ProviderForModel(m)), name: m})
	}
	for _, m := range cfg.AdapterModels {
		rows = append(rows, row{provider: "adapter", name: m})
	}

	providersByName := make(map[string]map[string]bool)
	for _, r := range rows {
		if providersByName[r.name] == nil {
			providersByName[r.name] = make(map[string]bool)
		}
		providersByName[r.name][r.provider] = true
	}

	seen := make(map[string]bool)
	var entries []ModelEntry
	for _, r := range rows {
		id := r.name
		if len(providersByName[r.name]) > 1 {
			id = r.provider + "." + r.name
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		entries = append(entries, ModelEntry{ID: id, Object: "model"})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// HandleModels answers GET /v1/models, /models.
func HandleModels(cfg *gwconfig.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   ListModels(cfg),
		})
	}
}
