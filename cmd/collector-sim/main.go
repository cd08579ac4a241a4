// collector-sim is a development utility that emulates OSINT collectors. It
// serves synthetic platform profiles and can generate record batches for an
// investigation, optionally pushing them straight to the API's ingest
// endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/pkg/logger"
)

var platforms = []models.SourcePlatform{
	models.PlatformGitHub,
	models.PlatformTwitter,
	models.PlatformInstagram,
	models.PlatformReddit,
	models.PlatformMastodon,
}

var handles = []string{
	"alice_dev", "alice.dev", "bob_ops", "crypto_carl", "dana_data",
	"1nf0_br0ker", "night_owl", "quiet_signal", "relay_nine", "sandpiper",
}

var bioFragments = []string{
	"building things", "opinions my own", "infosec curious", "coffee first",
	"selling access to private channels", "distributed systems", "open source",
	"DMs open for business", "researcher", "photographer on weekends",
}

var locations = []string{"Berlin", "Lisbon", "Toronto", "", "Singapore", "Warsaw"}

type simulator struct {
	rng *rand.Rand
	log *logger.Logger
}

func (s *simulator) record(investigationID uuid.UUID, platform models.SourcePlatform, handle string) *models.RawRecord {
	created := time.Now().AddDate(0, 0, -s.rng.Intn(2000))
	bio := bioFragments[s.rng.Intn(len(bioFragments))] + " | " + bioFragments[s.rng.Intn(len(bioFragments))]

	rec := &models.RawRecord{
		ID:               uuid.New(),
		InvestigationID:  investigationID,
		SourcePlatform:   platform,
		SourceIdentifier: handle,
		DisplayName:      strings.Title(strings.ReplaceAll(strings.ReplaceAll(handle, "_", " "), ".", " ")),
		Bio:              bio,
		Location:         locations[s.rng.Intn(len(locations))],
		Verified:         s.rng.Intn(10) == 0,
		CreatedAt:        &created,
		CollectedAt:      time.Now().UTC(),
		Metrics: map[string]float64{
			models.MetricFollowerCount: float64(s.rng.Intn(5000)),
			models.MetricPostCount:     float64(s.rng.Intn(3000)),
			models.MetricPostingRate:   float64(s.rng.Intn(40)) + s.rng.Float64(),
		},
	}

	// Some identities share an email across platforms so resolution has
	// something to merge.
	if s.rng.Intn(3) == 0 {
		rec.Email = strings.ReplaceAll(strings.ReplaceAll(handle, "_", "."), "-", ".") + "@example.net"
	}

	return rec
}

func (s *simulator) batch(investigationID uuid.UUID, count int) []*models.RawRecord {
	records := make([]*models.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		platform := platforms[s.rng.Intn(len(platforms))]
		handle := handles[s.rng.Intn(len(handles))]
		records = append(records, s.record(investigationID, platform, handle))
	}
	return records
}

func (s *simulator) handleProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	platform := models.SourcePlatform(vars["platform"])
	handle := vars["username"]

	rec := s.record(uuid.Nil, platform, handle)
	writeJSON(w, http.StatusOK, rec)
}

func (s *simulator) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, platforms)
}

type generateRequest struct {
	InvestigationID uuid.UUID `json:"investigation_id"`
	Count           int       `json:"count"`
	PushTo          string    `json:"push_to,omitempty"` // API base URL, e.g. http://localhost:8080
	APIKey          string    `json:"api_key,omitempty"`
}

func (s *simulator) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Count <= 0 || req.Count > 10000 {
		req.Count = 50
	}
	if req.InvestigationID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "investigation_id is required"})
		return
	}

	records := s.batch(req.InvestigationID, req.Count)

	if req.PushTo != "" {
		if err := s.push(req, records); err != nil {
			s.log.Error().Err(err).Msg("failed to push records")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pushed": len(records), "target": req.PushTo})
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *simulator) push(req generateRequest, records []*models.RawRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/investigations/%s/records", strings.TrimRight(req.PushTo, "/"), req.InvestigationID)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}

	s.log.Info().
		Int("records", len(records)).
		Str("target", url).
		Msg("pushed synthetic records")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	seed := flag.Int64("seed", time.Now().UnixNano(), "PRNG seed, fix it for reproducible batches")
	flag.Parse()

	log := logger.NewDevelopment()
	sim := &simulator{
		rng: rand.New(rand.NewSource(*seed)),
		log: log,
	}

	router := mux.NewRouter()
	router.HandleFunc("/platforms", sim.handlePlatforms).Methods(http.MethodGet)
	router.HandleFunc("/profiles/{platform}/{username}", sim.handleProfile).Methods(http.MethodGet)
	router.HandleFunc("/generate", sim.handleGenerate).Methods(http.MethodPost)

	log.Info().
		Str("addr", *addr).
		Int64("seed", *seed).
		Msg("collector simulator listening")

	if err := http.ListenAndServe(*addr, router); err != nil {
		log.Fatal().Err(err).Msg("collector simulator failed")
	}
}
