package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"picking-tracker-backend/config"
	"picking-tracker-backend/internal/store"
)

// Service periodically pulls the store catalog and weekday templates from
// the upstream system that owns them and persists them through the store.
type Service struct {
	cfg    *config.Config
	store  store.Store
	client *http.Client
}

// NewService creates and initializes a new catalog sync service.
func NewService(cfg *config.Config, st store.Store) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.Catalog.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.Catalog.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Catalog sync will not use a proxy.", cfg.Catalog.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:   cfg,
		store: st,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// payload is the upstream catalog document.
type payload struct {
	Stores    []store.CatalogStore `json:"stores"`
	Templates []store.CatalogEntry `json:"templates"`
}

// Run starts the sync process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Catalog.Enabled {
		log.Println("Catalog sync is disabled. Not starting.")
		return
	}
	log.Println("Starting catalog sync service...")

	if err := s.SyncOnce(ctx); err != nil {
		log.Printf("Catalog sync failed: %v", err)
	}

	timer := time.NewTimer(s.cfg.Catalog.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Catalog sync service shutting down.")
			return
		case <-timer.C:
			if err := s.SyncOnce(ctx); err != nil {
				log.Printf("Catalog sync failed: %v", err)
			}
			timer.Reset(s.cfg.Catalog.Interval)
		}
	}
}

// SyncOnce performs a single fetch-and-upsert cycle.
func (s *Service) SyncOnce(ctx context.Context) error {
	doc, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	if err := s.store.SyncCatalog(ctx, doc.Stores, doc.Templates); err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}

	log.Printf("Catalog sync complete: %d stores, %d template entries", len(doc.Stores), len(doc.Templates))
	return nil
}

func (s *Service) fetch(ctx context.Context) (*payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Catalog.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	for k, v := range s.cfg.Catalog.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog request returned %d: %s", resp.StatusCode, body)
	}

	var doc payload
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog payload: %w", err)
	}
	return &doc, nil
}
