package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"sermoncast/internal/api"
	"sermoncast/internal/config"
)

const daemonProbeTimeout = 2 * time.Second

// fetchDaemonStatus asks a running daemon for its status over the HTTP API.
// A nil status with a nil error means nothing answered on the bind address.
func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	host, port, err := net.SplitHostPort(cfg.Paths.APIBind)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind: %w", err)
	}
	if port == "0" {
		return nil, nil
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	reqCtx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()
	url := fmt.Sprintf("http://%s/api/status", net.JoinHostPort(host, port))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon status: %s", resp.Status)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}
