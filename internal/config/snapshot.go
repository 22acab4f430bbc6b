package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cdsctf/cdsctfd/internal/db"
)

// ClusterSnapshot mirrors the persisted `configs.cluster` column. Only the
// fields this core actually consumes are decoded; the rest of the column's
// JSON is ignored.
type ClusterSnapshot struct {
	Namespace    string `json:"namespace"`
	PublicEntry  string `json:"public_entry"`
	ProxyEnabled bool   `json:"proxy_enabled"`
}

// Snapshot mirrors the persisted singleton `configs` row (auth/cluster/site
// JSON columns). Auth and Site are carried opaque since they belong to the
// out-of-scope HTTP/session surface; only Cluster is consumed here.
type Snapshot struct {
	ID      int64
	Auth    json.RawMessage
	Cluster ClusterSnapshot
	Site    json.RawMessage
}

// LoadSnapshot reads the singleton configs row, if one exists. A missing
// row is not an error: callers fall back to env-var configuration.
func LoadSnapshot(ctx context.Context, conn db.DBTX) (*Snapshot, error) {
	var (
		id         int64
		authRaw    []byte
		clusterRaw []byte
		siteRaw    []byte
	)

	row := conn.QueryRow(ctx, `SELECT id, auth, cluster, site FROM configs ORDER BY id LIMIT 1`)
	if err := row.Scan(&id, &authRaw, &clusterRaw, &siteRaw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading config snapshot: %w", err)
	}

	var cluster ClusterSnapshot
	if len(clusterRaw) > 0 {
		if err := json.Unmarshal(clusterRaw, &cluster); err != nil {
			return nil, fmt.Errorf("decoding cluster config: %w", err)
		}
	}

	return &Snapshot{ID: id, Auth: authRaw, Cluster: cluster, Site: siteRaw}, nil
}

// ApplyTo overlays the snapshot's cluster settings onto cfg, mirroring the
// original implementation's DB-stored config taking precedence over
// environment defaults. A nil snapshot (no persisted row yet) is a no-op.
func (s *Snapshot) ApplyTo(cfg *Config) {
	if s == nil {
		return
	}
	if s.Cluster.Namespace != "" {
		cfg.ClusterNamespace = s.Cluster.Namespace
	}
	if s.Cluster.PublicEntry != "" {
		cfg.ClusterPublicEntry = s.Cluster.PublicEntry
	}
	cfg.ClusterProxyEnabled = s.Cluster.ProxyEnabled
}
