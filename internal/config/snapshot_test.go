package config

import "testing"

func TestSnapshot_ApplyTo_Nil(t *testing.T) {
	cfg := &Config{ClusterProxyEnabled: true, ClusterNamespace: "env-default"}
	var snap *Snapshot
	snap.ApplyTo(cfg)

	if !cfg.ClusterProxyEnabled || cfg.ClusterNamespace != "env-default" {
		t.Error("a nil snapshot must not modify cfg")
	}
}

func TestSnapshot_ApplyTo_Overlays(t *testing.T) {
	cfg := &Config{ClusterProxyEnabled: false, ClusterNamespace: "env-default", ClusterPublicEntry: "env-entry"}
	snap := &Snapshot{Cluster: ClusterSnapshot{Namespace: "db-namespace", ProxyEnabled: true}}
	snap.ApplyTo(cfg)

	if cfg.ClusterNamespace != "db-namespace" {
		t.Errorf("ClusterNamespace = %q, want db-namespace", cfg.ClusterNamespace)
	}
	if cfg.ClusterPublicEntry != "env-entry" {
		t.Error("an empty snapshot field should not overwrite the env default")
	}
	if !cfg.ClusterProxyEnabled {
		t.Error("ClusterProxyEnabled should follow the snapshot even when false->true")
	}
}
