package config

import "testing"

func TestParseBenchmark(t *testing.T) {
	cfg, err := Parse([]string{"--benchmark", "ignored", "args"})
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Benchmark {
		t.Error("expected Benchmark = true")
	}
}

func TestParseMiningNoP2P(t *testing.T) {
	cfg, err := Parse([]string{"stratum+tcp://pool.example.com:3333", "worker1", "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StratumAddr != "pool.example.com:3333" {
		t.Errorf("StratumAddr = %q", cfg.StratumAddr)
	}
	if cfg.Worker != "worker1" || cfg.Password != "pw" {
		t.Errorf("worker/password = %q/%q", cfg.Worker, cfg.Password)
	}
	if cfg.P2PAddr != "" {
		t.Errorf("P2PAddr = %q, want empty", cfg.P2PAddr)
	}
}

func TestParseMiningWithP2P(t *testing.T) {
	cfg, err := Parse([]string{
		"stratum+tcp://pool.example.com:3333", "worker1", "pw", "node.example.com:8333",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.P2PAddr != "node.example.com:8333" {
		t.Errorf("P2PAddr = %q", cfg.P2PAddr)
	}
}

func TestParseRejectsBadScheme(t *testing.T) {
	_, err := Parse([]string{"tcp://pool.example.com:3333", "worker1", "pw"})
	if err == nil {
		t.Error("expected error for missing stratum+tcp:// scheme")
	}
}

func TestParseRejectsWrongArgCount(t *testing.T) {
	_, err := Parse([]string{"stratum+tcp://pool.example.com:3333"})
	if err == nil {
		t.Error("expected error for too few arguments")
	}
}
