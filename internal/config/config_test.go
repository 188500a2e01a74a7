package config

import "testing"

func stubID() string { return "stubid01" }

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]string{"-p", "4242", "-n", "red", "-h", "localhost"}, stubID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 4242 || cfg.TeamName != "red" || cfg.Host != "localhost" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.UniqueID != "stubid01" {
		t.Fatalf("expected stub unique id, got %q", cfg.UniqueID)
	}
}

func TestParse_AnyOrder(t *testing.T) {
	cfg, err := Parse([]string{"-h", "10.0.0.1", "-p", "1", "-n", "blue"}, stubID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 1 || cfg.TeamName != "blue" || cfg.Host != "10.0.0.1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParse_Help(t *testing.T) {
	_, err := Parse([]string{"-help"}, stubID)
	if !IsHelp(err) {
		t.Fatalf("expected help error, got %v", err)
	}
}

func TestParse_TooFewArgs(t *testing.T) {
	_, err := Parse([]string{"-p", "1"}, stubID)
	assertArgErrorCode(t, err, 84)
}

func TestParse_DanglingFlag(t *testing.T) {
	_, err := Parse([]string{"-p", "1", "-n", "blue", "-h"}, stubID)
	assertArgErrorCode(t, err, 84)
}

func TestParse_UnknownFlag(t *testing.T) {
	_, err := Parse([]string{"-p", "1", "-n", "blue", "-x", "1"}, stubID)
	assertArgErrorCode(t, err, 84)
}

func TestParse_NonIntegerPort(t *testing.T) {
	_, err := Parse([]string{"-p", "notaport", "-n", "blue", "-h", "localhost"}, stubID)
	assertArgErrorCode(t, err, 84)
}

func TestParse_ZeroPortRejected(t *testing.T) {
	_, err := Parse([]string{"-p", "0", "-n", "blue", "-h", "localhost"}, stubID)
	assertArgErrorCode(t, err, 84)
}

func TestParse_MissingRequiredFlag(t *testing.T) {
	_, err := Parse([]string{"-p", "1", "-p", "2", "-n", "blue"}, stubID)
	assertArgErrorCode(t, err, 84)
}

func assertArgErrorCode(t *testing.T, err error, code int) {
	t.Helper()
	ae, ok := err.(*ArgError)
	if !ok {
		t.Fatalf("expected *ArgError, got %T (%v)", err, err)
	}
	if ae.Code != code {
		t.Fatalf("expected code %d, got %d", code, ae.Code)
	}
}
