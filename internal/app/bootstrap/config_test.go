package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "atlas_events",
		InviteTTL:     24 * time.Hour,
		SweepInterval: 5 * time.Minute,
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	if err := ValidateConfig(nil, validConfig(), testLogger()); err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}
}

func TestValidateConfig_BadURI(t *testing.T) {
	cfg := validConfig()
	cfg.MongoURI = "not-a-mongo-uri"
	if err := ValidateConfig(nil, cfg, testLogger()); err == nil {
		t.Error("expected error for invalid Mongo URI")
	}
}

func TestValidateConfig_BadInviteTTL(t *testing.T) {
	cfg := validConfig()
	cfg.InviteTTL = 0
	if err := ValidateConfig(nil, cfg, testLogger()); err == nil {
		t.Error("expected error for non-positive invite TTL")
	}
}

func TestValidateConfig_BadSweepInterval(t *testing.T) {
	cfg := validConfig()
	cfg.SweepInterval = -time.Minute
	if err := ValidateConfig(nil, cfg, testLogger()); err == nil {
		t.Error("expected error for non-positive sweep interval")
	}
}
