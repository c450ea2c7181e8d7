package infrastructure_test

import (
	"testing"

	"github.com/JaimeStill/courier/internal/config"
	"github.com/JaimeStill/courier/internal/infrastructure"
	"github.com/JaimeStill/courier/pkg/database"
	"github.com/JaimeStill/courier/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=courierstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/courierstore;"

func validConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "courier",
			User:            "courier",
			Password:        "courier",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "bundles",
			ConnectionString: azuriteConnString,
		},
		Version: "0.1.0",
	}
	if err := cfg.Preprocess.Finalize(); err != nil {
		t.Fatalf("finalize preprocess: %v", err)
	}
	return cfg
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Database == nil {
		t.Error("Database is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil")
	}
	if infra.Preprocess == nil {
		t.Error("Preprocess is nil")
	}
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.ConnectionString = "not-a-connection-string"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}

func TestNewInvalidPreprocessConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Preprocess.DisabledFormats = []string{"cab"}

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for unknown disabled format")
	}
}
