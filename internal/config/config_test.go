package config

import (
	"context"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "chango" {
		t.Errorf("Database.Name = %q, want chango", cfg.Database.Name)
	}
	if !cfg.App.IsDevelopment() {
		t.Error("default environment should be development")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("APP_ENVIRONMENT", "production")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Server.GetServerAddr(); got != "0.0.0.0:9090" {
		t.Errorf("GetServerAddr = %q", got)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q", cfg.Database.Host)
	}
	if !cfg.App.IsProduction() {
		t.Error("APP_ENVIRONMENT=production not picked up")
	}
}

func TestGetDatabaseURL(t *testing.T) {
	c := DatabaseConfig{
		Host: "localhost", Port: "5432", User: "postgres",
		Password: "secret", Name: "chango", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=postgres password=secret dbname=chango sslmode=disable"
	if got := c.GetDatabaseURL(); got != want {
		t.Errorf("GetDatabaseURL = %q, want %q", got, want)
	}
}
