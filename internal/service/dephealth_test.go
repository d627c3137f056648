package service

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewDephealthService_NoDependencies(t *testing.T) {
	_, err := NewDephealthServiceWithRegisterer("simple-storage", "simple-storage",
		DephealthDeps{}, 15*time.Second, testLogger(), prometheus.NewRegistry())
	if !errors.Is(err, ErrNoDependencies) {
		t.Errorf("ожидалась ErrNoDependencies, получено %v", err)
	}
}

func TestNewDephealthService_S3(t *testing.T) {
	ds, err := NewDephealthServiceWithRegisterer("simple-storage", "simple-storage",
		DephealthDeps{S3Endpoint: "http://minio.local:9000"}, 15*time.Second, testLogger(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewDephealthService() ошибка: %v", err)
	}
	if ds == nil {
		t.Fatal("сервис не создан")
	}
}
