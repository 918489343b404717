package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-ingest/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_status_store.go -package=mocks github.com/rxtech-lab/argo-ingest/internal/status Store
//go:generate mockgen -destination=./mock_bar_writer.go -package=mocks github.com/rxtech-lab/argo-ingest/pkg/marketdata/writer BarWriter
//go:generate mockgen -destination=./mock_request_source.go -package=mocks github.com/rxtech-lab/argo-ingest/internal/request Source
