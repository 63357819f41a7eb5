package cli

import (
	"errors"
	"fmt"

	"github.com/hootmeow/openvas-strix/internal/export"
	"github.com/hootmeow/openvas-strix/internal/ingest"
	"github.com/hootmeow/openvas-strix/internal/openvas"
	"github.com/hootmeow/openvas-strix/internal/storage"
)

// app holds the long-lived components a command works with.
type app struct {
	store    *storage.SQLiteStore
	exporter *export.Exporter
	ingester *ingest.Ingester
}

func (st *state) openApp() (*app, error) {
	store, err := storage.NewSQLiteStore(st.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.AutoMigrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	p, err := st.newPlugin()
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{store: store}
	opts := []ingest.Option{ingest.WithDataDir(st.cfg.Plugin.DataDir)}
	if st.cfg.Kafka.Enabled {
		a.exporter = export.NewExporter(export.NewKafkaWriter(st.cfg.Kafka.Brokers, st.cfg.Kafka.Topic))
		opts = append(opts, ingest.WithMirror(a.exporter))
		st.log.WithField("topic", st.cfg.Kafka.Topic).Info("Streaming entities to Kafka")
	}
	a.ingester = ingest.New(store, p, st.log, opts...)
	return a, nil
}

func (st *state) newPlugin() (*openvas.Plugin, error) {
	table, err := openvas.LoadServiceTableFile(st.cfg.Plugin.PortMapFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load port map: %w", err)
	}
	return openvas.NewPlugin(table, st.log), nil
}

func (a *app) Close() error {
	var errs []error
	if a.exporter != nil {
		errs = append(errs, a.exporter.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
