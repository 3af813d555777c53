/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/satgroupe/fmb-gateway/pkg/config"
	"github.com/satgroupe/fmb-gateway/pkg/dout1"
	"github.com/satgroupe/fmb-gateway/pkg/listener"
	"github.com/satgroupe/fmb-gateway/pkg/metrics"
	"github.com/satgroupe/fmb-gateway/pkg/repository"
	"github.com/satgroupe/fmb-gateway/pkg/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("main: loading configuration")
	}
	configureLogging(cfg)

	store := repository.NewMemory()

	controller := dout1.New(store)
	controller.Timeout12H = cfg.TimeoutZero()
	controller.ActivationTime = cfg.ActivationDuration()
	controller.IOID = cfg.Dout1IOID
	controller.Transitions = metrics.Dout1Transitions

	handler := session.New(store, controller, cfg.ResponseTimeout(), cfg.ReadTimeout())

	collector := metrics.NewTCPInfoCollector([]string{"session_id"}, func(err error) {
		logrus.WithError(err).Warn("metrics: tcpinfo collection")
	})
	metrics.MustRegister(prometheus.DefaultRegisterer, collector)

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("main: metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := listener.New(cfg.Addr(), handler, collector)
	logrus.WithFields(logrus.Fields{
		"addr":         cfg.Addr(),
		"metrics_addr": cfg.MetricsAddr,
	}).Info("main: starting gateway")

	if err := l.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("main: listener exited")
	}

	_ = srv.Shutdown(context.Background())
	logrus.Info("main: shutdown complete")
}

func configureLogging(cfg config.Config) {
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.LogPath == "" {
		return
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logrus.WithError(err).Warn("main: opening log file, falling back to stderr")
		return
	}
	logrus.SetOutput(f)
}
