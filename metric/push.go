// Copyright 2022 MatrixOrigin.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package metric

import (
	"context"
	"time"

	"github.com/matrixorigin/cubeclient/components/log"
	"github.com/matrixorigin/cubeclient/util/stop"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// StartPush start pushing metrics to the prometheus pushgateway, the push
// loop runs until the stopper is stopped.
func StartPush(cfg Cfg, stopper *stop.Stopper, logger *zap.Logger) {
	logger = log.Adjust(logger).Named("metric")

	if cfg.Interval == 0 || cfg.Addr == "" || cfg.Job == "" {
		logger.Info("metric push disabled")
		return
	}

	logger.Info("start push metric",
		zap.String("job", cfg.Job),
		zap.String("addr", cfg.Addr),
		zap.Int("interval-seconds", cfg.Interval))

	pusher := push.New(cfg.Addr, cfg.Job).
		Gatherer(registry).
		Grouping("instance", cfg.instance())
	if err := stopper.RunNamedTask("metric-push", func(ctx context.Context) {
		timer := time.NewTicker(time.Second * time.Duration(cfg.Interval))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if err := pusher.Push(); err != nil {
					logger.Error("fail to push metric",
						zap.String("addr", cfg.Addr),
						zap.Error(err))
				}
			}
		}
	}); err != nil {
		logger.Error("fail to start metric push task",
			zap.Error(err))
	}
}
