/*
Copyright 2024 FraudLens Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/fraudlens/caseflow"
	"github.com/fraudlens/caseflow/config"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	opt, err := caseflow.RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      map[string]int{conf.Queue.WebhookQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				logrus.WithField("task_type", task.Type()).WithError(err).Error("webhook delivery exhausted retries")
			}
		}),
	}), nil
}

func initializeTaskHandlers(conf *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(conf.Queue.WebhookQueue, caseflow.ProcessWebhook)
}

// startMonitoring serves the asynqmon dashboard for the webhook queue.
func startMonitoring(conf *config.Configuration) error {
	opt, err := caseflow.RedisClientOpt(conf)
	if err != nil {
		return err
	}

	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: opt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
	return nil
}

// workerCommands defines the "workers" command that delivers queued case webhooks.
func workerCommands(app *fraudLensInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start fraudlens workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := app.cnf

			phClient, shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}
			if phClient != nil {
				defer phClient.Close()
			}

			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, mux)

			if err := startMonitoring(conf); err != nil {
				log.Fatal(err)
			}

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
