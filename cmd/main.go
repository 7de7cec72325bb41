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
	"fmt"
	"log"
	"os"

	"github.com/fraudlens/caseflow"
	"github.com/fraudlens/caseflow/config"
	"github.com/fraudlens/caseflow/database"
	"github.com/fraudlens/caseflow/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// FraudLens represents the CLI application, encapsulating the root Cobra command.
type FraudLens struct {
	cmd *cobra.Command
}

// fraudLensInstance holds the case-flow service and the configuration it was built from.
type fraudLensInstance struct {
	caseFlow *caseflow.CaseFlow
	cnf      *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the case-flow service before any command runs.
func preRun(app *fraudLensInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		if err := config.SetOtelExporterEnvs(); err != nil {
			logrus.WithError(err).Warn("failed to export otel settings")
		}

		cf, err := setupCaseFlow()
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.caseFlow = cf
		app.cnf = cnf

		return nil
	}
}

// setupCaseFlow connects to postgres and builds the service on top of it.
func setupCaseFlow() (*caseflow.CaseFlow, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	cf, err := caseflow.NewCaseFlow(db)
	if err != nil {
		return nil, fmt.Errorf("error creating case flow: %v", err)
	}
	return cf, nil
}

// NewCLI creates the command-line interface for FraudLens.
func NewCLI() *FraudLens {
	var configFile string
	app := &fraudLensInstance{}

	var rootCmd = &cobra.Command{
		Use:   "fraudlens",
		Short: "Fraud case lifecycle service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./fraudlens.json", "Configuration file for fraudlens")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(repairCommands(app))
	rootCmd.AddCommand(tokenCommands(app))
	rootCmd.AddCommand(configCommands())

	return &FraudLens{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (f FraudLens) executeCLI() {
	if err := f.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
