/*
Copyright 2024 Pipeflow Authors.

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

	"github.com/pipeflowhq/pipeflow"
	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/database"
	"github.com/pipeflowhq/pipeflow/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Pipeflow represents the CLI application, encapsulating the root Cobra command.
type Pipeflow struct {
	cmd *cobra.Command
}

// pipeflowInstance holds the engine instance and its configuration, shared
// across the subcommands.
type pipeflowInstance struct {
	pipeflow *pipeflow.Pipeflow
	cnf      *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the engine before running
// any command.
func preRun(app *pipeflowInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("pipeflow.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupPipeflow(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.pipeflow = engine
		app.cnf = cnf

		return nil
	}
}

func setupPipeflow(cfg *config.Configuration) (*pipeflow.Pipeflow, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := pipeflow.NewPipeflow(db)
	if err != nil {
		return nil, fmt.Errorf("error creating pipeflow: %v", err)
	}
	return engine, nil
}

// NewCLI creates the command-line interface for the Pipeflow application.
func NewCLI() *Pipeflow {
	var configFile string
	p := &pipeflowInstance{}

	var rootCmd = &cobra.Command{
		Use:   "pipeflow",
		Short: "Lead pipeline stage-movement engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./pipeflow.json", "Configuration file for pipeflow")

	rootCmd.PersistentPreRunE = preRun(p)

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(workerCommands(p))
	rootCmd.AddCommand(migrateCommands(p))

	return &Pipeflow{cmd: rootCmd}
}

func (w Pipeflow) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
