/*
Copyright 2024 OPTRIXTRADES Authors.

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

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/config"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/database"
	"github.com/Fmsticks2/OPTRIXTRADESADMINBOT/internal/notification"
)

// CLI encapsulates the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// botInstance holds the service instance and its configuration, shared by
// every subcommand through the pre-run hook.
type botInstance struct {
	bot *bot.Bot
	cnf *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and initializes the service before any command.
func preRun(app *botInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("bot.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newBot, err := setupBot(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.bot = newBot
		app.cnf = cnf

		return nil
	}
}

func setupBot(cfg *config.Configuration) (*bot.Bot, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "error getting datasource")
	}

	newBot, err := bot.NewBot(db)
	if err != nil {
		return nil, errors.Wrap(err, "error creating bot")
	}
	return newBot, nil
}

// NewCLI assembles the command tree: start, scheduler, workers, migrate, config.
func NewCLI() *CLI {
	var configFile string
	b := &botInstance{}

	var rootCmd = &cobra.Command{
		Use:   "optrixbot",
		Short: "Conversion funnel bot",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./bot.json", "Configuration file for the bot")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(schedulerCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(configCommands())

	return &CLI{cmd: rootCmd}
}

func (w CLI) executeCLI() {
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
