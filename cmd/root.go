/*
Copyright 2020 Google LLC

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
package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tuneline/tuneline/internal/lastfm"
)

var cfgFile string
var lastFmApiKey string
var lastFmSecret string
var lastFmUser string
var databasePath string
var sendgridApiKey string
var logLevel string
var maxRetries int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tuneline",
	Short: "Ingests and analyzes last.fm listening history",
	Long: `Pulls a user's scrobbles into a local SQLite database and derives
per-month top artists, new-artist discoveries, daily activity, and genre
distribution.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default is $HOME/.tuneline.yaml)")

	rootCmd.PersistentFlags().StringVarP(
		&lastFmApiKey, "api_key", "", "", "last.fm API key")
	rootCmd.MarkPersistentFlagRequired("api_key")
	viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api_key"))

	rootCmd.PersistentFlags().StringVarP(
		&lastFmSecret, "secret", "", "", "last.fm secret")
	viper.BindPFlag("secret", rootCmd.PersistentFlags().Lookup("secret"))

	rootCmd.PersistentFlags().StringVarP(
		&lastFmUser, "user", "u", "", "last.fm username to act on")
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))

	rootCmd.PersistentFlags().StringVarP(
		&databasePath, "database", "d", "./tuneline.db", "Path to the SQLite database")
	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))

	rootCmd.PersistentFlags().StringVar(
		&sendgridApiKey, "sendgrid_api_key", "", "SendGrid API key, for email reports")
	viper.BindPFlag("sendgrid_api_key", rootCmd.PersistentFlags().Lookup("sendgrid_api_key"))

	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "Log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log_level"))

	rootCmd.PersistentFlags().IntVar(&maxRetries, "max_retries", 3, "Retries per page before it is recorded as failed")
	viper.BindPFlag("max_retries", rootCmd.PersistentFlags().Lookup("max_retries"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".tuneline" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".tuneline")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// See https://github.com/spf13/viper/pull/852
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			rootCmd.Flags().Set(f.Name, viper.GetString(f.Name))
		}
	})
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

func newLastFmClient(logger zerolog.Logger) (*lastfm.Client, error) {
	return lastfm.New(lastfm.Config{
		APIKey:     viper.GetString("api_key"),
		Secret:     viper.GetString("secret"),
		UserAgent:  "tuneline/1.0",
		MaxRetries: uint(viper.GetInt("max_retries")),
	}, logger)
}
