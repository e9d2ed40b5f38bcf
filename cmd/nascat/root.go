package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geonas-tools/nascat/internal/catalog"
	"github.com/geonas-tools/nascat/internal/storage"
	"github.com/geonas-tools/nascat/internal/ui"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nascat",
	Short: "Dataset catalog scanner for NAS file stores",
	Long:  longDescription,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initUIAndBanner(cmd)
	},

	// When invoked without a subcommand, show help (with banner) instead of
	// printing a plain usage output.
	RunE: func(cmd *cobra.Command, args []string) error {
		initUIAndBanner(cmd)
		return cmd.Help()
	},
}

var cfgFile string
var version string

// SetVersion sets the version for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// GetRootCmd returns the root command for use with fang
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nascat.yaml or ./config/defaults.yaml)")
	rootCmd.PersistentFlags().String("catalog", "", "catalog file (.db for SQLite, anything else for JSON lines)")
	viper.BindPFlag("catalog.path", rootCmd.PersistentFlags().Lookup("catalog"))

	// Ensure `--help` (and help subcommands) show the banner consistently.
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		initUIAndBanner(cmd)
		defaultHelp(cmd, args)
	})

	rootCmd.AddCommand(scanCmd, queryCmd, summaryCmd, exportCmd, curateCmd, watchCmd)
}

func initConfig() {
	viper.SetDefault("catalog.path", "nascat.db")

	// Environment variable support, e.g. NASCAT_CATALOG_PATH.
	viper.SetEnvPrefix("NASCAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.SetConfigType("yaml")
		viper.AddConfigPath(home)
		viper.AddConfigPath("./config")

		// Try .nascat first, then defaults.yaml.
		viper.SetConfigName(".nascat")
		err = viper.ReadInConfig()
		notFound := &viper.ConfigFileNotFoundError{}
		if err != nil && errors.As(err, notFound) {
			viper.SetConfigName("defaults")
			err = viper.ReadInConfig()
		}
		if err != nil && !errors.As(err, notFound) {
			cobra.CheckErr(err)
		}
		if err == nil {
			configMsg := ui.Dim.Render("Using config file: ") + ui.Secondary.Render(viper.ConfigFileUsed())
			fmt.Fprintln(os.Stderr, configMsg)
		}
		return
	}

	err := viper.ReadInConfig()
	notFound := &viper.ConfigFileNotFoundError{}
	switch {
	case err != nil && !errors.As(err, notFound):
		cobra.CheckErr(err)
	case err != nil && errors.As(err, notFound):
		// The config file is optional.
	default:
		configMsg := ui.Dim.Render("Using config file: ") + ui.Secondary.Render(viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, configMsg)
	}
}

const longDescription = "Recursive metadata scanner for NAS file stores. Walks a directory tree, classifies data files, mines README files for dataset metadata, and maintains a curated catalog."

func initUIAndBanner(cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	cmd.Root().Long = ui.RenderBanner(ui.BannerASCII) + "\n" + longDescription
}

// openCatalog loads the persisted catalog into memory and returns both the
// in-memory index and its backing store.
func openCatalog() (*catalog.Catalog, storage.Store, error) {
	store, err := storage.Open(viper.GetString("catalog.path"))
	if err != nil {
		return nil, nil, err
	}
	records, err := store.LoadAll()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	cat := catalog.New()
	cat.Load(records)
	return cat, store, nil
}

func saveCatalog(cat *catalog.Catalog, store storage.Store) error {
	return store.SaveAll(cat.List())
}
