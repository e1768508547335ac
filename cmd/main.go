package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/terradle/terradle"
	"github.com/terradle/terradle/util"
)

var (
	configFlag = flag.String("config", "", "configuration file path")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}

	viper.SetDefault("bind", ":8080")
	viper.SetDefault("cacheSize", 1024)
	viper.SetDefault("maxGuesses", 6)
	viper.SetDefault("reloadToken", util.RandomSequence(32))

	viper.SetConfigName("terradle")        // name of config file (without extension)
	viper.SetConfigType("yaml")            // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath("/etc/terradle/")  // path to look for the config file in
	viper.AddConfigPath("$HOME/.terradle") // call multiple times to add many search paths
	viper.AddConfigPath(".")               // optionally look for config in the working directory

	if *configFlag != "" {
		viper.SetConfigFile(*configFlag)
	}

	config := &terradle.Config{}

	loadConfig := func(fatal bool) {
		log.Info("Reading configuration")

		if err := viper.ReadInConfig(); err != nil {
			log.WithError(err).Error("Unable to read configuration")

			if fatal {
				os.Exit(1)
			}
		}

		log.Info("Unmarshalling configuration")

		if err := viper.Unmarshal(config); err != nil {
			log.WithError(err).Error("Unable to unmarshal configuration")

			if fatal {
				os.Exit(1)
			}
		}

		// Remote datasets are verified against Mozilla's CA bundle.
		if config.DatasetURL != "" {
			log.Info("Updating root certificates")

			certs, err := util.LoadCACerts()

			if err != nil {
				log.WithError(err).Error("Unable to load certificates")

				if fatal {
					os.Exit(1)
				}
			}

			config.SetRootCAs(certs)
		}
	}

	config.ReloadFunc = func() {
		loadConfig(false)
	}

	loadConfig(true)

	app := terradle.New(config)

	// Because we have a bind address, we can start it without the return value.
	app.Start()

	log.Info("Ready")

	c := make(chan os.Signal, 1)

	signal.Notify(c, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-c

		if sig != syscall.SIGHUP {
			break
		}

		loadConfig(false)

		if err := app.ReloadConfig(); err != nil {
			log.WithError(err).Warning("Did not reload configuration due to error")
		}
	}
}
