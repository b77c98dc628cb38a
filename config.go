package drover

import (
	"github.com/spf13/viper"
)

func loadConfig() {
	viper.SetConfigName("droverrc")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.drover")

	setupDefaults()

	viper.ReadInConfig()

	viper.SetEnvPrefix("drover")
	viper.AutomaticEnv()
}

func setupDefaults() {
	defaultSettings := map[string]interface{}{
		"gcp_project":        "crisp-sa",
		"train_files":        "gs://crisp-sa/rapids/higgs_csv/*.csv",
		"model_file":         "gs://crisp-sa/rapids/models/001.model",
		"num_worker":         2,
		"threads_per_worker": 4,
		"do_wait":            false,
		"parquet":            false,
		"scheduler_endpoint": "", // empty means discover the host IP
	}
	for key, value := range defaultSettings {
		viper.SetDefault(key, value)
	}

	aliases := map[string]string{
		"num_worker": "n",
		"do_wait":    "w",
	}
	for key, alias := range aliases {
		viper.RegisterAlias(alias, key)
	}
}
