package config

type (
	//TableCfg is the container for other table config sections
	TableCfg struct {
		Log        LogTableCfg
		Meta       MetaTableCfg
		Prediction PredictionTableCfg
	}

	//MetaTableCfg contains the collections of the metadatabase tracking
	//which databases and log files hold predictions
	MetaTableCfg struct {
		DatabasesTable string `default:"databases"`
		FilesTable     string `default:"files"`
	}

	//LogTableCfg contains the configuration for logging
	LogTableCfg struct {
		LogTable string `default:"logs"`
	}

	//PredictionTableCfg contains the names of the collections holding
	//classified flows
	PredictionTableCfg struct {
		PredictionTable string `default:"predictions"`
	}
)
