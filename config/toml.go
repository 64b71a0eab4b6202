package config

import (
	"bytes"
	_ "embed"
	"os"
	"strings"
	"text/template"

	cmtconfig "github.com/cometbft/cometbft/config"
	"github.com/spf13/viper"
)

var appTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("appConfigTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if appTemplate, err = tmpl.Parse(defaultAppTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile writes the cometbft sections and appends the [app] section rendered from
// the embedded template.
func WriteConfigFile(configFilePath string, config *Config) error {
	cmtconfig.WriteConfigFile(configFilePath, config.Config)

	var buffer bytes.Buffer
	if err := appTemplate.Execute(&buffer, config.App); err != nil {
		return err
	}
	f, err := os.OpenFile(configFilePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(buffer.Bytes())
	return err
}

// LoadConfig reads <home>/config/config.toml over the defaults.
func LoadConfig(home string) (*Config, error) {
	cfg := NewConfig(home)
	v := viper.New()
	v.SetConfigFile(cfg.RootDir + "/config/config.toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.SetRoot(cfg.RootDir)
	cfg.App.Home = cfg.RootDir
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//go:embed app.toml.tpl
var defaultAppTemplate string
